package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// progressEvery is the entry interval between streamed progress messages.
const progressEvery = 25

// extractZip unpacks a ZIP archive. The decompression loop runs on a worker
// goroutine; the calling goroutine only forwards progress messages, so
// cancellation stays responsive.
func extractZip(ctx context.Context, src, dest string, report ProgressFunc) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: cannot read ZIP archive: %v", ErrExtraction, err)
	}
	defer reader.Close()

	total := len(reader.File)
	progressCh := make(chan Progress, 8)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(progressCh)

		for i, file := range reader.File {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := extractZipEntry(file, dest); err != nil {
				return err
			}

			done := i + 1
			if done%progressEvery == 0 && done < total {
				select {
				case progressCh <- Progress{Percent: done * 100 / total, Done: done, Total: total}:
				default:
					// Drop intermediate messages rather than stall the worker.
				}
			}
		}

		// The final 100% message is guaranteed, never dropped.
		progressCh <- Progress{Percent: 100, Done: total, Total: total}
		return nil
	})

	for p := range progressCh {
		report(p)
	}
	return g.Wait()
}

func extractZipEntry(file *zip.File, dest string) error {
	target, err := entryPath(dest, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0750); err != nil {
			return fmt.Errorf("%w: cannot create directory %s: %v", ErrExtraction, file.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("%w: cannot create directory for %s: %v", ErrExtraction, file.Name, err)
	}

	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot open entry %s: %v", ErrExtraction, file.Name, err)
	}
	defer in.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: cannot create %s: %v", ErrExtraction, file.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: failed extracting %s: %v", ErrExtraction, file.Name, err)
	}
	return nil
}
