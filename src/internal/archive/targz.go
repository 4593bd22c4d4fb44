package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// extractTarGz unpacks a gzipped tarball, stripping exactly one leading path
// component: release tarballs conventionally wrap everything in a single
// top-level folder.
func extractTarGz(ctx context.Context, src, dest string, report ProgressFunc) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: cannot open archive: %v", ErrExtraction, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: not a valid gzip stream: %v", ErrPayloadIntegrity, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	done := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: corrupt tar stream: %v", ErrExtraction, err)
		}

		name := stripFirstComponent(header.Name)
		if name == "" {
			continue
		}
		target, err := entryPath(dest, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("%w: cannot create directory %s: %v", ErrExtraction, name, err)
			}
		case tar.TypeSymlink:
			// Symlinks inside release tarballs point at siblings; recreate
			// them as-is without following.
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return fmt.Errorf("%w: cannot create directory for %s: %v", ErrExtraction, name, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("%w: cannot create symlink %s: %v", ErrExtraction, name, err)
			}
		case tar.TypeReg:
			if err := writeTarFile(tr, target, header, name); err != nil {
				return err
			}
		default:
			continue
		}

		done++
		if done%progressEvery == 0 {
			report(Progress{Percent: 0, Done: done, Total: 0})
		}
	}

	report(Progress{Percent: 100, Done: done, Total: done})
	return nil
}

func writeTarFile(tr *tar.Reader, target string, header *tar.Header, name string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("%w: cannot create directory for %s: %v", ErrExtraction, name, err)
	}

	mode := os.FileMode(header.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: cannot create %s: %v", ErrExtraction, name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, tr); err != nil {
		return fmt.Errorf("%w: failed extracting %s: %v", ErrExtraction, name, err)
	}
	return nil
}

// stripFirstComponent drops the leading path segment of a tar entry name.
// Entries that are the top-level folder itself collapse to nothing.
func stripFirstComponent(name string) string {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, "/")
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}
