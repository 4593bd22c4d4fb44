// Package archive validates and unpacks downloaded release archives.
//
// ZIP decompression is CPU bound, so it runs in its own worker goroutine and
// streams progress messages back to the caller; the orchestration layer stays
// free to report progress and accept cancellation for other tasks.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Error kinds surfaced to the download manager. PayloadIntegrity means the
// file is not what it claims to be and must never reach the extractor proper;
// Extraction means the archive was structurally valid but unpacking failed.
var (
	ErrPayloadIntegrity = errors.New("payload integrity failure")
	ErrExtraction       = errors.New("extraction failure")
)

// Progress is one extraction progress message. Percent is guaranteed to reach
// 100 exactly once, as the final message before a successful return.
type Progress struct {
	Percent int
	Done    int
	Total   int
}

// ProgressFunc receives throttled extraction progress. May be nil.
type ProgressFunc func(Progress)

// zipMagic is the two-byte signature every ZIP archive starts with.
var zipMagic = []byte{0x50, 0x4B}

// Extract unpacks src into dest, dispatching on the archive extension.
// Unrecognized extensions are installed as plain files (single-binary
// artifacts such as composer.phar ship unarchived).
func Extract(ctx context.Context, src, dest string, report ProgressFunc) error {
	if report == nil {
		report = func(Progress) {}
	}
	if err := os.MkdirAll(dest, 0750); err != nil {
		return fmt.Errorf("%w: failed to create destination: %v", ErrExtraction, err)
	}

	name := strings.ToLower(filepath.Base(src))
	switch {
	case strings.HasSuffix(name, ".zip"):
		if err := validateZipMagic(src); err != nil {
			return err
		}
		if err := extractZip(ctx, src, dest, report); err != nil {
			return err
		}
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		if err := extractTarGz(ctx, src, dest, report); err != nil {
			return err
		}
	default:
		if err := installPlainFile(src, dest); err != nil {
			return err
		}
		report(Progress{Percent: 100, Done: 1, Total: 1})
		return nil
	}

	return normalizeLayout(dest)
}

// validateZipMagic checks the first two bytes of the payload. When they are
// wrong the file is re-read as text to distinguish a blocked download (an
// HTML error page saved to disk) from a genuinely corrupted archive.
func validateZipMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: cannot open archive: %v", ErrPayloadIntegrity, err)
	}
	defer f.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: archive is empty or truncated", ErrPayloadIntegrity)
	}
	if header[0] == zipMagic[0] && header[1] == zipMagic[1] {
		return nil
	}

	if looksLikeHTML(f) {
		return fmt.Errorf("%w: received an HTML page instead of a ZIP archive; the download source likely blocked the request", ErrPayloadIntegrity)
	}
	return fmt.Errorf("%w: file does not start with the ZIP signature; the archive is corrupted", ErrPayloadIntegrity)
}

func looksLikeHTML(f *os.File) bool {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	head := make([]byte, 1024)
	n, _ := io.ReadFull(f, head)
	text := strings.ToLower(string(head[:n]))
	return strings.Contains(text, "<!doctype") || strings.Contains(text, "<html")
}

// installPlainFile copies a non-archive artifact into the destination under
// its original name.
func installPlainFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: cannot open artifact: %v", ErrExtraction, err)
	}
	defer in.Close()

	target := filepath.Join(dest, filepath.Base(src))
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("%w: cannot create %s: %v", ErrExtraction, target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copy failed: %v", ErrExtraction, err)
	}
	return nil
}

// entryPath resolves an archive entry name inside dest, rejecting absolute
// paths and traversal escapes.
func entryPath(dest, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: archive entry %q escapes the destination", ErrExtraction, name)
	}
	return filepath.Join(dest, cleaned), nil
}
