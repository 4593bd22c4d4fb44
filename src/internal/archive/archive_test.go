package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "payload.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func writeTarGz(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, "payload.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestExtractRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bogus.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip file"), 0644))

	err := Extract(context.Background(), path, filepath.Join(dir, "out"), nil)
	require.ErrorIs(t, err, ErrPayloadIntegrity)
	assert.Contains(t, err.Error(), "corrupted")
}

func TestExtractDistinguishesHTMLPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked.zip")
	page := "<!DOCTYPE html><html><body>Access denied</body></html>"
	require.NoError(t, os.WriteFile(path, []byte(page), 0644))

	err := Extract(context.Background(), path, filepath.Join(dir, "out"), nil)
	require.ErrorIs(t, err, ErrPayloadIntegrity)
	assert.Contains(t, err.Error(), "HTML")
	assert.Contains(t, err.Error(), "blocked")
}

func TestExtractZipReportsFinalProgress(t *testing.T) {
	dir := t.TempDir()
	src := writeZip(t, dir, map[string]string{
		"php.exe":       "binary",
		"php.ini-dev":   "settings",
		"ext/curl.dll":  "ext",
		"ext/mysql.dll": "ext",
	})

	var messages []Progress
	dest := filepath.Join(dir, "out")
	err := Extract(context.Background(), src, dest, func(p Progress) {
		messages = append(messages, p)
	})
	require.NoError(t, err)

	require.NotEmpty(t, messages)
	assert.Equal(t, 100, messages[len(messages)-1].Percent, "final message must be 100%")

	data, err := os.ReadFile(filepath.Join(dest, "php.exe"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
	assert.FileExists(t, filepath.Join(dest, "ext", "curl.dll"))
}

func TestExtractZipCollapsesSingleWrapper(t *testing.T) {
	dir := t.TempDir()
	src := writeZip(t, dir, map[string]string{
		"nginx-1.26.1/nginx.exe":       "binary",
		"nginx-1.26.1/conf/nginx.conf": "conf",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(context.Background(), src, dest, nil))

	assert.FileExists(t, filepath.Join(dest, "nginx.exe"))
	assert.FileExists(t, filepath.Join(dest, "conf", "nginx.conf"))
	assert.NoDirExists(t, filepath.Join(dest, "nginx-1.26.1"))
}

func TestExtractZipCollapsesVendorWrapper(t *testing.T) {
	dir := t.TempDir()
	src := writeZip(t, dir, map[string]string{
		"Apache24/bin/httpd.exe": "binary",
		"ReadMe.txt":             "read me",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(context.Background(), src, dest, nil))

	assert.FileExists(t, filepath.Join(dest, "bin", "httpd.exe"))
	assert.FileExists(t, filepath.Join(dest, "ReadMe.txt"))
	assert.NoDirExists(t, filepath.Join(dest, "Apache24"))
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := writeZip(t, dir, map[string]string{
		"../escape.txt": "gotcha",
	})

	err := Extract(context.Background(), src, filepath.Join(dir, "out"), nil)
	require.ErrorIs(t, err, ErrExtraction)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractTarGzStripsOneComponent(t *testing.T) {
	dir := t.TempDir()
	src := writeTarGz(t, dir, map[string]string{
		"foo-1.2.3/bin/foo":  "binary",
		"foo-1.2.3/README":   "docs",
		"foo-1.2.3/lib/a.so": "lib",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(context.Background(), src, dest, nil))

	assert.FileExists(t, filepath.Join(dest, "bin", "foo"))
	assert.FileExists(t, filepath.Join(dest, "README"))
	assert.FileExists(t, filepath.Join(dest, "lib", "a.so"))
	assert.NoDirExists(t, filepath.Join(dest, "foo-1.2.3"))
}

func TestExtractTarGzRejectsCorruptStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0644))

	err := Extract(context.Background(), path, filepath.Join(dir, "out"), nil)
	require.ErrorIs(t, err, ErrPayloadIntegrity)
}

func TestExtractPlainFileInstallsAsIs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "composer.phar")
	require.NoError(t, os.WriteFile(src, []byte("#!/usr/bin/env php"), 0644))

	var final Progress
	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(context.Background(), src, dest, func(p Progress) { final = p }))

	assert.Equal(t, 100, final.Percent)
	assert.FileExists(t, filepath.Join(dest, "composer.phar"))
}

func TestExtractCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeZip(t, dir, map[string]string{"a.txt": "a", "b.txt": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Extract(ctx, src, filepath.Join(dir, "out"), nil)
	require.ErrorIs(t, err, context.Canceled)
}
