package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultPHPIni(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeDefaultPHPIni(dir))

	data, err := os.ReadFile(filepath.Join(dir, "php.ini"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "display_errors = On")
	assert.Contains(t, content, "memory_limit = 512M")
	assert.Contains(t, content, "sendmail")
	assert.DirExists(t, filepath.Join(dir, "tmp", "sessions"))
}

func TestWriteDefaultPHPIniPreservesExisting(t *testing.T) {
	dir := t.TempDir()
	custom := []byte("; hand-tuned\nmemory_limit = 2G\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "php.ini"), custom, 0644))

	require.NoError(t, writeDefaultPHPIni(dir))

	data, err := os.ReadFile(filepath.Join(dir, "php.ini"))
	require.NoError(t, err)
	assert.Equal(t, custom, data, "reinstall must not clobber user edits")
}

func TestWriteRootCredentialIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeRootCredential(dir))

	first, err := os.ReadFile(filepath.Join(dir, ".root-credential"))
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	require.NoError(t, writeRootCredential(dir))
	second, err := os.ReadFile(filepath.Join(dir, ".root-credential"))
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing secret must be preserved")
}
