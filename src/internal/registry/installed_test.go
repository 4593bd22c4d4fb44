package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installFake lays down the expected executable for a service version.
func installFake(t *testing.T, root, service, version, relExe string) {
	t.Helper()
	exe := filepath.Join(paths.VersionDir(root, service, version), filepath.FromSlash(relExe))
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0750))
	require.NoError(t, os.WriteFile(exe, []byte("binary"), 0755))
}

func TestInstalledVersionsReflectsDisk(t *testing.T) {
	root := t.TempDir()
	store := catalog.NewStore()
	reg := New(root, store)

	assert.Empty(t, reg.InstalledVersions(catalog.ServiceNginx))

	installFake(t, root, catalog.ServiceNginx, "1.26.1", "nginx.exe")

	installed := reg.InstalledVersions(catalog.ServiceNginx)
	require.Len(t, installed, 1)
	assert.Equal(t, "1.26.1", installed[0].Version)
	assert.False(t, installed[0].Custom)

	// No caching: deleting the binary is visible on the next call.
	require.NoError(t, os.RemoveAll(paths.VersionDir(root, catalog.ServiceNginx, "1.26.1")))
	assert.Empty(t, reg.InstalledVersions(catalog.ServiceNginx))
}

func TestInstalledVersionsFindsCustomImports(t *testing.T) {
	root := t.TempDir()
	reg := New(root, catalog.NewStore())

	installFake(t, root, catalog.ServicePHP, "8.3.8", "php.exe")
	installFake(t, root, catalog.ServicePHP, "7.4.33-custom", "php.exe")

	// A version directory without the executable is not an install.
	require.NoError(t, os.MkdirAll(paths.VersionDir(root, catalog.ServicePHP, "8.9.9"), 0750))

	installed := reg.InstalledVersions(catalog.ServicePHP)
	require.Len(t, installed, 2)
	assert.Equal(t, "8.3.8", installed[0].Version)
	assert.Equal(t, "7.4.33-custom", installed[1].Version)
	assert.True(t, installed[1].Custom)
}

func TestBinaryPath(t *testing.T) {
	root := t.TempDir()
	reg := New(root, catalog.NewStore())

	_, ok := reg.BinaryPath(catalog.ServiceMySQL, "8.0.37")
	assert.False(t, ok)

	installFake(t, root, catalog.ServiceMySQL, "8.0.37", "bin/mysqld.exe")

	path, ok := reg.BinaryPath(catalog.ServiceMySQL, "8.0.37")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(reg.InstallDir(catalog.ServiceMySQL, "8.0.37"), "bin", "mysqld.exe"), path)
}

func TestGatewayBinaryPath(t *testing.T) {
	root := t.TempDir()
	reg := New(root, catalog.NewStore())

	installFake(t, root, catalog.ServicePHP, "8.2.20", "php.exe")
	_, ok := reg.GatewayBinaryPath("8.2.20")
	assert.False(t, ok, "php install without php-cgi has no gateway")

	installFake(t, root, catalog.ServicePHP, "8.2.20", "php-cgi.exe")
	path, ok := reg.GatewayBinaryPath("8.2.20")
	require.True(t, ok)
	assert.Contains(t, path, "php-cgi.exe")
}
