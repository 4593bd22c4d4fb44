// Package paths defines the managed resource tree layout used by every other
// component: versioned binaries, download staging, generated server
// configuration and managed log directories.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// EnvDataRoot overrides the default data root location.
const EnvDataRoot = "DEVSTACK_HOME"

// Platform returns the platform key used in the resource tree and the remote
// catalog ("windows", "darwin", "linux").
func Platform() string {
	return runtime.GOOS
}

// DataRoot returns the root of the managed resource tree, creating it if
// needed. Defaults to ~/.devstack.
func DataRoot() (string, error) {
	if custom := os.Getenv(EnvDataRoot); custom != "" {
		if err := os.MkdirAll(custom, 0750); err != nil {
			return "", fmt.Errorf("failed to create data root: %w", err)
		}
		return custom, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	root := filepath.Join(home, ".devstack")
	if err := os.MkdirAll(root, 0750); err != nil {
		return "", fmt.Errorf("failed to create data root: %w", err)
	}
	return root, nil
}

// ServiceDir returns <dataRoot>/<service>.
func ServiceDir(dataRoot, service string) string {
	return filepath.Join(dataRoot, service)
}

// VersionDir returns <dataRoot>/<service>/<version>/<platform>, the
// installation directory for one versioned binary.
func VersionDir(dataRoot, service, version string) string {
	return filepath.Join(dataRoot, service, version, Platform())
}

// DownloadsDir returns the staging area for in-flight archives.
func DownloadsDir(dataRoot string) string {
	return filepath.Join(dataRoot, "downloads")
}

// SitesDir returns the per-project virtual-host directory for a server type.
func SitesDir(dataRoot, serverType string) string {
	return filepath.Join(dataRoot, serverType, "sites")
}

// SiteConfig returns the generated virtual-host file for one project.
func SiteConfig(dataRoot, serverType, projectID string) string {
	return filepath.Join(SitesDir(dataRoot, serverType), projectID+".conf")
}

// LogsDir returns the managed log directory for a server type. Logs live
// under the data root, not the binary directory, so they survive reinstalls.
func LogsDir(dataRoot, serverType string) string {
	return filepath.Join(dataRoot, serverType, "logs")
}

// CatalogCacheFile returns the local cache file for applied remote catalog
// updates.
func CatalogCacheFile(dataRoot string) string {
	return filepath.Join(dataRoot, "catalog-cache.json")
}

// RunningStateFile returns the persisted running-process table, used to
// reconnect with processes started by an earlier invocation.
func RunningStateFile(dataRoot string) string {
	return filepath.Join(dataRoot, "running.json")
}

// ProjectsFile returns the project registry file consumed by the supervisor.
func ProjectsFile(dataRoot string) string {
	return filepath.Join(dataRoot, "projects.yaml")
}
