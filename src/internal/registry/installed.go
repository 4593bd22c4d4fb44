// Package registry answers "what is installed" by probing the resource tree.
// Nothing here is cached: the answer always reflects current disk state, so
// manual deletes and imports are picked up immediately.
package registry

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/paths"
)

// InstalledVersion is one discovered install of a service.
type InstalledVersion struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Path    string `json:"path"`
	// Custom marks version directories the catalog does not know about:
	// binaries the user imported by hand.
	Custom bool `json:"custom,omitempty"`
}

// Registry probes one data root.
type Registry struct {
	dataRoot string
	store    *catalog.Store
}

// New returns a registry over the given data root and catalog.
func New(dataRoot string, store *catalog.Store) *Registry {
	return &Registry{dataRoot: dataRoot, store: store}
}

// InstalledVersions lists every version of a service with a working
// executable on disk, catalog-known versions first, then custom imports.
func (r *Registry) InstalledVersions(service string) []InstalledVersion {
	known := make(map[string]bool)
	var installed []InstalledVersion

	for _, version := range r.store.Versions(service) {
		known[version] = true
		if dir, ok := r.probe(service, version); ok {
			installed = append(installed, InstalledVersion{
				Service: service,
				Version: version,
				Path:    dir,
			})
		}
	}

	// Scan for version directories the catalog never heard of.
	entries, err := os.ReadDir(paths.ServiceDir(r.dataRoot, service))
	if err != nil {
		return installed
	}
	var custom []InstalledVersion
	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		if dir, ok := r.probe(service, entry.Name()); ok {
			custom = append(custom, InstalledVersion{
				Service: service,
				Version: entry.Name(),
				Path:    dir,
				Custom:  true,
			})
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Version < custom[j].Version })
	return append(installed, custom...)
}

// IsInstalled reports whether the expected executable exists for a version.
func (r *Registry) IsInstalled(service, version string) bool {
	_, ok := r.probe(service, version)
	return ok
}

// BinaryPath returns the absolute path of the service executable for an
// installed version.
func (r *Registry) BinaryPath(service, version string) (string, bool) {
	dir, ok := r.probe(service, version)
	if !ok {
		return "", false
	}
	return firstExisting(dir, catalog.ExecutableCandidates(service))
}

// GatewayBinaryPath returns the FastCGI gateway executable inside a PHP
// install.
func (r *Registry) GatewayBinaryPath(version string) (string, bool) {
	dir, ok := r.probe(catalog.ServicePHP, version)
	if !ok {
		return "", false
	}
	return firstExisting(dir, catalog.GatewayExecutableCandidates())
}

// InstallDir returns the version directory regardless of install state.
func (r *Registry) InstallDir(service, version string) string {
	return paths.VersionDir(r.dataRoot, service, version)
}

func (r *Registry) probe(service, version string) (string, bool) {
	dir := paths.VersionDir(r.dataRoot, service, version)
	if _, ok := firstExisting(dir, catalog.ExecutableCandidates(service)); !ok {
		return "", false
	}
	return dir, true
}

func firstExisting(dir string, candidates []string) (string, bool) {
	for _, rel := range candidates {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			return full, true
		}
	}
	return "", false
}
