// Package commands provides the command-line interface for the devstack CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/download"
	"github.com/devstack-cli/devstack/src/internal/paths"
	"github.com/devstack-cli/devstack/src/internal/project"
	"github.com/devstack-cli/devstack/src/internal/registry"
	"github.com/devstack-cli/devstack/src/internal/supervisor"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// appContext wires every command to the same catalog, registry and data
// root. Previously applied catalog updates are re-merged before any command
// runs, so persisted state always wins over the built-in table.
type appContext struct {
	dataRoot string
	store    *catalog.Store
	syncer   *catalog.Syncer
	registry *registry.Registry
	projects []project.Project
}

func newAppContext() (*appContext, error) {
	dataRoot, err := paths.DataRoot()
	if err != nil {
		return nil, err
	}

	store := catalog.NewStore()
	syncer := catalog.NewSyncer(store, paths.CatalogCacheFile(dataRoot))
	if err := syncer.LoadCached(); err != nil {
		return nil, fmt.Errorf("failed to load catalog cache: %w", err)
	}

	projects, err := project.Load(paths.ProjectsFile(dataRoot))
	if err != nil {
		return nil, err
	}

	return &appContext{
		dataRoot: dataRoot,
		store:    store,
		syncer:   syncer,
		registry: registry.New(dataRoot, store),
		projects: projects,
	}, nil
}

func (a *appContext) downloadManager() *download.Manager {
	return download.NewManager(a.store, a.dataRoot)
}

// newSupervisor builds a supervisor reconnected with whatever an earlier
// invocation left running.
func (a *appContext) newSupervisor() (*supervisor.Supervisor, error) {
	sup := supervisor.New(a.dataRoot, a.store, a.registry, a.projects)
	entries, err := loadRunningState(a.dataRoot)
	if err != nil {
		return nil, err
	}
	sup.Restore(entries, a.projects)
	return sup, nil
}

func saveRunningState(dataRoot string, entries []supervisor.RunningProcessEntry) error {
	if entries == nil {
		entries = []supervisor.RunningProcessEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.RunningStateFile(dataRoot), data, 0644)
}

func loadRunningState(dataRoot string) ([]supervisor.RunningProcessEntry, error) {
	data, err := os.ReadFile(paths.RunningStateFile(dataRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read running state: %w", err)
	}
	var entries []supervisor.RunningProcessEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse running state: %w", err)
	}
	return entries, nil
}

// InstallResult is the JSON output structure for the install command.
type InstallResult struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServiceListing is one service in the list command's JSON output.
type ServiceListing struct {
	Service  string           `json:"service"`
	Versions []VersionListing `json:"versions"`
}

// VersionListing is one version row in the list command's JSON output.
type VersionListing struct {
	Version   string `json:"version"`
	Label     string `json:"label,omitempty"`
	Installed bool   `json:"installed"`
	Custom    bool   `json:"custom,omitempty"`
	Path      string `json:"path,omitempty"`
}

// StatusResult is the JSON output structure for the status command.
type StatusResult struct {
	Running []supervisor.RunningProcessEntry `json:"running"`
}
