// Package supervisor starts and stops the per-project process pair (web
// server plus FastCGI gateway), generates the server configuration both
// need, and keeps the gateway inside its memory ceiling.
package supervisor

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/logging"
	"github.com/devstack-cli/devstack/src/internal/ports"
	"github.com/devstack-cli/devstack/src/internal/project"
	"github.com/devstack-cli/devstack/src/internal/registry"
)

// TerminateOutcome classifies what happened to a process tree on termination.
type TerminateOutcome string

const (
	TerminateOutcomeTerminated  TerminateOutcome = "terminated"
	TerminateOutcomeAlreadyGone TerminateOutcome = "alreadyGone"
	TerminateOutcomeFailed      TerminateOutcome = "failed"
)

// portScanAttempts bounds the upward scan from a version's nominal port.
const portScanAttempts = 100

// RunningProcessEntry describes one running project.
type RunningProcessEntry struct {
	ProjectID     string `json:"projectId"`
	ServerType    string `json:"serverType"`
	ServerVersion string `json:"serverVersion"`
	ServerPID     int    `json:"serverPid"`
	GatewayPID    int    `json:"gatewayPid"`
	GatewayPort   int    `json:"gatewayPort"`
}

// procState keeps what the watchdog needs to respawn a gateway in place.
type procState struct {
	entry       RunningProcessEntry
	gatewayBin  string
	gatewayArgs []string
	serverBin   string
}

// spawnFunc starts a detached process and returns its pid.
type spawnFunc func(bin string, args []string) (int, error)

// Supervisor owns the running-process table. All methods are safe for
// concurrent use.
type Supervisor struct {
	mu       sync.Mutex
	dataRoot string
	store    *catalog.Store
	reg      *registry.Registry
	running  map[string]*procState

	// Injectable for tests.
	spawn     spawnFunc
	terminate func(pid int) TerminateOutcome
	probe     func(start, maxAttempts int, host string) (int, bool)
	ready     func(port int) error

	log zerolog.Logger
}

// New returns a supervisor over the given data root. Orphaned per-project
// configuration left behind by earlier runs is removed immediately, using
// the current project registry as the authoritative id set.
func New(dataRoot string, store *catalog.Store, reg *registry.Registry, projects []project.Project) *Supervisor {
	s := &Supervisor{
		dataRoot:  dataRoot,
		store:     store,
		reg:       reg,
		running:   make(map[string]*procState),
		spawn:     spawnDetached,
		terminate: terminateTree,
		probe:     ports.FindAvailablePort,
		ready:     waitForGateway,
		log:       logging.Component("supervisor"),
	}

	known := project.KnownIDs(projects)
	for _, serverType := range []string{catalog.ServiceNginx, catalog.ServiceApache} {
		for _, id := range cleanupOrphanedVhosts(dataRoot, serverType, known) {
			s.log.Info().Str("project", id).Str("server", serverType).Msg("removed orphaned site config")
		}
	}
	return s
}

// Running returns a snapshot of the running-process table, sorted by project
// id.
func (s *Supervisor) Running() []RunningProcessEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]RunningProcessEntry, 0, len(s.running))
	for _, state := range s.running {
		entries = append(entries, state.entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ProjectID < entries[j].ProjectID })
	return entries
}

// Restore re-seeds the running table from persisted state, reconnecting with
// processes an earlier invocation left running. Binaries are re-resolved so
// the watchdog and reload keep working after a restore.
func (s *Supervisor) Restore(entries []RunningProcessEntry, projects []project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		state := &procState{entry: entry}
		if p, ok := project.Find(projects, entry.ProjectID); ok {
			if bin, ok := s.reg.BinaryPath(entry.ServerType, entry.ServerVersion); ok {
				state.serverBin = bin
			}
			if bin, ok := s.reg.GatewayBinaryPath(p.PHPVersion); ok {
				state.gatewayBin = bin
				if args, err := s.gatewayArgs(bin, p.ID, entry.GatewayPort); err == nil {
					state.gatewayArgs = args
				}
			}
		}
		s.running[entry.ProjectID] = state
	}
}

// StartProject brings up the web server and FastCGI gateway for a project.
// Starting an already-running project returns the existing entry.
func (s *Supervisor) StartProject(p project.Project) (RunningProcessEntry, error) {
	if err := p.Validate(); err != nil {
		return RunningProcessEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.running[p.ID]; ok {
		return state.entry, nil
	}

	serverBin, ok := s.reg.BinaryPath(p.ServerType, p.ServerVersion)
	if !ok {
		return RunningProcessEntry{}, fmt.Errorf(
			"%s %s is not installed. Run 'devstack install %s %s' first",
			p.ServerType, p.ServerVersion, p.ServerType, p.ServerVersion)
	}
	gatewayBin, ok := s.reg.GatewayBinaryPath(p.PHPVersion)
	if !ok {
		return RunningProcessEntry{}, fmt.Errorf(
			"php %s is not installed. Run 'devstack install php %s' first",
			p.PHPVersion, p.PHPVersion)
	}

	port, err := s.resolveGatewayPort(p.PHPVersion)
	if err != nil {
		return RunningProcessEntry{}, err
	}

	installDir := s.reg.InstallDir(p.ServerType, p.ServerVersion)
	mainConf, err := writeMainConfig(s.dataRoot, p.ServerType, p.ServerVersion, installDir)
	if err != nil {
		return RunningProcessEntry{}, err
	}
	if _, err := writeVhost(s.dataRoot, p, port); err != nil {
		return RunningProcessEntry{}, err
	}

	gatewayArgs, err := s.gatewayArgs(gatewayBin, p.ID, port)
	if err != nil {
		return RunningProcessEntry{}, err
	}
	gatewayPID, err := s.spawn(gatewayBin, gatewayArgs)
	if err != nil {
		return RunningProcessEntry{}, fmt.Errorf("failed to start php gateway for %s: %w", p.ID, err)
	}
	if err := s.ready(port); err != nil {
		s.terminate(gatewayPID)
		removeVhost(s.dataRoot, p.ServerType, p.ID)
		return RunningProcessEntry{}, fmt.Errorf("php gateway for %s did not become ready: %w", p.ID, err)
	}

	serverPID, err := s.spawn(serverBin, serverArgs(p.ServerType, mainConf, installDir))
	if err != nil {
		s.terminate(gatewayPID)
		removeVhost(s.dataRoot, p.ServerType, p.ID)
		return RunningProcessEntry{}, fmt.Errorf("failed to start %s for %s: %w", p.ServerType, p.ID, err)
	}

	state := &procState{
		entry: RunningProcessEntry{
			ProjectID:     p.ID,
			ServerType:    p.ServerType,
			ServerVersion: p.ServerVersion,
			ServerPID:     serverPID,
			GatewayPID:    gatewayPID,
			GatewayPort:   port,
		},
		gatewayBin:  gatewayBin,
		gatewayArgs: gatewayArgs,
		serverBin:   serverBin,
	}
	s.running[p.ID] = state
	s.log.Info().
		Str("project", p.ID).
		Int("serverPid", serverPID).
		Int("gatewayPid", gatewayPID).
		Int("gatewayPort", port).
		Msg("project started")
	return state.entry, nil
}

// StopProject tears down a project's process pair and removes its site
// configuration. Dead or missing processes count as a successful stop.
func (s *Supervisor) StopProject(projectID string) error {
	s.mu.Lock()
	state, ok := s.running[projectID]
	if ok {
		delete(s.running, projectID)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	for _, pid := range []int{state.entry.ServerPID, state.entry.GatewayPID} {
		if outcome := s.terminate(pid); outcome == TerminateOutcomeFailed {
			s.log.Warn().Str("project", projectID).Int("pid", pid).Msg("failed to terminate process tree")
		}
	}
	removeVhost(s.dataRoot, state.entry.ServerType, projectID)
	s.log.Info().Str("project", projectID).Msg("project stopped")
	return nil
}

// StopAll stops every running project.
func (s *Supervisor) StopAll() {
	for _, entry := range s.Running() {
		_ = s.StopProject(entry.ProjectID)
	}
}

// ReloadConfig asks every distinct running web server to re-read its
// configuration without dropping connections. Reload commands are
// fire-and-forget: a server that ignores the signal keeps serving with its
// old configuration.
func (s *Supervisor) ReloadConfig() {
	s.mu.Lock()
	seen := make(map[string]bool)
	type reloadTarget struct {
		bin        string
		serverType string
		version    string
	}
	var targets []reloadTarget
	for _, state := range s.running {
		key := state.entry.ServerType + "-" + state.entry.ServerVersion
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, reloadTarget{
			bin:        state.serverBin,
			serverType: state.entry.ServerType,
			version:    state.entry.ServerVersion,
		})
	}
	s.mu.Unlock()

	for _, target := range targets {
		conf := mainConfigPath(s.dataRoot, target.serverType, target.version)
		if _, err := s.spawn(target.bin, reloadArgs(target.serverType, conf)); err != nil {
			s.log.Warn().Str("server", target.serverType).Err(err).Msg("config reload failed")
		}
	}
}

// resolveGatewayPort turns a PHP version's nominal port into a free one,
// scanning upward when the nominal port is taken. Ports already handed to
// running gateways are skipped even before the OS sees a bind.
func (s *Supervisor) resolveGatewayPort(phpVersion string) (int, error) {
	assignment, err := s.store.PortAssignment(catalog.ServicePHP, phpVersion)
	if err != nil {
		return 0, err
	}

	inUse := make(map[int]bool)
	for _, state := range s.running {
		inUse[state.entry.GatewayPort] = true
	}

	candidate := assignment.Nominal()
	for attempts := 0; attempts < portScanAttempts; attempts++ {
		if inUse[candidate] {
			candidate++
			continue
		}
		port, ok := s.probe(candidate, portScanAttempts-attempts, ports.DefaultHost)
		if !ok {
			break
		}
		if !inUse[port] {
			return port, nil
		}
		candidate = port + 1
	}
	return 0, fmt.Errorf("no free gateway port near %d for php %s", assignment.Nominal(), phpVersion)
}

// gatewayArgs builds the gateway command line. php-cgi binds directly;
// php-fpm needs a generated pool configuration.
func (s *Supervisor) gatewayArgs(gatewayBin, projectID string, port int) ([]string, error) {
	addr := fmt.Sprintf("%s:%d", ports.DefaultHost, port)
	if strings.Contains(filepath.Base(gatewayBin), "php-cgi") {
		return []string{"-b", addr}, nil
	}
	conf, err := writeGatewayConfig(s.dataRoot, projectID, addr)
	if err != nil {
		return nil, err
	}
	return []string{"--nodaemonize", "--fpm-config", conf}, nil
}

func serverArgs(serverType, mainConf, installDir string) []string {
	if serverType == catalog.ServiceApache {
		return []string{"-f", mainConf, "-D", "FOREGROUND"}
	}
	return []string{"-c", mainConf, "-p", installDir, "-g", "daemon off;"}
}

func reloadArgs(serverType, mainConf string) []string {
	if serverType == catalog.ServiceApache {
		return []string{"-f", mainConf, "-k", "graceful"}
	}
	return []string{"-c", mainConf, "-s", "reload"}
}

// spawnDetached starts a process without waiting for it, reaping it in the
// background so it cannot linger as a zombie.
func spawnDetached(bin string, args []string) (int, error) {
	cmd := exec.Command(bin, args...)
	cmd.Dir = filepath.Dir(bin)
	configureProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}
