package supervisor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// DefaultMemoryCeiling is the resident-set ceiling for one gateway.
	DefaultMemoryCeiling uint64 = 512 * 1024 * 1024
	// DefaultWatchInterval is how often gateways are sampled.
	DefaultWatchInterval = 30 * time.Second
)

// Watchdog periodically samples the resident memory of every running
// gateway and restarts any that crossed the ceiling. Only the offending
// project's gateway is recycled; its web server and every other project keep
// running.
type Watchdog struct {
	sup      *Supervisor
	ceiling  uint64
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// sample is injectable for tests.
	sample func(pid int) (uint64, error)
}

// NewWatchdog returns a watchdog over the supervisor's gateways. Zero values
// select the defaults.
func NewWatchdog(sup *Supervisor, ceiling uint64, interval time.Duration) *Watchdog {
	if ceiling == 0 {
		ceiling = DefaultMemoryCeiling
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watchdog{
		sup:      sup,
		ceiling:  ceiling,
		interval: interval,
		sample:   sampleRSS,
	}
}

// Start begins sampling until Stop is called.
func (w *Watchdog) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Check()
			}
		}
	}()
}

// Stop halts sampling and waits for the loop to exit.
func (w *Watchdog) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

// Check samples every running gateway once, restarting those over the
// ceiling. Returns the project ids that were restarted.
func (w *Watchdog) Check() []string {
	var restarted []string
	for _, entry := range w.sup.Running() {
		rss, err := w.sample(entry.GatewayPID)
		if err != nil {
			// Sampling a gateway that just exited is not an error worth
			// surfacing; the next start or stop reconciles the table.
			continue
		}
		if rss <= w.ceiling {
			continue
		}
		w.sup.log.Warn().
			Str("project", entry.ProjectID).
			Uint64("rssBytes", rss).
			Uint64("ceilingBytes", w.ceiling).
			Msg("gateway over memory ceiling, restarting")
		if err := w.sup.restartGateway(entry.ProjectID); err != nil {
			w.sup.log.Error().Str("project", entry.ProjectID).Err(err).Msg("gateway restart failed")
			continue
		}
		restarted = append(restarted, entry.ProjectID)
	}
	return restarted
}

func sampleRSS(pid int) (uint64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// restartGateway recycles one project's gateway on its existing port. The
// web server keeps its FastCGI upstream address, so no vhost rewrite is
// needed.
func (s *Supervisor) restartGateway(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.running[projectID]
	if !ok {
		return nil
	}

	if outcome := s.terminate(state.entry.GatewayPID); outcome == TerminateOutcomeFailed {
		s.log.Warn().Str("project", projectID).Int("pid", state.entry.GatewayPID).Msg("failed to terminate gateway tree")
	}

	pid, err := s.spawn(state.gatewayBin, state.gatewayArgs)
	if err != nil {
		delete(s.running, projectID)
		return err
	}
	state.entry.GatewayPID = pid
	return nil
}
