// Package download owns the per-binary download/extract/install state
// machine: keyed pipelines, progress events, cancellation and the hand-off to
// archive extraction and post-install hooks.
package download

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/devstack-cli/devstack/src/internal/archive"
	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/logging"
	"github.com/devstack-cli/devstack/src/internal/paths"
)

const (
	// taskRetention keeps terminal tasks visible for a short while so late
	// UI polls still see the outcome, then the cache janitor drops them.
	taskRetention      = 15 * time.Second
	janitorInterval    = 5 * time.Second
	progressMinPeriod  = 200 * time.Millisecond
	progressMinPercent = 1
)

// ProgressFunc receives task events.
type ProgressFunc func(Event)

type fetchFunc func(ctx context.Context, client *http.Client, url, dest string, progress fetchProgress) error

type extractFunc func(ctx context.Context, src, dest string, report archive.ProgressFunc) error

type hookFunc func(desc catalog.Descriptor, installDir string, log zerolog.Logger)

// taskState is the manager-private task plus its throttling state.
type taskState struct {
	task    Task
	staging string
	limiter *rate.Limiter
	lastPct int
}

// Manager runs download pipelines keyed by "<service>-<version>". All state
// transitions for one key happen on that key's single pipeline goroutine, so
// they never interleave; distinct keys run fully in parallel.
type Manager struct {
	mu          sync.Mutex
	store       *catalog.Store
	dataRoot    string
	client      *http.Client
	tasks       *gocache.Cache
	cancels     map[string]context.CancelFunc
	cancelled   map[string]struct{}
	subscribers map[int]ProgressFunc
	nextSub     int
	log         zerolog.Logger

	// Swappable in tests.
	fetch   fetchFunc
	extract extractFunc
	hooks   hookFunc
}

// NewManager returns a manager installing binaries under dataRoot using the
// given catalog store.
func NewManager(store *catalog.Store, dataRoot string) *Manager {
	return &Manager{
		store:       store,
		dataRoot:    dataRoot,
		client:      newDownloadClient(),
		tasks:       gocache.New(gocache.NoExpiration, janitorInterval),
		cancels:     make(map[string]context.CancelFunc),
		cancelled:   make(map[string]struct{}),
		subscribers: make(map[int]ProgressFunc),
		log:         logging.Component("download"),
		fetch:       fetchToFile,
		extract:     archive.Extract,
		hooks:       runPostInstallHooks,
	}
}

// Subscribe registers a progress callback and returns its unsubscribe
// function. Callbacks run outside the manager lock and must not block for
// long.
func (m *Manager) Subscribe(fn ProgressFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Task returns a snapshot of the task for a key.
func (m *Manager) Task(key string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.taskLocked(key); ok {
		return state.task, true
	}
	return Task{}, false
}

// StartDownload begins (or joins) the pipeline for a service version.
// Idempotent per key: a second call while one is in flight observes the
// existing task instead of starting a duplicate.
func (m *Manager) StartDownload(service, version string) (Task, error) {
	desc, err := m.store.Descriptor(service, version, paths.Platform())
	if err != nil {
		return Task{}, err
	}
	key := desc.TaskKey()

	m.mu.Lock()
	if state, ok := m.taskLocked(key); ok && !state.task.Status.Terminal() {
		task := state.task
		m.mu.Unlock()
		return task, nil
	}

	state := &taskState{
		task: Task{
			ID:      key,
			Service: service,
			Version: version,
			Status:  StatusStarting,
		},
		staging: filepath.Join(paths.DownloadsDir(m.dataRoot), desc.Filename),
		limiter: rate.NewLimiter(rate.Every(progressMinPeriod), 1),
		lastPct: -1,
	}
	m.tasks.Set(key, state, gocache.NoExpiration)
	delete(m.cancelled, key)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancels[key] = cancel

	event := m.eventLocked(state)
	// The snapshot is taken while still holding the lock: once run() is
	// launched it mutates state.task concurrently.
	snapshot := state.task
	m.mu.Unlock()
	m.publish(event)

	m.log.Info().Str("task", key).Msg("starting download")
	go m.run(ctx, desc, key)
	return snapshot, nil
}

// CancelDownload aborts an in-flight pipeline: the network request is torn
// down, the partial file removed and the task deleted. Returns false when no
// cancellable task exists for the id.
func (m *Manager) CancelDownload(key string) bool {
	m.mu.Lock()
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return false
	}
	switch state.task.Status {
	case StatusStarting, StatusDownloading, StatusExtracting:
		// Cancellable.
	default:
		// Installing is too late to abort cleanly; terminal states have
		// nothing left to cancel.
		m.mu.Unlock()
		return false
	}

	// Mark first: any in-flight callback that fires after this point finds
	// the id cancelled and becomes a no-op.
	m.cancelled[key] = struct{}{}
	if cancel, ok := m.cancels[key]; ok {
		cancel()
		delete(m.cancels, key)
	}
	state.task.Status = StatusCancelled
	event := m.eventLocked(state)
	staging := state.staging
	m.tasks.Delete(key)
	m.mu.Unlock()

	_ = os.Remove(staging)
	m.publish(event)
	m.log.Info().Str("task", key).Msg("download cancelled")
	return true
}

// run is the single awaited chain for one task key.
func (m *Manager) run(ctx context.Context, desc catalog.Descriptor, key string) {
	defer func() {
		m.mu.Lock()
		delete(m.cancels, key)
		m.mu.Unlock()
	}()

	staging := filepath.Join(paths.DownloadsDir(m.dataRoot), desc.Filename)
	if err := os.MkdirAll(filepath.Dir(staging), 0750); err != nil {
		m.fail(key, fmt.Errorf("failed to prepare staging directory: %w", err))
		return
	}

	if !m.transition(key, StatusDownloading) {
		return
	}
	if err := m.download(ctx, desc, key, staging); err != nil {
		if ctx.Err() != nil || m.isCancelled(key) {
			_ = os.Remove(staging)
			return
		}
		_ = os.Remove(staging)
		m.fail(key, fmt.Errorf("%w; you can download the file manually from %s and place it under %s",
			err, desc.URL, m.installDir(desc)))
		return
	}

	if !m.transition(key, StatusExtracting) {
		return
	}
	dest := m.installDir(desc)
	err := m.extract(ctx, staging, dest, func(p archive.Progress) {
		m.updateExtractProgress(key, p)
	})
	if err != nil {
		_ = os.Remove(staging)
		if ctx.Err() != nil || m.isCancelled(key) {
			return
		}
		m.fail(key, err)
		return
	}

	if !m.transition(key, StatusInstalling) {
		return
	}
	m.hooks(desc, dest, m.log)

	_ = os.Remove(staging)
	m.complete(key)
}

// download tries the primary URL, then each declared fallback in order.
func (m *Manager) download(ctx context.Context, desc catalog.Descriptor, key, staging string) error {
	urls := append([]string{desc.URL}, desc.FallbackURLs...)

	var lastErr error
	for i, url := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			m.log.Warn().Str("task", key).Str("url", url).Msg("retrying with fallback URL")
		}

		lastErr = m.fetch(ctx, m.client, url, staging, func(downloaded, total int64) {
			m.updateDownloadProgress(key, downloaded, total)
		})
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn().Str("task", key).Str("url", url).Err(lastErr).Msg("download attempt failed")
	}
	return lastErr
}

// transition moves a task to the next status, emitting unthrottled. Returns
// false when the task was cancelled in the meantime.
func (m *Manager) transition(key string, status Status) bool {
	m.mu.Lock()
	if _, gone := m.cancelled[key]; gone {
		m.mu.Unlock()
		return false
	}
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return false
	}
	state.task.Status = status
	event := m.eventLocked(state)
	m.mu.Unlock()

	m.publish(event)
	return true
}

func (m *Manager) updateDownloadProgress(key string, downloaded, total int64) {
	m.mu.Lock()
	if _, gone := m.cancelled[key]; gone {
		m.mu.Unlock()
		return
	}
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return
	}

	state.task.Downloaded = downloaded
	state.task.Total = total
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(downloaded) / float64(total) * 100))
	}
	state.task.Progress = pct

	if pct-state.lastPct < progressMinPercent || !state.limiter.Allow() {
		m.mu.Unlock()
		return
	}
	state.lastPct = pct
	event := m.eventLocked(state)
	m.mu.Unlock()

	m.publish(event)
}

func (m *Manager) updateExtractProgress(key string, p archive.Progress) {
	m.mu.Lock()
	if _, gone := m.cancelled[key]; gone {
		m.mu.Unlock()
		return
	}
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return
	}

	state.task.Progress = p.Percent
	if p.Percent < 100 && (p.Percent-state.lastPct < progressMinPercent || !state.limiter.Allow()) {
		m.mu.Unlock()
		return
	}
	state.lastPct = p.Percent
	event := m.eventLocked(state)
	m.mu.Unlock()

	m.publish(event)
}

// complete finishes a task and schedules its removal.
func (m *Manager) complete(key string) {
	m.mu.Lock()
	if _, gone := m.cancelled[key]; gone {
		m.mu.Unlock()
		return
	}
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return
	}
	state.task.Status = StatusCompleted
	state.task.Progress = 100
	event := m.eventLocked(state)
	m.tasks.Set(key, state, taskRetention)
	m.mu.Unlock()

	m.publish(event)
	m.log.Info().Str("task", key).Msg("install completed")
}

// fail terminates a task with a human-readable error message. A no-op when
// the task was cancelled: a late failure callback must not resurrect state.
func (m *Manager) fail(key string, err error) {
	m.mu.Lock()
	if _, gone := m.cancelled[key]; gone {
		m.mu.Unlock()
		return
	}
	state, ok := m.taskLocked(key)
	if !ok {
		m.mu.Unlock()
		return
	}
	state.task.Status = StatusError
	state.task.Error = err.Error()
	event := m.eventLocked(state)
	m.tasks.Set(key, state, taskRetention)
	m.mu.Unlock()

	m.publish(event)
	m.log.Error().Str("task", key).Err(err).Msg("download task failed")
}

func (m *Manager) publish(event Event) {
	m.mu.Lock()
	fns := make([]ProgressFunc, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (m *Manager) isCancelled(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, gone := m.cancelled[key]
	return gone
}

func (m *Manager) taskLocked(key string) (*taskState, bool) {
	if v, ok := m.tasks.Get(key); ok {
		return v.(*taskState), true
	}
	return nil, false
}

func (m *Manager) eventLocked(state *taskState) Event {
	return Event{
		ID:         state.task.ID,
		Status:     state.task.Status,
		Progress:   state.task.Progress,
		Downloaded: state.task.Downloaded,
		Total:      state.task.Total,
		Error:      state.task.Error,
	}
}

func (m *Manager) installDir(desc catalog.Descriptor) string {
	return paths.VersionDir(m.dataRoot, desc.Service, desc.Version)
}
