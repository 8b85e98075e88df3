package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
)

var log = logging.L("manager")

var ErrBusy = errors.New("an update is already running")

// Job names the list to download. Provider and Mirror are informational.
type Job struct {
	Provider string
	Mirror   string
	URL      string
}

type Outcome struct {
	State     domain.RunState
	Result    *domain.DownloadResult
	FromCache bool
	Targets   []domain.TargetRecord
	Err       error
}

type Options struct {
	// CacheFallback applies the cached list when a download fails.
	CacheFallback bool
}

// Manager owns the run state machine. At most one run is active; Start
// while busy requests cancellation instead.
type Manager struct {
	fetcher    domain.Fetcher
	cache      domain.Cache
	enumerator domain.Enumerator
	history    domain.History
	opts       Options

	// transMu orders the events of state transitions: Cancelling before the
	// final event, and a run's final event before the next run's first.
	transMu sync.Mutex

	mu      sync.Mutex
	state   domain.RunState
	cancel  context.CancelFunc
	sink    domain.ProgressFunc
	done    chan struct{}
	outcome *Outcome

	pubMu     sync.Mutex
	published domain.RunState
	events    chan domain.ProgressEvent
}

func New(
	fetcher domain.Fetcher,
	cache domain.Cache,
	enumerator domain.Enumerator,
	history domain.History,
	opts Options,
) *Manager {

	return &Manager{
		fetcher:    fetcher,
		cache:      cache,
		enumerator: enumerator,
		history:    history,
		opts:       opts,
		events:     make(chan domain.ProgressEvent, 256),
	}
}

func (m *Manager) State() domain.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Events carries progress for runs launched with Start. Sends never block:
// progress is dropped while the buffer is full, and a state change evicts the
// oldest buffered event, so the latest state always arrives.
func (m *Manager) Events() <-chan domain.ProgressEvent {
	return m.events
}

// Start launches a run in the background and reports true. If a run is
// downloading or decompressing it is cancelled instead and Start reports
// false.
func (m *Manager) Start(ctx context.Context, job Job) bool {
	m.transMu.Lock()
	m.mu.Lock()
	switch m.state {
	case domain.StateDownloading, domain.StateDecompressing:
		m.mu.Unlock()
		m.transMu.Unlock()
		m.Cancel()
		return false
	case domain.StateCancelling:
		m.mu.Unlock()
		m.transMu.Unlock()
		return false
	}
	runCtx := m.begin(ctx, m.publish)
	m.mu.Unlock()
	m.transMu.Unlock()

	go func() {
		outcome := m.pipeline(runCtx, job, m.publish)
		m.end(outcome, m.publish)
	}()
	return true
}

// Run executes a run synchronously. It fails with ErrBusy when another run
// is active. progress may call Cancel but must not call Start or Run.
func (m *Manager) Run(ctx context.Context, job Job, progress domain.ProgressFunc) *Outcome {
	if progress == nil {
		progress = func(domain.ProgressEvent) {}
	}

	m.mu.Lock()
	if m.state.Busy() || m.state == domain.StateCancelling {
		state := m.state
		m.mu.Unlock()
		return &Outcome{State: state, Err: ErrBusy}
	}
	runCtx := m.begin(ctx, progress)
	m.mu.Unlock()

	outcome := m.pipeline(runCtx, job, progress)
	m.end(outcome, progress)
	return outcome
}

// Cancel requests cancellation of the active run. An apply already in
// flight finishes first.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	busy := m.state.Busy()
	m.mu.Unlock()
	if !busy {
		return false
	}

	m.transMu.Lock()
	defer m.transMu.Unlock()

	// the run may have ended while waiting for transMu
	m.mu.Lock()
	if !m.state.Busy() {
		m.mu.Unlock()
		return false
	}
	m.state = domain.StateCancelling
	cancel, sink := m.cancel, m.sink
	m.mu.Unlock()

	log.Info("cancelling update")
	cancel()
	sink(domain.ProgressEvent{
		Percent: domain.Indeterminate,
		Caption: "Cancelling...",
		State:   domain.StateCancelling,
	})
	return true
}

// Wait blocks until the current run finishes and returns its outcome, or
// nil when nothing was ever started.
func (m *Manager) Wait() *Outcome {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// begin must be called with mu held.
func (m *Manager) begin(ctx context.Context, sink domain.ProgressFunc) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	m.state = domain.StateDownloading
	m.cancel = cancel
	m.sink = sink
	m.done = make(chan struct{})
	m.outcome = nil
	return runCtx
}

func (m *Manager) end(outcome *Outcome, sink domain.ProgressFunc) {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.mu.Lock()
	m.state = outcome.State
	m.outcome = outcome
	m.cancel()
	m.cancel = nil
	m.sink = nil
	done := m.done
	m.mu.Unlock()
	defer close(done)

	ev := domain.ProgressEvent{Percent: 100, State: outcome.State}
	switch {
	case outcome.State == domain.StateDone:
		ev.Caption = "Done"
	case outcome.Err != nil && !domain.IsCancelled(outcome.Err):
		ev.Caption = fmt.Sprintf("Failed: %v", outcome.Err)
	default:
		ev.Caption = "Cancelled"
	}
	sink(ev)
}

// advance moves Downloading to Decompressing when the pipeline reports it.
// Events are always stamped with the machine's state.
func (m *Manager) advance(reported domain.RunState) domain.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reported == domain.StateDecompressing && m.state == domain.StateDownloading {
		m.state = domain.StateDecompressing
	}
	return m.state
}

func (m *Manager) publish(ev domain.ProgressEvent) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	if ev.State == m.published {
		select {
		case m.events <- ev:
		default:
		}
		return
	}

	m.published = ev.State
	for {
		select {
		case m.events <- ev:
			return
		default:
		}
		select {
		case <-m.events:
		default:
		}
	}
}

// pipeline is the single definition of a run: download, cache, then apply
// to every detected application in order.
func (m *Manager) pipeline(ctx context.Context, job Job, sink domain.ProgressFunc) *Outcome {
	started := time.Now()
	outcome := &Outcome{}

	emit := func(ev domain.ProgressEvent) {
		ev.State = m.advance(ev.State)
		sink(ev)
	}

	defer func() {
		m.record(job, started, outcome)
	}()

	log.Info("starting update", "provider", job.Provider, "mirror", job.Mirror, logging.KeyURL, job.URL)

	result := m.fetcher.Download(ctx, job.URL, emit)
	if !result.OK() {
		if domain.IsCancelled(result.Err) || errors.Is(ctx.Err(), context.Canceled) {
			log.Info("update cancelled during download")
			outcome.State = domain.StateCancelled
			outcome.Err = domain.ErrCancelled
			return outcome
		}

		log.Warn("download failed", logging.KeyURL, job.URL, logging.KeyError, result.Err)

		cached := m.fallback()
		if cached == nil {
			outcome.State = domain.StateCancelled
			outcome.Err = result.Err
			return outcome
		}

		log.Warn("using cached list", "path", m.cache.Path())
		emit(domain.ProgressEvent{
			Percent: 100,
			Caption: fmt.Sprintf("Download failed, using cached list: %v", result.Err),
			State:   domain.StateDecompressing,
		})
		result = cached
		outcome.FromCache = true
	} else {
		m.cache.Set(result)
	}
	outcome.Result = result

	emit(domain.ProgressEvent{
		Percent: 100,
		Caption: "Looking for installed applications",
		State:   domain.StateDecompressing,
	})

	apps := m.enumerator.DetectInstalled(ctx)
	if len(apps) == 0 {
		log.Warn("no supported applications found")
	}

	for _, app := range apps {
		outcome.Targets = append(outcome.Targets, m.apply(ctx, app, result, emit))
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		outcome.State = domain.StateCancelled
		outcome.Err = domain.ErrCancelled
		return outcome
	}

	outcome.State = domain.StateDone
	return outcome
}

func (m *Manager) fallback() *domain.DownloadResult {
	if !m.opts.CacheFallback {
		return nil
	}
	cached := m.cache.Get()
	if cached == nil {
		log.Warn("no cached list to fall back to")
	}
	return cached
}

func (m *Manager) apply(ctx context.Context, app domain.DetectedApplication, result *domain.DownloadResult, emit domain.ProgressFunc) domain.TargetRecord {
	rec := domain.TargetRecord{Name: app.Name, Version: app.Version}

	if ctx.Err() != nil {
		rec.Status = domain.TargetSkipped
		rec.Error = domain.ErrCancelled.Error()
		return rec
	}

	err := app.Target.Apply(ctx, result, emit)
	switch {
	case err == nil:
		rec.Status = domain.TargetApplied
	case domain.IsCancelled(err), errors.Is(err, domain.ErrSkipped):
		rec.Status = domain.TargetSkipped
		rec.Error = err.Error()
		log.Info("application skipped", logging.KeyApp, app.Name, logging.KeyError, err)
	default:
		rec.Status = domain.TargetFailed
		rec.Error = err.Error()
		log.Warn("couldn't update application", logging.KeyApp, app.Name, logging.KeyError, err)
	}
	return rec
}

func (m *Manager) record(job Job, started time.Time, outcome *Outcome) {
	if m.history == nil {
		return
	}

	run := &domain.RunRecord{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Provider:   job.Provider,
		Mirror:     job.Mirror,
		URL:        job.URL,
		State:      outcome.State.String(),
		FromCache:  outcome.FromCache,
		Targets:    outcome.Targets,
	}
	if outcome.Result != nil {
		run.Timestamp = outcome.Result.Timestamp
		run.Length = outcome.Result.Length
	}
	if outcome.Err != nil {
		run.Error = outcome.Err.Error()
	}

	if err := m.history.Record(run); err != nil {
		log.Warn("couldn't record run history", logging.KeyError, err)
	}
}
