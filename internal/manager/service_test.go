package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
)

type fakeFetcher struct {
	result  *domain.DownloadResult
	started chan struct{}
	block   bool
	burst   int
	calls   int
}

func (f *fakeFetcher) Download(ctx context.Context, url string, progress domain.ProgressFunc) *domain.DownloadResult {
	f.calls++
	progress(domain.ProgressEvent{Percent: 0, Caption: "Contacting", State: domain.StateDownloading})
	for i := 0; i < f.burst; i++ {
		progress(domain.ProgressEvent{Percent: i * 100 / f.burst, State: domain.StateDownloading})
	}

	if f.block {
		if f.started != nil {
			close(f.started)
		}
		<-ctx.Done()
		return &domain.DownloadResult{URL: url, Err: domain.ErrCancelled}
	}

	progress(domain.ProgressEvent{Percent: 100, State: domain.StateDownloading})
	progress(domain.ProgressEvent{Percent: domain.Indeterminate, Caption: "Decompressing...", State: domain.StateDecompressing})
	return f.result
}

type fakeCache struct {
	mu     sync.Mutex
	stored []*domain.DownloadResult
	cached *domain.DownloadResult
}

func (c *fakeCache) Get() *domain.DownloadResult { return c.cached }

func (c *fakeCache) Set(r *domain.DownloadResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append(c.stored, r)
}

func (c *fakeCache) Path() string { return "/tmp/ipfilter.dat" }
func (c *fakeCache) Clear() error { return nil }

type fakeTarget struct {
	name    string
	err     error
	onApply func()
	applied [][]byte
}

func (t *fakeTarget) Name() string { return t.name }

func (t *fakeTarget) Detect(context.Context) (*domain.DetectedApplication, error) { return nil, nil }

func (t *fakeTarget) Apply(ctx context.Context, r *domain.DownloadResult, progress domain.ProgressFunc) error {
	if ctx.Err() != nil {
		return domain.ErrCancelled
	}
	if t.onApply != nil {
		t.onApply()
	}
	if t.err != nil {
		return t.err
	}
	t.applied = append(t.applied, r.Payload)
	return nil
}

type fakeEnumerator struct {
	targets []*fakeTarget
}

func (e *fakeEnumerator) DetectInstalled(context.Context) []domain.DetectedApplication {
	apps := make([]domain.DetectedApplication, len(e.targets))
	for i, t := range e.targets {
		apps[i] = domain.DetectedApplication{Name: t.name, Version: "1.0", Target: t}
	}
	return apps
}

type fakeHistory struct {
	runs []domain.RunRecord
}

func (h *fakeHistory) Record(run *domain.RunRecord) error {
	h.runs = append(h.runs, *run)
	return nil
}

func (h *fakeHistory) List(int) ([]domain.RunRecord, error) { return h.runs, nil }
func (h *fakeHistory) Close() error                         { return nil }

func okResult(payload string) *domain.DownloadResult {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &domain.DownloadResult{
		URL:       "http://example.com/list.gz",
		Payload:   []byte(payload),
		Length:    int64(len(payload)),
		Format:    domain.FormatGZip,
		Timestamp: &ts,
	}
}

var job = Job{Provider: "davidmoore", Mirror: "github", URL: "http://example.com/list.gz"}

func TestRunAppliesToEveryTarget(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("list")}
	cache := &fakeCache{}
	a, b := &fakeTarget{name: "a"}, &fakeTarget{name: "b"}
	history := &fakeHistory{}

	m := New(fetcher, cache, &fakeEnumerator{targets: []*fakeTarget{a, b}}, history, Options{})

	var states []domain.RunState
	outcome := m.Run(context.Background(), job, func(ev domain.ProgressEvent) {
		states = append(states, ev.State)
	})

	if outcome.State != domain.StateDone || outcome.Err != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if m.State() != domain.StateDone {
		t.Errorf("state = %v", m.State())
	}
	if len(cache.stored) != 1 || cache.stored[0] != fetcher.result {
		t.Fatalf("cache.Set calls = %d", len(cache.stored))
	}
	for _, tgt := range []*fakeTarget{a, b} {
		if len(tgt.applied) != 1 || string(tgt.applied[0]) != "list" {
			t.Errorf("%s applied = %q", tgt.name, tgt.applied)
		}
	}

	if states[0] != domain.StateDownloading {
		t.Errorf("first state = %v", states[0])
	}
	if states[len(states)-1] != domain.StateDone {
		t.Errorf("last state = %v", states[len(states)-1])
	}
	sawDecompressing := false
	for _, s := range states {
		if s == domain.StateDecompressing {
			sawDecompressing = true
		}
		if sawDecompressing && s == domain.StateDownloading {
			t.Fatal("state went back to downloading")
		}
	}
	if !sawDecompressing {
		t.Error("never reported decompressing")
	}

	if len(history.runs) != 1 {
		t.Fatalf("history runs = %d", len(history.runs))
	}
	run := history.runs[0]
	if run.State != "done" || run.Length != 4 || run.Timestamp == nil || len(run.Targets) != 2 {
		t.Errorf("run = %+v", run)
	}
}

func TestRunFailingTargetDoesNotStopOthers(t *testing.T) {
	a := &fakeTarget{name: "a"}
	broken := &fakeTarget{name: "broken", err: &domain.ApplicationError{App: "broken", Err: errors.New("disk full")}}
	c := &fakeTarget{name: "c"}

	m := New(&fakeFetcher{result: okResult("list")}, &fakeCache{},
		&fakeEnumerator{targets: []*fakeTarget{a, broken, c}}, nil, Options{})

	outcome := m.Run(context.Background(), job, nil)

	if outcome.State != domain.StateDone {
		t.Fatalf("state = %v", outcome.State)
	}
	if outcome.Err != nil {
		t.Fatalf("a target failure is not a run failure: %v", outcome.Err)
	}
	want := []domain.TargetStatus{domain.TargetApplied, domain.TargetFailed, domain.TargetApplied}
	for i, rec := range outcome.Targets {
		if rec.Status != want[i] {
			t.Errorf("targets[%d] = %s, want %s", i, rec.Status, want[i])
		}
	}
	if outcome.Targets[1].Error == "" {
		t.Error("failure should be recorded")
	}
	if len(c.applied) != 1 {
		t.Error("target after the failure was not attempted")
	}
}

func TestRunSkippedTarget(t *testing.T) {
	skipped := &fakeTarget{name: "legacy", err: &domain.ApplicationError{App: "legacy", Err: domain.ErrSkipped}}
	m := New(&fakeFetcher{result: okResult("list")}, &fakeCache{},
		&fakeEnumerator{targets: []*fakeTarget{skipped}}, nil, Options{})

	outcome := m.Run(context.Background(), job, nil)
	if outcome.Targets[0].Status != domain.TargetSkipped {
		t.Fatalf("status = %s", outcome.Targets[0].Status)
	}
}

func TestRunDownloadFailure(t *testing.T) {
	netErr := &domain.NetworkError{URL: job.URL, StatusCode: 503}
	cache := &fakeCache{}
	a := &fakeTarget{name: "a"}
	history := &fakeHistory{}

	m := New(&fakeFetcher{result: &domain.DownloadResult{URL: job.URL, Err: netErr}}, cache,
		&fakeEnumerator{targets: []*fakeTarget{a}}, history, Options{})

	outcome := m.Run(context.Background(), job, nil)

	if outcome.State != domain.StateCancelled {
		t.Fatalf("state = %v", outcome.State)
	}
	var ne *domain.NetworkError
	if !errors.As(outcome.Err, &ne) {
		t.Fatalf("err = %v", outcome.Err)
	}
	if len(cache.stored) != 0 || len(a.applied) != 0 {
		t.Fatal("failed download must not be cached or applied")
	}
	if len(history.runs) != 1 || history.runs[0].Error == "" {
		t.Fatalf("history = %+v", history.runs)
	}
}

func TestRunCacheFallback(t *testing.T) {
	cached := okResult("cached list")
	cache := &fakeCache{cached: cached}
	a := &fakeTarget{name: "a"}
	failed := &domain.DownloadResult{URL: job.URL, Err: &domain.NetworkError{URL: job.URL, Err: errors.New("refused")}}

	m := New(&fakeFetcher{result: failed}, cache, &fakeEnumerator{targets: []*fakeTarget{a}}, nil,
		Options{CacheFallback: true})

	outcome := m.Run(context.Background(), job, nil)

	if outcome.State != domain.StateDone || !outcome.FromCache {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(a.applied) != 1 || string(a.applied[0]) != "cached list" {
		t.Fatalf("applied = %q", a.applied)
	}
	if len(cache.stored) != 0 {
		t.Fatal("cached list must not be written back")
	}
}

func TestRunCacheFallbackEmpty(t *testing.T) {
	failed := &domain.DownloadResult{URL: job.URL, Err: errors.New("refused")}
	m := New(&fakeFetcher{result: failed}, &fakeCache{}, &fakeEnumerator{}, nil, Options{CacheFallback: true})

	outcome := m.Run(context.Background(), job, nil)
	if outcome.State != domain.StateCancelled || outcome.FromCache {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestStartTwiceCancels(t *testing.T) {
	started := make(chan struct{})
	fetcher := &fakeFetcher{block: true, started: started}
	cache := &fakeCache{cached: okResult("cached")}
	a := &fakeTarget{name: "a"}

	m := New(fetcher, cache, &fakeEnumerator{targets: []*fakeTarget{a}}, nil, Options{CacheFallback: true})

	if !m.Start(context.Background(), job) {
		t.Fatal("first Start should launch a run")
	}
	<-started

	if m.Start(context.Background(), job) {
		t.Fatal("second Start should cancel, not launch")
	}

	outcome := m.Wait()
	if outcome.State != domain.StateCancelled || !domain.IsCancelled(outcome.Err) {
		t.Fatalf("outcome = %+v", outcome)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetcher called %d times", fetcher.calls)
	}
	if len(cache.stored) != 0 || len(a.applied) != 0 {
		t.Fatal("cancelled run must not cache or apply anything")
	}
	if outcome.FromCache {
		t.Fatal("cancellation must not fall back to the cache")
	}

	var states []domain.RunState
	for len(m.Events()) > 0 {
		states = append(states, (<-m.Events()).State)
	}
	if len(states) < 3 {
		t.Fatalf("events = %v", states)
	}
	if states[len(states)-2] != domain.StateCancelling || states[len(states)-1] != domain.StateCancelled {
		t.Fatalf("events = %v", states)
	}
}

func TestStartAfterFinishRunsAgain(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("list")}
	m := New(fetcher, &fakeCache{}, &fakeEnumerator{}, nil, Options{})

	for i := 0; i < 2; i++ {
		if !m.Start(context.Background(), job) {
			t.Fatalf("Start #%d refused", i+1)
		}
		if outcome := m.Wait(); outcome.State != domain.StateDone {
			t.Fatalf("run %d state = %v", i+1, outcome.State)
		}
	}
	if fetcher.calls != 2 {
		t.Fatalf("fetcher calls = %d", fetcher.calls)
	}
}

func TestCancelDuringApplySkipsRemaining(t *testing.T) {
	var m *Manager
	first := &fakeTarget{name: "first"}
	first.onApply = func() { m.Cancel() }
	second := &fakeTarget{name: "second"}

	m = New(&fakeFetcher{result: okResult("list")}, &fakeCache{},
		&fakeEnumerator{targets: []*fakeTarget{first, second}}, nil, Options{})

	outcome := m.Run(context.Background(), job, nil)

	if outcome.State != domain.StateCancelled {
		t.Fatalf("state = %v", outcome.State)
	}
	if len(first.applied) != 1 {
		t.Fatal("apply in flight must run to completion")
	}
	if len(second.applied) != 0 {
		t.Fatal("pending apply must be skipped")
	}
	if outcome.Targets[0].Status != domain.TargetApplied || outcome.Targets[1].Status != domain.TargetSkipped {
		t.Fatalf("targets = %+v", outcome.Targets)
	}
}

func TestRunWhileBusy(t *testing.T) {
	started := make(chan struct{})
	m := New(&fakeFetcher{block: true, started: started}, &fakeCache{}, &fakeEnumerator{}, nil, Options{})

	m.Start(context.Background(), job)
	<-started

	if outcome := m.Run(context.Background(), job, nil); !errors.Is(outcome.Err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", outcome.Err)
	}

	m.Cancel()
	m.Wait()
}

func TestCancelWhenIdle(t *testing.T) {
	m := New(&fakeFetcher{}, &fakeCache{}, &fakeEnumerator{}, nil, Options{})
	if m.Cancel() {
		t.Fatal("nothing to cancel")
	}
	if m.Wait() != nil {
		t.Fatal("Wait before any run should return nil")
	}
	if m.State() != domain.StateReady {
		t.Fatalf("state = %v", m.State())
	}
}

func drain(m *Manager) []domain.ProgressEvent {
	var events []domain.ProgressEvent
	for len(m.Events()) > 0 {
		events = append(events, <-m.Events())
	}
	return events
}

func waitOutcome(t *testing.T, m *Manager) *Outcome {
	t.Helper()
	done := make(chan *Outcome, 1)
	go func() { done <- m.Wait() }()
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not finish; state = %v, buffered events = %d", m.State(), len(m.Events()))
		return nil
	}
}

func TestStartCancelsWithFullEventBuffer(t *testing.T) {
	started := make(chan struct{})
	m := New(&fakeFetcher{block: true, started: started, burst: 300}, &fakeCache{}, &fakeEnumerator{}, nil, Options{})

	m.Start(context.Background(), job)
	<-started
	if len(m.Events()) != cap(m.Events()) {
		t.Fatalf("buffered events = %d, want a full buffer", len(m.Events()))
	}

	launched := make(chan bool, 1)
	go func() { launched <- m.Start(context.Background(), job) }()
	select {
	case ok := <-launched:
		if ok {
			t.Fatal("Start while busy should cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Start blocked; state = %v, buffered events = %d", m.State(), len(m.Events()))
	}

	outcome := waitOutcome(t, m)
	if outcome.State != domain.StateCancelled {
		t.Fatalf("state = %v", outcome.State)
	}

	events := drain(m)
	if len(events) > cap(m.Events()) {
		t.Fatalf("events = %d", len(events))
	}
	if n := len(events); n < 2 || events[n-2].State != domain.StateCancelling || events[n-1].State != domain.StateCancelled {
		t.Fatalf("last events = %+v", events[max(0, len(events)-2):])
	}
}

func TestStartWithoutReader(t *testing.T) {
	m := New(&fakeFetcher{result: okResult("list"), burst: 1000}, &fakeCache{},
		&fakeEnumerator{targets: []*fakeTarget{{name: "a"}}}, nil, Options{})

	m.Start(context.Background(), job)
	if outcome := waitOutcome(t, m); outcome.State != domain.StateDone {
		t.Fatalf("state = %v", outcome.State)
	}

	events := drain(m)
	if last := events[len(events)-1]; last.State != domain.StateDone {
		t.Fatalf("last event = %+v", last)
	}
}

func TestCancelRacingCompletion(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := New(&fakeFetcher{result: okResult("list")}, &fakeCache{},
			&fakeEnumerator{targets: []*fakeTarget{{name: "a"}}}, nil, Options{})

		m.Start(context.Background(), job)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Cancel()
		}()
		outcome := m.Wait()
		wg.Wait()

		events := drain(m)
		last := events[len(events)-1]
		if last.State != outcome.State {
			t.Fatalf("iteration %d: last event %v, outcome %v", i, last.State, outcome.State)
		}
		for _, ev := range events[:len(events)-1] {
			if ev.State == domain.StateDone || ev.State == domain.StateCancelled {
				t.Fatalf("iteration %d: events after the final one: %+v", i, events)
			}
		}
	}
}
