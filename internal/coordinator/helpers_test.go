package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	errConn   = errors.New("test: connection refused")
	errAuth   = errors.New("test: bad credentials")
	errBroken = errors.New("test: malformed response")
)

var testTable = ClassifierTable{
	Transient: []error{errConn},
	Auth:      []error{errAuth},
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Ticker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick fires every ticker created so far. Non-blocking; a pending tick
// is coalesced like time.Ticker does.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (c *fakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// fakeHosts is a scripted HostFetcher.
type fakeHosts struct {
	mu    sync.Mutex
	hosts []HostInfo
	err   error
	calls int

	// block, when set, makes HostList wait until it is closed.
	block   chan struct{}
	entered chan struct{}

	// onCall runs inside HostList before returning.
	onCall func()
}

func (f *fakeHosts) HostList(ctx context.Context) ([]HostInfo, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	entered := f.entered
	onCall := f.onCall
	hosts := append([]HostInfo(nil), f.hosts...)
	err := f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if onCall != nil {
		onCall()
	}
	if err != nil {
		return nil, err
	}
	return hosts, nil
}

func (f *fakeHosts) set(hosts []HostInfo, err error) {
	f.mu.Lock()
	f.hosts = hosts
	f.err = err
	f.mu.Unlock()
}

func (f *fakeHosts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeWAN records lookups and answers from a table.
type fakeWAN struct {
	mu         sync.Mutex
	disallowed map[string]bool
	err        error
	lookups    []string
}

func (f *fakeWAN) WANAccess(_ context.Context, ip string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, ip)
	if f.err != nil {
		return false, f.err
	}
	return f.disallowed[ip], nil
}

func (f *fakeWAN) Lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lookups...)
}

// fakeMeta is a scripted MetadataFetcher.
type fakeMeta struct {
	mu    sync.Mutex
	md    Metadata
	err   error
	calls int
}

func (f *fakeMeta) DeviceMetadata(context.Context) (Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.md, f.err
}

func (f *fakeMeta) set(md Metadata, err error) {
	f.mu.Lock()
	f.md = md
	f.err = err
	f.mu.Unlock()
}

// eventRecorder collects dispatched events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) Kinds(filter ...EventKind) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := func(k EventKind) bool {
		if len(filter) == 0 {
			return true
		}
		for _, f := range filter {
			if f == k {
				return true
			}
		}
		return false
	}

	var out []EventKind
	for _, ev := range r.events {
		if keep(ev.Kind) {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// cycleRecorder is a CycleObserver.
type cycleRecorder struct {
	mu      sync.Mutex
	results []CycleResult
}

func (r *cycleRecorder) ObserveCycle(res CycleResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *cycleRecorder) Results() []CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleResult(nil), r.results...)
}
