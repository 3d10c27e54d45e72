package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/entity"
	"github.com/nerrad567/gray-logic-tracker/internal/fritz"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tracker/migrations"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	macLaptop  = "AA:BB:CC:DD:EE:01"
	macPhone   = "AA:BB:CC:DD:EE:02"
	macPrinter = "AA:BB:CC:DD:EE:03"
	macTV      = "AA:BB:CC:DD:EE:04"
)

// fakeRouter is an in-memory RouterClient.
type fakeRouter struct {
	mu sync.Mutex

	hosts      []fritz.Host
	disallowed map[string]bool
	info       fritz.DeviceInfo
	firmware   fritz.FirmwareInfo

	hostErr   error
	infoErr   error
	actionErr error

	calls   []string
	wanSets map[string]bool
}

func newFakeRouter(serial string, hosts ...fritz.Host) *fakeRouter {
	return &fakeRouter{
		hosts:      hosts,
		disallowed: make(map[string]bool),
		info:       fritz.DeviceInfo{Model: "FRITZ!Box 7590", Serial: serial, SoftwareVersion: "7.57"},
		firmware:   fritz.FirmwareInfo{LatestVersion: "7.60", UpdateAvailable: true},
		wanSets:    make(map[string]bool),
	}
}

func (r *fakeRouter) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *fakeRouter) setHosts(hosts ...fritz.Host) {
	r.mu.Lock()
	r.hosts = hosts
	r.mu.Unlock()
}

func (r *fakeRouter) setHostErr(err error) {
	r.mu.Lock()
	r.hostErr = err
	r.mu.Unlock()
}

func (r *fakeRouter) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRouter) HostList(context.Context) ([]fritz.Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("HostList")
	if r.hostErr != nil {
		return nil, r.hostErr
	}
	return append([]fritz.Host(nil), r.hosts...), nil
}

func (r *fakeRouter) WANAccessDisallowed(_ context.Context, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disallowed[ip], nil
}

func (r *fakeRouter) SetWANAccess(_ context.Context, ip string, allow bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetWANAccess")
	if r.actionErr != nil {
		return r.actionErr
	}
	r.wanSets[ip] = allow
	r.disallowed[ip] = !allow
	return nil
}

func (r *fakeRouter) DeviceInfo(context.Context) (fritz.DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.infoErr != nil {
		return fritz.DeviceInfo{}, r.infoErr
	}
	return r.info, nil
}

func (r *fakeRouter) FirmwareInfo(context.Context) (fritz.FirmwareInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firmware, nil
}

func (r *fakeRouter) Reboot(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Reboot")
	return r.actionErr
}

func (r *fakeRouter) Reconnect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Reconnect")
	return r.actionErr
}

func (r *fakeRouter) FirmwareUpdate(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("FirmwareUpdate")
	if r.actionErr != nil {
		return "", r.actionErr
	}
	return "Started", nil
}

func host(mac, ip, name string, active bool) fritz.Host {
	return fritz.Host{MAC: mac, IP: ip, Name: name, Active: active}
}

// fakeDialer hands out fakeRouters by router id.
type fakeDialer struct {
	mu      sync.Mutex
	routers map[string]*fakeRouter
	errs    map[string]error
	dials   int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{routers: make(map[string]*fakeRouter), errs: make(map[string]error)}
}

func (d *fakeDialer) setErr(id string, err error) {
	d.mu.Lock()
	d.errs[id] = err
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(_ context.Context, cfg config.RouterConfig) (RouterClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if err := d.errs[cfg.ID]; err != nil {
		return nil, err
	}
	r, ok := d.routers[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no fake router %q", fritz.ErrConnection, cfg.ID)
	}
	return r, nil
}

// fakeClock is a Clock with a fixed time and manually fired tickers.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testStart}
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

func (c *fakeClock) Ticker(d time.Duration) coordinator.Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 1), interval: d}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// TickInterval fires every ticker created with interval d.
func (c *fakeClock) TickInterval(d time.Duration) {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.interval != d {
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (c *fakeClock) TickerCount(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if t.interval == d {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  {}

// recordingSink records every call in order.
type recordingSink struct {
	mu      sync.Mutex
	added   []TrackerState
	changed []TrackerState
	removed []TrackerState
	routers []RouterState
}

func (s *recordingSink) TrackerAdded(t TrackerState) {
	s.mu.Lock()
	s.added = append(s.added, t)
	s.mu.Unlock()
}

func (s *recordingSink) TrackerChanged(t TrackerState) {
	s.mu.Lock()
	s.changed = append(s.changed, t)
	s.mu.Unlock()
}

func (s *recordingSink) TrackerRemoved(t TrackerState) {
	s.mu.Lock()
	s.removed = append(s.removed, t)
	s.mu.Unlock()
}

func (s *recordingSink) RouterChanged(r RouterState) {
	s.mu.Lock()
	s.routers = append(s.routers, r)
	s.mu.Unlock()
}

func (s *recordingSink) Added() []TrackerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrackerState(nil), s.added...)
}

func (s *recordingSink) Changed() []TrackerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrackerState(nil), s.changed...)
}

func (s *recordingSink) Removed() []TrackerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrackerState(nil), s.removed...)
}

func (s *recordingSink) Routers() []RouterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RouterState(nil), s.routers...)
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	s.added, s.changed, s.removed, s.routers = nil, nil, nil, nil
	s.mu.Unlock()
}

// mockLogger counts warnings and errors.
type mockLogger struct {
	mu     sync.Mutex
	warns  int
	errors int
}

func (l *mockLogger) Debug(string, ...any) {}
func (l *mockLogger) Info(string, ...any)  {}

func (l *mockLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *mockLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *mockLogger) counts() (warns, errors int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns, l.errors
}

// newEntityRegistry returns a registry backed by an in-memory database.
func newEntityRegistry(t *testing.T) *entity.Registry {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return entity.NewRegistry(entity.NewSQLiteRepository(db))
}

func routerConfig(id string) config.RouterConfig {
	return config.RouterConfig{
		ID:           id,
		Host:         "192.168.178.1",
		Port:         49000,
		PollInterval: 30,
		Timeout:      5,
	}
}

// testEnv is an integration wired to fakes.
type testEnv struct {
	integration *Integration
	dialer      *fakeDialer
	clock       *fakeClock
	sink        *recordingSink
	entities    *entity.Registry
}

func newTestEnv(t *testing.T, routers map[string]*fakeRouter) *testEnv {
	t.Helper()

	env := &testEnv{
		dialer:   newFakeDialer(),
		clock:    newFakeClock(),
		sink:     &recordingSink{},
		entities: newEntityRegistry(t),
	}

	cfgs := make([]config.RouterConfig, 0, len(routers))
	for id, r := range routers {
		env.dialer.routers[id] = r
		cfgs = append(cfgs, routerConfig(id))
	}

	i, err := New(Options{
		Routers:    cfgs,
		Entities:   env.entities,
		Dial:       env.dialer.Dial,
		Sinks:      []Sink{env.sink},
		RetryDelay: time.Minute,
		Clock:      env.clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(i.Unload)
	env.integration = i
	return env
}

func (env *testEnv) setup(t *testing.T) {
	t.Helper()
	if err := env.integration.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
}

func (env *testEnv) entry(t *testing.T, id string) *Entry {
	t.Helper()
	e, err := env.integration.Router(id)
	if err != nil {
		t.Fatalf("Router(%q) error = %v", id, err)
	}
	return e
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
