package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/auth"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeTracker is an in-memory Tracker.
type fakeTracker struct {
	mu      sync.Mutex
	routers map[string]tracker.RouterState
	devices map[string][]tracker.TrackerState
	pending []string
	err     error // returned by every service call when set
	calls   []string
	removed int
	fwState string
}

func newFakeTracker() *fakeTracker {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeTracker{
		routers: map[string]tracker.RouterState{
			"fritz": {ID: "fritz", State: "ready", Available: true, Hosts: 2, Connected: 1, UniqueID: "SERIAL1", Model: "FRITZ!Box 7590"},
		},
		devices: map[string][]tracker.TrackerState{
			"fritz": {
				{RouterID: "fritz", MAC: "AA:BB:CC:DD:EE:01", Name: "laptop", IPAddress: "192.168.178.20", Connected: true, WANAccess: true, LastActivity: &seen, Available: true},
				{RouterID: "fritz", MAC: "AA:BB:CC:DD:EE:02", Name: "phone", IPAddress: "192.168.178.21", WANAccess: true, Available: true},
			},
		},
		fwState: "Started",
	}
}

func (f *fakeTracker) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeTracker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTracker) RouterStates() []tracker.RouterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tracker.RouterState, 0, len(f.routers))
	for _, rs := range f.routers {
		out = append(out, rs)
	}
	return out
}

func (f *fakeTracker) RouterState(id string) (tracker.RouterState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs, ok := f.routers[id]
	if !ok {
		return tracker.RouterState{}, fmt.Errorf("%w: %s", tracker.ErrRouterNotFound, id)
	}
	return rs, nil
}

func (f *fakeTracker) Trackers(routerID string) ([]tracker.TrackerState, error) {
	if _, err := f.RouterState(routerID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracker.TrackerState(nil), f.devices[routerID]...), nil
}

func (f *fakeTracker) Tracker(routerID, mac string) (tracker.TrackerState, error) {
	devices, err := f.Trackers(routerID)
	if err != nil {
		return tracker.TrackerState{}, err
	}
	for _, d := range devices {
		if d.MAC == strings.ToUpper(mac) {
			return d, nil
		}
	}
	return tracker.TrackerState{}, fmt.Errorf("%w: %s", tracker.ErrDeviceNotFound, mac)
}

func (f *fakeTracker) Pending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pending...)
}

func (f *fakeTracker) routerCall(call, id string) error {
	if _, err := f.RouterState(id); err != nil {
		return err
	}
	return f.record(call + ":" + id)
}

func (f *fakeTracker) Refresh(_ context.Context, id string) error   { return f.routerCall("refresh", id) }
func (f *fakeTracker) Reboot(_ context.Context, id string) error    { return f.routerCall("reboot", id) }
func (f *fakeTracker) Reconnect(_ context.Context, id string) error { return f.routerCall("reconnect", id) }

func (f *fakeTracker) FirmwareUpdate(_ context.Context, id string) (string, error) {
	if err := f.routerCall("firmware-update", id); err != nil {
		return "", err
	}
	return f.fwState, nil
}

func (f *fakeTracker) Cleanup(_ context.Context, id string) (int, error) {
	if err := f.routerCall("cleanup", id); err != nil {
		return 0, err
	}
	return f.removed, nil
}

func (f *fakeTracker) SetInternetAccess(_ context.Context, id, mac string, allow bool) error {
	if _, err := f.Tracker(id, mac); err != nil {
		return err
	}
	if err := f.record(fmt.Sprintf("internet-access:%s:%s:%v", id, mac, allow)); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.devices[id] {
		if d.MAC == strings.ToUpper(mac) {
			f.devices[id][i].WANAccess = allow
		}
	}
	return nil
}

// fakeAudit is an in-memory audit.Repository.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	filters []audit.Filter
	err     error
}

func (f *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.filters = append(f.filters, filter)
	return &audit.ListResult{Entries: append([]audit.Entry{}, f.entries...), Total: len(f.entries), Limit: filter.Limit}, nil
}

func (f *fakeAudit) Entries() []audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Entry(nil), f.entries...)
}

// fakeHistory returns points and records the queried window.
type fakeHistory struct {
	mu         sync.Mutex
	points     []influxdb.PresencePoint
	err        error
	start, end time.Time
	mac        string
}

func (f *fakeHistory) PresenceHistory(_ context.Context, _, mac string, start, end time.Time) ([]influxdb.PresencePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.start, f.end, f.mac = start, end, mac
	return f.points, f.err
}

func (f *fakeHistory) WriteErrors() uint64 { return 3 }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer creates a Server over a fake tracker without audit or history.
func testServer(t *testing.T) (*Server, *fakeTracker) {
	t.Helper()
	return newTestServer(t, nil, nil)
}

func newTestServer(t *testing.T, auditRepo audit.Repository, history History) (*Server, *fakeTracker) {
	t.Helper()

	ft := newFakeTracker()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15},
		},
		Logger:  testLogger(),
		Tracker: ft,
		Audit:   auditRepo,
		History: history,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, ft
}

// bearer returns an Authorization header value for role.
func bearer(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken("tester", role, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return "Bearer " + token
}
