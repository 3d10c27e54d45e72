package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/presence"
)

// Logger defines the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Default cadence and grace window.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultConsiderHome = 180 * time.Second
)

// HostInfo is one entry of the router's host table.
type HostInfo struct {
	MAC    string
	Name   string
	IP     string
	Active bool
}

// Metadata describes the router itself.
type Metadata struct {
	Model           string
	Serial          string
	FirmwareVersion string
	LatestFirmware  string
	UpdateAvailable bool
}

// HostFetcher lists the hosts known to the router.
type HostFetcher interface {
	HostList(ctx context.Context) ([]HostInfo, error)
}

// WANAccessFetcher reports whether outbound access is disallowed for ip.
type WANAccessFetcher interface {
	WANAccess(ctx context.Context, ip string) (disallowed bool, err error)
}

// MetadataFetcher reads router model, serial and firmware information.
type MetadataFetcher interface {
	DeviceMetadata(ctx context.Context) (Metadata, error)
}

// CycleResult summarises one refresh cycle for observers.
type CycleResult struct {
	CoordinatorID string
	Start         time.Time
	Duration      time.Duration
	Hosts         int
	Connected     int
	Kind          FailureKind
	Err           error
}

// CycleObserver is told about every completed cycle, successful or not.
type CycleObserver interface {
	ObserveCycle(res CycleResult)
}

// State is the coordinator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateStale
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator.
type Options struct {
	// ID identifies the coordinator (the router's config entry). Required.
	ID string

	// Hosts provides the host list. Required.
	Hosts HostFetcher

	// WANAccess resolves per-host outbound access. Optional; when nil
	// every host reports access allowed.
	WANAccess WANAccessFetcher

	// Metadata provides router metadata. Optional.
	Metadata MetadataFetcher

	// Classifier maps fetch errors to failure kinds.
	// Default: an empty ClassifierTable (every error is fatal).
	Classifier Classifier

	// ConsiderHome is the presence grace window. Zero is valid and means
	// a device is connected only while active; negative values become zero.
	// Callers normally pass DefaultConsiderHome.
	ConsiderHome time.Duration

	// PollInterval is the runner cadence. Default: 30s.
	PollInterval time.Duration

	// Timeout bounds each cycle. Zero means no bound.
	Timeout time.Duration

	// Clock defaults to RealClock.
	Clock Clock

	// Registry defaults to a new empty registry.
	Registry *presence.Registry

	// Observer is optional.
	Observer CycleObserver
}

// Status is a point-in-time snapshot of coordinator state.
type Status struct {
	ID                  string
	State               State
	LastSuccess         time.Time
	LastHostCount       int
	LastError           error
	ConsecutiveFailures int
	PollInterval        time.Duration
	ConsiderHome        time.Duration
}

// Coordinator polls one router and maintains its presence registry.
type Coordinator struct {
	id           string
	hosts        HostFetcher
	wan          WANAccessFetcher
	meta         MetadataFetcher
	classifier   Classifier
	considerHome time.Duration
	interval     time.Duration
	timeout      time.Duration
	clock        Clock
	registry     *presence.Registry
	dispatcher   *Dispatcher
	observer     CycleObserver

	inFlight atomic.Bool
	stopping atomic.Bool

	mu            sync.RWMutex
	state         State
	lastSuccess   time.Time
	lastHostCount int
	lastErr       error
	failures      int
	metadata      Metadata
	setUp         bool

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a coordinator.
//
// Parameters:
//   - opts: Coordinator options; ID and Hosts are required
//
// Returns:
//   - *Coordinator: Uninitialized coordinator (call Setup before use)
//   - error: ErrInvalidOptions if required options are missing
func New(opts Options) (*Coordinator, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidOptions)
	}
	if opts.Hosts == nil {
		return nil, fmt.Errorf("%w: host fetcher is required", ErrInvalidOptions)
	}

	c := &Coordinator{
		id:           opts.ID,
		hosts:        opts.Hosts,
		wan:          opts.WANAccess,
		meta:         opts.Metadata,
		classifier:   opts.Classifier,
		considerHome: opts.ConsiderHome,
		interval:     opts.PollInterval,
		timeout:      opts.Timeout,
		clock:        opts.Clock,
		registry:     opts.Registry,
		observer:     opts.Observer,
		dispatcher:   NewDispatcher(),
		logger:       noopLogger{},
	}

	if c.classifier == nil {
		c.classifier = ClassifierTable{}
	}
	if c.considerHome < 0 {
		c.considerHome = 0
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	if c.registry == nil {
		c.registry = presence.NewRegistry()
	}

	return c, nil
}

// SetLogger sets the logger for the coordinator and its dispatcher.
func (c *Coordinator) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
	c.dispatcher.SetLogger(logger)
}

func (c *Coordinator) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// ID returns the coordinator identifier.
func (c *Coordinator) ID() string { return c.id }

// PollInterval returns the configured cadence.
func (c *Coordinator) PollInterval() time.Duration { return c.interval }

// ConsiderHome returns the configured grace window.
func (c *Coordinator) ConsiderHome() time.Duration { return c.considerHome }

// Registry returns the presence registry owned by this coordinator.
// Callers must only read from it.
func (c *Coordinator) Registry() *presence.Registry { return c.registry }

// Dispatcher returns the event dispatcher subscribers connect to.
func (c *Coordinator) Dispatcher() *Dispatcher { return c.dispatcher }

// Setup fetches router metadata and performs the first refresh.
//
// Returns:
//   - error: nil on success; wraps ErrAuthRequired when credentials were
//     rejected, ErrNotReady for transient failures, or the fatal error
//     unmodified
func (c *Coordinator) Setup(ctx context.Context) error {
	if c.meta != nil {
		md, err := c.fetchMetadata(ctx)
		if err != nil {
			return c.setupError(err)
		}
		if md.Serial == "" {
			return fmt.Errorf("%w: router reported no serial number", ErrMissingSerial)
		}
		c.mu.Lock()
		c.metadata = md
		c.mu.Unlock()
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	err := c.runCycle(ctx, false)
	c.inFlight.Store(false)

	if err != nil {
		return c.setupError(err)
	}

	c.mu.Lock()
	c.setUp = true
	c.mu.Unlock()

	c.log().Info("coordinator set up",
		"coordinator", c.id,
		"hosts", c.registry.Len(),
	)
	return nil
}

func (c *Coordinator) setupError(err error) error {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return err
	case errors.Is(err, ErrUpdateFailed):
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	switch c.classifier.Classify(err) {
	case FailureAuth:
		return fmt.Errorf("%w: %w", ErrAuthRequired, err)
	case FailureTransient:
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	default:
		return err
	}
}

// Refresh runs one cycle now.
//
// Returns:
//   - error: ErrCycleInProgress if a cycle is already running; otherwise
//     see the failure semantics in the package documentation
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer c.inFlight.Store(false)

	return c.runCycle(ctx, true)
}

// Shutdown marks the coordinator as stopping. Subsequent and in-flight
// fetch failures are swallowed and leave the state untouched.
func (c *Coordinator) Shutdown() {
	c.stopping.Store(true)
}

// Stopping reports whether Shutdown was called.
func (c *Coordinator) Stopping() bool {
	return c.stopping.Load()
}

func (c *Coordinator) runCycle(parent context.Context, refreshMeta bool) error {
	ctx := parent
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.timeout)
		defer cancel()
	}

	start := c.clock.Now()

	hosts, err := c.hosts.HostList(ctx)
	if err != nil {
		switch {
		case c.stopping.Load():
			c.log().Debug("ignoring host list error during shutdown",
				"coordinator", c.id,
				"error", err,
			)
			return nil
		case parent.Err() != nil:
			c.log().Debug("refresh abandoned by caller",
				"coordinator", c.id,
				"error", err,
			)
			return fmt.Errorf("refresh abandoned: %w", parent.Err())
		}
		return c.fail(start, err)
	}

	scan := make([]presence.ScanEntry, 0, len(hosts))
	for _, h := range hosts {
		if h.MAC == "" {
			continue
		}
		scan = append(scan, presence.ScanEntry{
			Key: h.MAC,
			Observation: presence.Observation{
				Name:      h.Name,
				IPAddress: h.IP,
				WANAccess: c.wanAccess(ctx, h.IP),
			},
			Active: h.Active,
		})
	}

	now := c.clock.Now()
	anyNew := c.registry.ApplyScan(now, c.considerHome, scan)
	c.succeed(now, len(hosts))

	c.dispatcher.Notify(Event{Kind: EventDevicesUpdated, CoordinatorID: c.id, Time: now})
	if anyNew {
		c.dispatcher.Notify(Event{Kind: EventNewDevice, CoordinatorID: c.id, Time: now})
	}

	if refreshMeta && c.meta != nil && !c.stopping.Load() {
		md, err := c.fetchMetadata(ctx)
		if err == nil && md.Serial == "" {
			err = ErrMissingSerial
		}
		if err != nil {
			c.log().Warn("failed to refresh router metadata",
				"coordinator", c.id,
				"error", err,
			)
		} else {
			c.mu.Lock()
			c.metadata = md
			c.mu.Unlock()
		}
	}

	c.observe(CycleResult{
		CoordinatorID: c.id,
		Start:         start,
		Duration:      c.clock.Now().Sub(start),
		Hosts:         len(hosts),
		Connected:     c.registry.ConnectedCount(),
	})

	return nil
}

// wanAccess resolves outbound access for ip. Hosts without an address
// report access allowed without a lookup; lookup errors fall back to allowed.
func (c *Coordinator) wanAccess(ctx context.Context, ip string) bool {
	if ip == "" || c.wan == nil {
		return true
	}

	disallowed, err := c.wan.WANAccess(ctx, ip)
	if err != nil {
		c.log().Debug("WAN access lookup failed, assuming allowed",
			"coordinator", c.id,
			"ip", ip,
			"error", err,
		)
		return true
	}
	return !disallowed
}

func (c *Coordinator) fetchMetadata(ctx context.Context) (Metadata, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.meta.DeviceMetadata(ctx)
}

func (c *Coordinator) fail(start time.Time, err error) error {
	kind := c.classifier.Classify(err)

	var (
		state   State
		wrapped error
	)
	switch kind {
	case FailureTransient:
		state = StateStale
		wrapped = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	case FailureAuth:
		state = StateFailed
		wrapped = fmt.Errorf("%w: %w", ErrAuthRequired, err)
	default:
		state = StateFailed
		wrapped = err
	}

	c.mu.Lock()
	prev := c.state
	c.state = state
	c.lastErr = wrapped
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	c.log().Warn("router refresh failed",
		"coordinator", c.id,
		"kind", kind.String(),
		"consecutive_failures", failures,
		"error", err,
	)

	if prev != state {
		c.dispatcher.Notify(Event{
			Kind:          EventStateChanged,
			CoordinatorID: c.id,
			Time:          c.clock.Now(),
			State:         state,
			Err:           wrapped,
		})
	}

	c.observe(CycleResult{
		CoordinatorID: c.id,
		Start:         start,
		Duration:      c.clock.Now().Sub(start),
		Kind:          kind,
		Err:           wrapped,
	})

	return wrapped
}

func (c *Coordinator) succeed(now time.Time, hostCount int) {
	c.mu.Lock()
	prev := c.state
	c.state = StateReady
	c.lastSuccess = now
	c.lastHostCount = hostCount
	c.lastErr = nil
	c.failures = 0
	c.mu.Unlock()

	if prev != StateReady {
		c.dispatcher.Notify(Event{
			Kind:          EventStateChanged,
			CoordinatorID: c.id,
			Time:          now,
			State:         StateReady,
		})
	}
}

func (c *Coordinator) observe(res CycleResult) {
	if c.observer != nil {
		c.observer.ObserveCycle(res)
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Available reports whether the last cycle succeeded.
func (c *Coordinator) Available() bool {
	return c.State() == StateReady
}

// LastError returns the error of the last failed cycle, or nil.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		ID:                  c.id,
		State:               c.state,
		LastSuccess:         c.lastSuccess,
		LastHostCount:       c.lastHostCount,
		LastError:           c.lastErr,
		ConsecutiveFailures: c.failures,
		PollInterval:        c.interval,
		ConsiderHome:        c.considerHome,
	}
}

// Metadata returns the router metadata captured during Setup and refreshed
// after each cycle.
func (c *Coordinator) Metadata() (Metadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.setUp {
		return Metadata{}, ErrNotSetUp
	}
	return c.metadata, nil
}

// UniqueID returns the router serial number. A coordinator without a
// MetadataFetcher has no serial and uses its ID.
func (c *Coordinator) UniqueID() (string, error) {
	md, err := c.Metadata()
	if err != nil {
		return "", err
	}
	if md.Serial == "" {
		return c.id, nil
	}
	return md.Serial, nil
}

// Model returns the router model name.
func (c *Coordinator) Model() (string, error) {
	md, err := c.Metadata()
	return md.Model, err
}

// FirmwareVersion returns the installed firmware version.
func (c *Coordinator) FirmwareVersion() (string, error) {
	md, err := c.Metadata()
	return md.FirmwareVersion, err
}

// LatestFirmware returns the newest firmware version the router offers.
func (c *Coordinator) LatestFirmware() (string, error) {
	md, err := c.Metadata()
	return md.LatestFirmware, err
}

// UpdateAvailable reports whether a firmware update is offered.
func (c *Coordinator) UpdateAvailable() (bool, error) {
	md, err := c.Metadata()
	return md.UpdateAvailable, err
}
