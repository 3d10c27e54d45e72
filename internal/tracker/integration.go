package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
)

// DefaultRetryDelay is the wait before retrying a router that was not ready.
const DefaultRetryDelay = 60 * time.Second

// Entry is one configured and set-up router.
type Entry struct {
	cfg      config.RouterConfig
	client   RouterClient
	coord    *coordinator.Coordinator
	runner   *coordinator.Runner
	platform *Platform
}

// ID returns the router's config entry id.
func (e *Entry) ID() string { return e.cfg.ID }

// Coordinator returns the router's coordinator.
func (e *Entry) Coordinator() *coordinator.Coordinator { return e.coord }

// Platform returns the router's tracker platform.
func (e *Entry) Platform() *Platform { return e.platform }

// State returns a snapshot of the router state.
func (e *Entry) State() RouterState { return routerStateFrom(e.coord) }

// Options configures an Integration.
type Options struct {
	// Routers lists the routers to set up. Required.
	Routers []config.RouterConfig

	// Entities stores tracker entities. Required.
	Entities EntityRegistry

	// Dial opens router clients. Default: DialFritz.
	Dial DialFunc

	// Sinks receive tracker and router changes.
	Sinks []Sink

	// Observers are told about every refresh cycle.
	Observers []coordinator.CycleObserver

	// RetryDelay is the wait before retrying a router that was not ready.
	// Default: 60s.
	RetryDelay time.Duration

	// Clock is passed to every coordinator. Default: coordinator.RealClock.
	Clock coordinator.Clock
}

// Integration owns the coordinators and platforms of all routers.
//
// Thread Safety: all methods are safe for concurrent use.
type Integration struct {
	opts Options
	sink Sinks

	mu      sync.RWMutex
	entries map[string]*Entry
	pending map[string]config.RouterConfig
	failed  map[string]error

	ctx     context.Context
	cancel  context.CancelFunc
	closing bool
	wg      sync.WaitGroup

	unloadOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an integration. Call Setup to connect the routers.
//
// Parameters:
//   - opts: Integration options; Routers and Entities are required
//
// Returns:
//   - *Integration: Integration with no routers set up yet
//   - error: If required options are missing
func New(opts Options) (*Integration, error) {
	if len(opts.Routers) == 0 {
		return nil, errors.New("tracker: at least one router is required")
	}
	if opts.Entities == nil {
		return nil, errors.New("tracker: entity registry is required")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = coordinator.RealClock()
	}

	i := &Integration{
		opts:    opts,
		sink:    Sinks(opts.Sinks),
		entries: make(map[string]*Entry),
		pending: make(map[string]config.RouterConfig),
		failed:  make(map[string]error),
		logger:  noopLogger{},
	}
	if i.opts.Dial == nil {
		i.opts.Dial = DialFritz(nil)
	}
	return i, nil
}

// SetLogger sets the logger for the integration and everything it creates.
func (i *Integration) SetLogger(logger Logger) {
	i.loggerMu.Lock()
	i.logger = logger
	i.loggerMu.Unlock()
}

func (i *Integration) log() Logger {
	i.loggerMu.RLock()
	defer i.loggerMu.RUnlock()
	return i.logger
}

// Setup connects every router concurrently.
//
// Routers that are not ready are logged and retried every RetryDelay until
// Unload. Routers that reject the credentials are logged and skipped.
//
// Parameters:
//   - ctx: Context bounding the setup attempts and the lifetime of the
//     runners and retries started here
//
// Returns:
//   - error: The first fatal setup error, or nil
func (i *Integration) Setup(ctx context.Context) error {
	i.mu.Lock()
	if i.ctx == nil {
		i.ctx, i.cancel = context.WithCancel(ctx)
	}
	i.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, rc := range i.opts.Routers {
		g.Go(func() error {
			err := i.setupRouter(gctx, rc)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, coordinator.ErrNotReady):
				i.log().Warn("router not ready, retrying later",
					"router", rc.ID,
					"retry_in", i.opts.RetryDelay.String(),
					"error", err,
				)
				i.scheduleRetry(rc)
				return nil
			case errors.Is(err, coordinator.ErrAuthRequired):
				i.log().Error("router rejected credentials", "router", rc.ID, "error", err)
				return nil
			default:
				return fmt.Errorf("setting up router %s: %w", rc.ID, err)
			}
		})
	}
	return g.Wait()
}

func (i *Integration) setupRouter(ctx context.Context, rc config.RouterConfig) error {
	classifier := NewClassifier()

	client, err := i.opts.Dial(ctx, rc)
	if err != nil {
		err = dialError(classifier, err)
		i.setFailed(rc, err)
		return err
	}

	logger := i.log()
	adapter := routerAdapter{client: client}

	var observer coordinator.CycleObserver
	if len(i.opts.Observers) > 0 {
		observer = Observers(i.opts.Observers)
	}

	coord, err := coordinator.New(coordinator.Options{
		ID:           rc.ID,
		Hosts:        adapter,
		WANAccess:    adapter,
		Metadata:     adapter,
		Classifier:   classifier,
		ConsiderHome: rc.ConsiderHomeDuration(),
		PollInterval: rc.PollIntervalDuration(),
		Timeout:      rc.TimeoutDuration(),
		Clock:        i.opts.Clock,
		Observer:     observer,
	})
	if err != nil {
		return err
	}
	coord.SetLogger(logger)

	if err := coord.Setup(ctx); err != nil {
		i.setFailed(rc, err)
		return err
	}

	platform := NewPlatform(coord, i.opts.Entities, i.sink)
	platform.SetLogger(logger)

	entry := &Entry{
		cfg:      rc,
		client:   client,
		coord:    coord,
		runner:   coordinator.NewRunner(coord),
		platform: platform,
	}

	i.mu.Lock()
	if i.entries[rc.ID] != nil || i.closing || i.ctx.Err() != nil {
		i.mu.Unlock()
		coord.Shutdown()
		return nil
	}
	i.entries[rc.ID] = entry
	delete(i.pending, rc.ID)
	delete(i.failed, rc.ID)
	runCtx := i.ctx
	i.mu.Unlock()

	platform.Start()
	entry.runner.Start(runCtx)

	uid, _ := coord.UniqueID()
	model, _ := coord.Model()
	logger.Info("router set up",
		"router", rc.ID,
		"unique_id", uid,
		"model", model,
		"hosts", coord.Registry().Len(),
	)
	return nil
}

// dialError maps a connection failure to the setup taxonomy.
func dialError(c coordinator.Classifier, err error) error {
	switch c.Classify(err) {
	case coordinator.FailureTransient:
		return fmt.Errorf("%w: %w", coordinator.ErrNotReady, err)
	case coordinator.FailureAuth:
		return fmt.Errorf("%w: %w", coordinator.ErrAuthRequired, err)
	default:
		return err
	}
}

func (i *Integration) setFailed(rc config.RouterConfig, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failed[rc.ID] = err
	if errors.Is(err, coordinator.ErrNotReady) {
		i.pending[rc.ID] = rc
	} else {
		delete(i.pending, rc.ID)
	}
}

func (i *Integration) scheduleRetry(rc config.RouterConfig) {
	i.mu.RLock()
	ctx := i.ctx
	i.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()

		ticker := i.opts.Clock.Ticker(i.opts.RetryDelay)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}

			err := i.RetrySetup(ctx, rc.ID)
			switch {
			case err == nil:
				return
			case errors.Is(err, coordinator.ErrNotReady):
				i.log().Debug("router still not ready", "router", rc.ID, "error", err)
			default:
				i.log().Error("router setup retry failed", "router", rc.ID, "error", err)
				return
			}
		}
	}()
}

// RetrySetup attempts to set up a router that was not ready.
//
// Returns:
//   - error: ErrRouterNotFound if id is not pending; otherwise the setup result
func (i *Integration) RetrySetup(ctx context.Context, id string) error {
	i.mu.RLock()
	rc, ok := i.pending[id]
	i.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not pending setup", ErrRouterNotFound, id)
	}
	return i.setupRouter(ctx, rc)
}

// Unload stops every runner, shuts the coordinators down and reports the
// routers unavailable. Safe to call multiple times.
func (i *Integration) Unload() {
	i.unloadOnce.Do(func() {
		i.mu.Lock()
		i.closing = true
		cancel := i.cancel
		entries := make([]*Entry, 0, len(i.entries))
		for _, e := range i.entries {
			entries = append(entries, e)
		}
		i.mu.Unlock()

		// Suppress errors from in-flight cycles before cancelling them.
		for _, e := range entries {
			e.coord.Shutdown()
		}
		if cancel != nil {
			cancel()
		}
		for _, e := range entries {
			e.runner.Stop()
			e.platform.Close()
		}
		i.wg.Wait()

		i.log().Info("integration unloaded", "routers", len(entries))
	})
}

// Router returns the set-up entry for id.
//
// Returns:
//   - *Entry: The entry
//   - error: ErrRouterNotReady if id is configured but not set up,
//     ErrRouterNotFound if it is not configured
func (i *Integration) Router(id string) (*Entry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if e, ok := i.entries[id]; ok {
		return e, nil
	}
	if err, ok := i.failed[id]; ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrRouterNotReady, id, err)
	}
	for _, rc := range i.opts.Routers {
		if rc.ID == id {
			return nil, fmt.Errorf("%w: %s", ErrRouterNotReady, id)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRouterNotFound, id)
}

// Routers returns every set-up entry sorted by id.
func (i *Integration) Routers() []*Entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]*Entry, 0, len(i.entries))
	for _, e := range i.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID() < out[b].ID() })
	return out
}

// Pending returns the ids of routers waiting for a setup retry, sorted.
func (i *Integration) Pending() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]string, 0, len(i.pending))
	for id := range i.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
