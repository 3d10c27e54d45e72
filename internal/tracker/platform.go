package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/entity"
	"github.com/nerrad567/gray-logic-tracker/internal/presence"
)

// registryTimeout bounds entity registry writes made from event handlers.
const registryTimeout = 5 * time.Second

// Logger defines the logging interface used by the tracker package.
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

// EntityRegistry stores the entities and devices created for trackers.
// *entity.Registry satisfies this interface.
type EntityRegistry interface {
	GetOrCreateDevice(ctx context.Context, p entity.DeviceParams) (*entity.Device, bool, error)
	GetOrCreateEntity(ctx context.Context, p entity.EntityParams) (*entity.Entity, bool, error)
	RemoveEntity(ctx context.Context, id string) error
	RemoveDevice(ctx context.Context, id string) error
	EntitiesForConfigEntry(configEntryID string) []entity.Entity
	EntitiesForDevice(deviceID string) []entity.Entity
	DevicesForConfigEntry(configEntryID string) []entity.Device
}

type trackedDevice struct {
	name      string
	deviceID  string
	trackerID string
	switchID  string
}

// Platform turns one coordinator's presence records into tracker entities.
//
// Thread Safety: all methods are safe for concurrent use.
type Platform struct {
	routerID string
	coord    *coordinator.Coordinator
	entities EntityRegistry
	sink     Sink

	mu      sync.Mutex
	tracked map[string]*trackedDevice
	last    map[string]TrackerState

	// removed holds MACs whose entities were cleaned up; they are not
	// tracked again until restart.
	removed map[string]bool

	disconnect func()

	logger   Logger
	loggerMu sync.RWMutex
}

// NewPlatform creates a platform for coord. Call Start to begin tracking.
func NewPlatform(coord *coordinator.Coordinator, entities EntityRegistry, sink Sink) *Platform {
	if sink == nil {
		sink = Sinks{}
	}
	return &Platform{
		routerID: coord.ID(),
		coord:    coord,
		entities: entities,
		sink:     sink,
		tracked:  make(map[string]*trackedDevice),
		last:     make(map[string]TrackerState),
		removed:  make(map[string]bool),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the platform.
func (p *Platform) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Platform) log() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// Start subscribes to the coordinator and tracks the devices it already
// knows. The coordinator must be set up.
func (p *Platform) Start() {
	p.mu.Lock()
	if p.disconnect != nil {
		p.mu.Unlock()
		return
	}
	p.disconnect = p.coord.Dispatcher().Connect(coordinator.NotifierFunc(p.Notify))
	p.mu.Unlock()

	p.sink.RouterChanged(routerStateFrom(p.coord))
	p.addNewDevices()
	p.updateStates()
}

// Close unsubscribes from the coordinator and reports the router unavailable.
func (p *Platform) Close() {
	p.mu.Lock()
	disconnect := p.disconnect
	p.disconnect = nil
	p.mu.Unlock()

	if disconnect == nil {
		return
	}
	disconnect()

	rs := routerStateFrom(p.coord)
	rs.Available = false
	p.sink.RouterChanged(rs)
}

// Notify implements coordinator.Notifier.
func (p *Platform) Notify(ev coordinator.Event) {
	switch ev.Kind {
	case coordinator.EventNewDevice:
		p.addNewDevices()
	case coordinator.EventDevicesUpdated:
		p.updateStates()
	case coordinator.EventStateChanged:
		p.sink.RouterChanged(routerStateFrom(p.coord))
		p.updateStates()
	}
}

// filterOut reports why rec must not get tracker entities, or "" if it may.
// Caller must hold p.mu.
func (p *Platform) filterOut(rec presence.Record) string {
	switch {
	case rec.IPAddress == "":
		return "Missing IP"
	case p.tracked[rec.Key] != nil, p.removed[rec.Key]:
		return "Already tracked"
	default:
		return ""
	}
}

func (p *Platform) addNewDevices() {
	via, err := p.coord.UniqueID()
	if err != nil {
		p.log().Debug("router not set up, deferring tracker creation", "router", p.routerID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()

	available := p.coord.Available()

	p.mu.Lock()
	var added []TrackerState
	for _, rec := range p.coord.Registry().Records() {
		if reason := p.filterOut(rec); reason != "" {
			p.log().Debug("skip adding device",
				"router", p.routerID,
				"mac", rec.Key,
				"hostname", rec.Name,
				"reason", reason,
			)
			continue
		}

		td, err := p.register(ctx, rec, via)
		if err != nil {
			p.log().Error("failed to register tracker entities",
				"router", p.routerID,
				"mac", rec.Key,
				"error", err,
			)
			continue
		}
		p.tracked[rec.Key] = td

		st := td.state(p.routerID, rec, available)
		p.last[rec.Key] = st
		added = append(added, st)
	}
	p.mu.Unlock()

	for _, st := range added {
		p.log().Info("tracking device", "router", p.routerID, "mac", st.MAC, "name", st.Name)
		p.sink.TrackerAdded(st)
	}
}

func (p *Platform) register(ctx context.Context, rec presence.Record, via string) (*trackedDevice, error) {
	name := rec.Name
	if name == "" {
		name = DefaultDeviceName
	}

	dev, _, err := p.entities.GetOrCreateDevice(ctx, entity.DeviceParams{
		ConfigEntryID: p.routerID,
		MAC:           rec.Key,
		Name:          name,
		Manufacturer:  Manufacturer,
		Model:         Model,
		ViaDevice:     via,
	})
	if err != nil {
		return nil, err
	}

	tracker, _, err := p.entities.GetOrCreateEntity(ctx, entity.EntityParams{
		ConfigEntryID: p.routerID,
		Domain:        entity.DomainDeviceTracker,
		UniqueID:      rec.Key,
		DeviceID:      dev.ID,
		Name:          name,
	})
	if err != nil {
		return nil, err
	}

	sw, _, err := p.entities.GetOrCreateEntity(ctx, entity.EntityParams{
		ConfigEntryID: p.routerID,
		Domain:        entity.DomainSwitch,
		UniqueID:      rec.Key + entity.InternetAccessSuffix,
		DeviceID:      dev.ID,
		Name:          name + " Internet Access",
	})
	if err != nil {
		return nil, err
	}

	return &trackedDevice{
		name:      name,
		deviceID:  dev.ID,
		trackerID: tracker.ID,
		switchID:  sw.ID,
	}, nil
}

func (td *trackedDevice) state(routerID string, rec presence.Record, available bool) TrackerState {
	st := trackerStateFromRecord(routerID, td.name, rec, available)
	st.TrackerEntityID = td.trackerID
	st.SwitchEntityID = td.switchID
	return st
}

// updateStates pushes every tracked state that differs from the last one pushed.
func (p *Platform) updateStates() {
	available := p.coord.Available()
	reg := p.coord.Registry()

	p.mu.Lock()
	var changed []TrackerState
	for _, mac := range p.trackedMACs() {
		rec, ok := reg.Get(mac)
		if !ok {
			continue
		}
		st := p.tracked[mac].state(p.routerID, rec, available)
		if prev, ok := p.last[mac]; ok && prev.Equal(st) {
			continue
		}
		p.last[mac] = st
		changed = append(changed, st)
	}
	p.mu.Unlock()

	for _, st := range changed {
		p.sink.TrackerChanged(st)
	}
}

// trackedMACs returns the tracked MACs in sorted order. Caller must hold p.mu.
func (p *Platform) trackedMACs() []string {
	macs := make([]string, 0, len(p.tracked))
	for mac := range p.tracked {
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	return macs
}

// untrack stops tracking mac after its entities were removed.
func (p *Platform) untrack(mac string) {
	p.mu.Lock()
	st, ok := p.last[mac]
	delete(p.tracked, mac)
	delete(p.last, mac)
	p.removed[mac] = true
	p.mu.Unlock()

	if ok {
		p.sink.TrackerRemoved(st)
	}
}

// Trackers returns the last pushed state of every tracked device, sorted by MAC.
func (p *Platform) Trackers() []TrackerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]TrackerState, 0, len(p.tracked))
	for _, mac := range p.trackedMACs() {
		if st, ok := p.last[mac]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Tracker returns the last pushed state of the device with the given MAC.
func (p *Platform) Tracker(mac string) (TrackerState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.last[mac]
	return st, ok
}
