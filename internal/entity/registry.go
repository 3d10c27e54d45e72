package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type entityKey struct {
	domain   Domain
	uniqueID string
}

type deviceKey struct {
	configEntryID string
	mac           string
}

// Registry is the cached entity and device registry.
//
// Reads are served from memory. Writes go to the repository first and
// update the cache only on success; writes are serialised so two callers
// racing on GetOrCreate observe a single entry.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	logger Logger
	now    func() time.Time

	writeMu sync.Mutex // serialises mutations

	mu       sync.RWMutex // protects the maps below
	entities map[string]*Entity
	byUnique map[entityKey]string
	devices  map[string]*Device
	byMAC    map[deviceKey]string
}

// NewRegistry creates a registry over repo. Call RefreshCache before use.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		logger:   noopLogger{},
		now:      time.Now,
		entities: make(map[string]*Entity),
		byUnique: make(map[entityKey]string),
		devices:  make(map[string]*Device),
		byMAC:    make(map[deviceKey]string),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every entity and device from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}
	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]*Entity, len(entities))
	r.byUnique = make(map[entityKey]string, len(entities))
	for i := range entities {
		e := entities[i]
		r.entities[e.ID] = &e
		r.byUnique[entityKey{e.Domain, e.UniqueID}] = e.ID
	}

	r.devices = make(map[string]*Device, len(devices))
	r.byMAC = make(map[deviceKey]string, len(devices))
	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = &d
		r.byMAC[deviceKey{d.ConfigEntryID, d.MAC}] = d.ID
	}

	r.logger.Info("entity registry cache refreshed", "entities", len(entities), "devices", len(devices))
	return nil
}

// GetOrCreateEntity returns the entity registered under
// (p.Domain, p.UniqueID), creating it when absent.
//
// Returns:
//   - *Entity: A copy of the registered entity
//   - bool: true if the entity was created by this call
//   - error: ErrInvalidEntity, or a repository error
func (r *Registry) GetOrCreateEntity(ctx context.Context, p EntityParams) (*Entity, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if e, ok := r.lookupEntity(p.Domain, p.UniqueID); ok {
		return e, false, nil
	}

	e := &Entity{
		ID:            uuid.NewString(),
		ConfigEntryID: p.ConfigEntryID,
		Domain:        p.Domain,
		UniqueID:      p.UniqueID,
		DeviceID:      p.DeviceID,
		Name:          p.Name,
		CreatedAt:     r.now().UTC(),
	}
	if err := r.repo.CreateEntity(ctx, e); err != nil {
		return nil, false, fmt.Errorf("creating entity %s.%s: %w", p.Domain, p.UniqueID, err)
	}

	r.mu.Lock()
	r.entities[e.ID] = e
	r.byUnique[entityKey{e.Domain, e.UniqueID}] = e.ID
	r.mu.Unlock()

	r.logger.Debug("entity registered", "domain", e.Domain, "unique_id", e.UniqueID, "config_entry", e.ConfigEntryID)
	copied := *e
	return &copied, true, nil
}

// LookupEntity returns the entity registered under (domain, uniqueID).
func (r *Registry) LookupEntity(domain Domain, uniqueID string) (*Entity, bool) {
	return r.lookupEntity(domain, uniqueID)
}

func (r *Registry) lookupEntity(domain Domain, uniqueID string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUnique[entityKey{domain, uniqueID}]
	if !ok {
		return nil, false
	}
	copied := *r.entities[id]
	return &copied, true
}

// RemoveEntity removes an entity by ID.
// Returns ErrEntityNotFound if it is not registered.
func (r *Registry) RemoveEntity(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.repo.DeleteEntity(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	if e, ok := r.entities[id]; ok {
		delete(r.byUnique, entityKey{e.Domain, e.UniqueID})
		delete(r.entities, id)
	}
	r.mu.Unlock()
	return nil
}

// EntitiesForConfigEntry returns copies of the entities of one config
// entry, ordered by creation time.
func (r *Registry) EntitiesForConfigEntry(configEntryID string) []Entity {
	return r.filterEntities(func(e *Entity) bool { return e.ConfigEntryID == configEntryID })
}

// EntitiesForDevice returns copies of the entities attached to a device.
func (r *Registry) EntitiesForDevice(deviceID string) []Entity {
	return r.filterEntities(func(e *Entity) bool { return e.DeviceID == deviceID })
}

func (r *Registry) filterEntities(keep func(*Entity) bool) []Entity {
	r.mu.RLock()
	out := make([]Entity, 0)
	for _, e := range r.entities {
		if keep(e) {
			out = append(out, *e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UniqueID < out[j].UniqueID
	})
	return out
}

// GetOrCreateDevice returns the device registered under
// (p.ConfigEntryID, p.MAC), creating it when absent. For an existing
// device, non-empty descriptive fields in p replace stored values.
//
// Returns:
//   - *Device: A copy of the registered device
//   - bool: true if the device was created by this call
//   - error: ErrInvalidDevice, or a repository error
func (r *Registry) GetOrCreateDevice(ctx context.Context, p DeviceParams) (*Device, bool, error) {
	if err := p.Validate(); err != nil {
		return nil, false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	id, exists := r.byMAC[deviceKey{p.ConfigEntryID, p.MAC}]
	var current Device
	if exists {
		current = *r.devices[id]
	}
	r.mu.RUnlock()

	if exists {
		if !p.merge(&current) {
			return &current, false, nil
		}
		if err := r.repo.UpdateDevice(ctx, &current); err != nil {
			return nil, false, fmt.Errorf("updating device %s: %w", p.MAC, err)
		}
		r.storeDevice(current)
		return &current, false, nil
	}

	d := Device{
		ID:            uuid.NewString(),
		ConfigEntryID: p.ConfigEntryID,
		MAC:           p.MAC,
		CreatedAt:     r.now().UTC(),
	}
	p.merge(&d)
	if err := r.repo.CreateDevice(ctx, &d); err != nil {
		return nil, false, fmt.Errorf("creating device %s: %w", p.MAC, err)
	}
	r.storeDevice(d)

	r.logger.Debug("device registered", "mac", d.MAC, "config_entry", d.ConfigEntryID)
	return &d, true, nil
}

func (r *Registry) storeDevice(d Device) {
	r.mu.Lock()
	r.devices[d.ID] = &d
	r.byMAC[deviceKey{d.ConfigEntryID, d.MAC}] = d.ID
	r.mu.Unlock()
}

// GetDevice returns a copy of the device with the given ID.
func (r *Registry) GetDevice(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	copied := *d
	return &copied, nil
}

// RemoveDevice removes a device together with its entities.
// Returns ErrDeviceNotFound if it is not registered.
func (r *Registry) RemoveDevice(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.repo.DeleteDevice(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.devices[id]; ok {
		delete(r.byMAC, deviceKey{d.ConfigEntryID, d.MAC})
		delete(r.devices, id)
	}
	for eid, e := range r.entities {
		if e.DeviceID == id {
			delete(r.byUnique, entityKey{e.Domain, e.UniqueID})
			delete(r.entities, eid)
		}
	}
	return nil
}

// DevicesForConfigEntry returns copies of the devices of one config entry,
// ordered by creation time.
func (r *Registry) DevicesForConfigEntry(configEntryID string) []Device {
	r.mu.RLock()
	out := make([]Device, 0)
	for _, d := range r.devices {
		if d.ConfigEntryID == configEntryID {
			out = append(out, *d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}

// IsNotFound reports whether err is one of the registry's not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrDeviceNotFound)
}
