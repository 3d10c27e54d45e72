package tracker

import (
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/presence"
)

// Tracker state payloads.
const (
	StateHome    = "home"
	StateNotHome = "not_home"

	// DefaultDeviceName is used when the router reports no host name.
	DefaultDeviceName = "Unknown device"

	// Manufacturer and Model are registered for tracked devices.
	Manufacturer = "AVM"
	Model        = "FRITZ!Box Tracked device"
)

// TrackerState is the externally visible state of one tracked device.
type TrackerState struct {
	RouterID string `json:"router_id"`
	MAC      string `json:"mac"`

	// Name is the name the entities were registered with.
	Name string `json:"name"`

	// Hostname is the current host name reported by the router.
	Hostname     string     `json:"hostname"`
	IPAddress    string     `json:"ip_address"`
	Connected    bool       `json:"connected"`
	WANAccess    bool       `json:"wan_access"`
	LastActivity *time.Time `json:"last_activity,omitempty"`

	// Available is false while the router's last cycle failed.
	Available bool `json:"available"`

	// TrackerEntityID and SwitchEntityID are the entity registry ids.
	TrackerEntityID string `json:"tracker_entity_id"`
	SwitchEntityID  string `json:"switch_entity_id"`
}

// State returns StateHome or StateNotHome.
func (s TrackerState) State() string {
	if s.Connected {
		return StateHome
	}
	return StateNotHome
}

// Equal reports whether two states would publish the same values.
func (s TrackerState) Equal(o TrackerState) bool {
	if s.RouterID != o.RouterID || s.MAC != o.MAC || s.Name != o.Name ||
		s.Hostname != o.Hostname || s.IPAddress != o.IPAddress ||
		s.Connected != o.Connected || s.WANAccess != o.WANAccess ||
		s.Available != o.Available ||
		s.TrackerEntityID != o.TrackerEntityID || s.SwitchEntityID != o.SwitchEntityID {
		return false
	}
	switch {
	case s.LastActivity == nil && o.LastActivity == nil:
		return true
	case s.LastActivity == nil || o.LastActivity == nil:
		return false
	default:
		return s.LastActivity.Equal(*o.LastActivity)
	}
}

func trackerStateFromRecord(routerID, name string, rec presence.Record, available bool) TrackerState {
	return TrackerState{
		RouterID:     routerID,
		MAC:          rec.Key,
		Name:         name,
		Hostname:     rec.Name,
		IPAddress:    rec.IPAddress,
		Connected:    rec.Connected,
		WANAccess:    rec.WANAccess,
		LastActivity: rec.LastActivity,
		Available:    available,
	}
}

// RouterState is the externally visible state of one router.
type RouterState struct {
	ID                  string    `json:"id"`
	State               string    `json:"state"`
	Available           bool      `json:"available"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Hosts               int       `json:"hosts"`
	Connected           int       `json:"connected"`
	UniqueID            string    `json:"unique_id,omitempty"`
	Model               string    `json:"model,omitempty"`
	FirmwareVersion     string    `json:"firmware_version,omitempty"`
	LatestFirmware      string    `json:"latest_firmware,omitempty"`
	UpdateAvailable     bool      `json:"update_available"`

	// Stopping is set once the router was unloaded.
	Stopping bool `json:"stopping,omitempty"`
}

func routerStateFrom(c *coordinator.Coordinator) RouterState {
	st := c.Status()
	rs := RouterState{
		ID:                  st.ID,
		State:               st.State.String(),
		Available:           st.State == coordinator.StateReady,
		LastSuccess:         st.LastSuccess,
		ConsecutiveFailures: st.ConsecutiveFailures,
		Hosts:               st.LastHostCount,
		Connected:           c.Registry().ConnectedCount(),
	}
	if st.LastError != nil {
		rs.LastError = st.LastError.Error()
	}
	if uid, err := c.UniqueID(); err == nil {
		rs.UniqueID = uid
		rs.Model, _ = c.Model()
		rs.FirmwareVersion, _ = c.FirmwareVersion()
		rs.LatestFirmware, _ = c.LatestFirmware()
		rs.UpdateAvailable, _ = c.UpdateAvailable()
	}
	rs.Stopping = c.Stopping()
	return rs
}

// Sink receives tracker and router changes.
// Methods are called synchronously from the refresh cycle and must not block.
type Sink interface {
	// TrackerAdded is called once when a device starts being tracked.
	TrackerAdded(s TrackerState)

	// TrackerChanged is called when a tracked device's state changed.
	TrackerChanged(s TrackerState)

	// TrackerRemoved is called when a device's entities were cleaned up.
	TrackerRemoved(s TrackerState)

	// RouterChanged is called when a router's lifecycle state changed.
	RouterChanged(r RouterState)
}

// Sinks fans out to every sink in order.
type Sinks []Sink

// TrackerAdded implements Sink.
func (s Sinks) TrackerAdded(t TrackerState) {
	for _, sink := range s {
		sink.TrackerAdded(t)
	}
}

// TrackerChanged implements Sink.
func (s Sinks) TrackerChanged(t TrackerState) {
	for _, sink := range s {
		sink.TrackerChanged(t)
	}
}

// TrackerRemoved implements Sink.
func (s Sinks) TrackerRemoved(t TrackerState) {
	for _, sink := range s {
		sink.TrackerRemoved(t)
	}
}

// RouterChanged implements Sink.
func (s Sinks) RouterChanged(r RouterState) {
	for _, sink := range s {
		sink.RouterChanged(r)
	}
}

// Observers fans a cycle result out to every observer in order.
type Observers []coordinator.CycleObserver

// ObserveCycle implements coordinator.CycleObserver.
func (o Observers) ObserveCycle(res coordinator.CycleResult) {
	for _, obs := range o {
		obs.ObserveCycle(res)
	}
}
