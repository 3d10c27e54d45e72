package presence

import (
	"strings"
	"time"
)

// Observation is what a single poll reported about a device.
type Observation struct {
	// Name is the host name reported by the router (may be empty).
	Name string

	// IPAddress is the current network address (may be empty).
	IPAddress string

	// WANAccess reports whether the device may reach the internet.
	WANAccess bool
}

// Record is the cached presence snapshot of one network device.
//
// Records are mutated in place by Update. Values handed out by Registry
// are copies; see Registry.Get.
type Record struct {
	// Key is the stable device identifier (MAC address). Immutable.
	Key string

	// Name is the display name. Set once from the first non-empty
	// observation, or derived from Key.
	Name string

	// IPAddress is the most recently reported address.
	IPAddress string

	// LastActivity is the poll time this device was last seen active.
	// Nil until the device is first observed active.
	LastActivity *time.Time

	// Connected is true when the device was active this poll or is
	// still inside the consider-home window.
	Connected bool

	// WANAccess is the most recently reported outbound-access permission.
	WANAccess bool
}

// NewRecord creates an empty record for key.
func NewRecord(key, name string) *Record {
	return &Record{Key: key, Name: name}
}

// Update folds one poll's observation into the record.
//
// Parameters:
//   - obs: Values reported in this poll
//   - active: Whether the router reported the device as currently connected
//   - considerHome: Grace window after the last activity
//   - now: Poll time
func (r *Record) Update(obs Observation, active bool, considerHome time.Duration, now time.Time) {
	withinGrace := active
	if r.LastActivity != nil {
		withinGrace = now.Sub(*r.LastActivity) < considerHome
	}

	if r.Name == "" {
		r.Name = obs.Name
		if r.Name == "" {
			r.Name = DefaultName(r.Key)
		}
	}

	r.Connected = active || withinGrace

	if active {
		t := now
		r.LastActivity = &t
	}

	r.IPAddress = obs.IPAddress
	r.WANAccess = obs.WANAccess
}

// Copy returns a deep copy of the record.
func (r *Record) Copy() Record {
	c := *r
	if r.LastActivity != nil {
		t := *r.LastActivity
		c.LastActivity = &t
	}
	return c
}

// DefaultName derives a display name from a device key.
//
// Example: "AA:BB:CC:DD:EE:FF" -> "AA_BB_CC_DD_EE_FF"
func DefaultName(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
