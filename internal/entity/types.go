package entity

import (
	"fmt"
	"strings"
	"time"
)

// Domain is the platform an entity belongs to.
type Domain string

const (
	// DomainDeviceTracker entities report home/not_home for a host.
	DomainDeviceTracker Domain = "device_tracker"

	// DomainSwitch entities control a host's internet access.
	DomainSwitch Domain = "switch"
)

// InternetAccessSuffix is appended to a MAC to form the unique id of a
// host's internet access switch.
const InternetAccessSuffix = "_internet_access"

// Entity is one registered entity.
type Entity struct {
	ID            string    `json:"id"`
	ConfigEntryID string    `json:"config_entry_id"`
	Domain        Domain    `json:"domain"`
	UniqueID      string    `json:"unique_id"`
	DeviceID      string    `json:"device_id,omitempty"`
	Name          string    `json:"name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MAC returns the host MAC address encoded in the entity's unique id
// ("<MAC>" or "<MAC>_<suffix>").
func (e Entity) MAC() string {
	mac, _, _ := strings.Cut(e.UniqueID, "_")
	return mac
}

// IsTrackerEntity reports whether the entity is one of the router's
// per-host entities: a device tracker or an internet access switch.
func (e Entity) IsTrackerEntity() bool {
	switch e.Domain {
	case DomainDeviceTracker:
		return true
	case DomainSwitch:
		return strings.Contains(e.UniqueID, InternetAccessSuffix)
	default:
		return false
	}
}

// Device is one registered device.
type Device struct {
	ID            string    `json:"id"`
	ConfigEntryID string    `json:"config_entry_id"`
	MAC           string    `json:"mac,omitempty"`
	Name          string    `json:"name,omitempty"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	Model         string    `json:"model,omitempty"`
	ViaDevice     string    `json:"via_device,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntityParams describes an entity to look up or create.
type EntityParams struct {
	ConfigEntryID string
	Domain        Domain
	UniqueID      string
	DeviceID      string
	Name          string
}

// Validate checks the required fields.
func (p EntityParams) Validate() error {
	switch {
	case p.ConfigEntryID == "":
		return fmt.Errorf("%w: config entry id is required", ErrInvalidEntity)
	case p.Domain == "":
		return fmt.Errorf("%w: domain is required", ErrInvalidEntity)
	case p.UniqueID == "":
		return fmt.Errorf("%w: unique id is required", ErrInvalidEntity)
	}
	return nil
}

// DeviceParams describes a device to look up or create. Empty descriptive
// fields never overwrite stored values.
type DeviceParams struct {
	ConfigEntryID string
	MAC           string
	Name          string
	Manufacturer  string
	Model         string
	ViaDevice     string
}

// Validate checks the required fields.
func (p DeviceParams) Validate() error {
	switch {
	case p.ConfigEntryID == "":
		return fmt.Errorf("%w: config entry id is required", ErrInvalidDevice)
	case p.MAC == "":
		return fmt.Errorf("%w: mac is required", ErrInvalidDevice)
	}
	return nil
}

// merge applies the non-empty descriptive fields of p to d and reports
// whether anything changed.
func (p DeviceParams) merge(d *Device) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&d.Name, p.Name)
	set(&d.Manufacturer, p.Manufacturer)
	set(&d.Model, p.Model)
	set(&d.ViaDevice, p.ViaDevice)
	return changed
}
