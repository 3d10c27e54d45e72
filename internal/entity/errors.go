package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrEntityNotFound is returned when an entity ID does not exist.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when creating an entity whose
	// (domain, unique_id) pair is already registered.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("entity: device not found")

	// ErrDeviceExists is returned when creating a device whose
	// (config_entry_id, mac) pair is already registered.
	ErrDeviceExists = errors.New("entity: device already exists")

	// ErrInvalidEntity is returned when entity parameters fail validation.
	ErrInvalidEntity = errors.New("entity: invalid entity")

	// ErrInvalidDevice is returned when device parameters fail validation.
	ErrInvalidDevice = errors.New("entity: invalid device")
)
