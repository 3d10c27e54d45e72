package tracker

import "errors"

// Domain errors for the tracker package.
var (
	// ErrRouterNotFound is returned when no router is configured with the given id.
	ErrRouterNotFound = errors.New("tracker: router not found")

	// ErrRouterNotReady is returned when the router is configured but not set up.
	ErrRouterNotReady = errors.New("tracker: router not set up")

	// ErrDeviceNotFound is returned when the router has never reported the device.
	ErrDeviceNotFound = errors.New("tracker: device not found")

	// ErrNoIPAddress is returned when internet access is changed for a
	// device without a known address.
	ErrNoIPAddress = errors.New("tracker: device has no IP address")

	// ErrServiceFailed wraps router errors raised by a service call.
	ErrServiceFailed = errors.New("tracker: service call failed")
)
