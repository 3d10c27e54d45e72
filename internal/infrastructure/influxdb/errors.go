package influxdb

import "errors"

// Sentinel errors for InfluxDB operations. Check them with errors.Is.
var (
	// ErrNotConnected indicates Close has been called.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrInvalidRange indicates a history query whose window is empty,
	// inverted or longer than MaxHistoryRange.
	ErrInvalidRange = errors.New("influxdb: invalid time range")
)
