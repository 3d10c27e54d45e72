package coordinator

import "errors"

// Domain errors for the coordinator package.
//
// Refresh and Setup wrap the underlying fetch error together with one of
// these sentinels, so both can be checked with errors.Is:
//
//	if errors.Is(err, coordinator.ErrUpdateFailed) {
//	    // transient, the next tick retries
//	}
var (
	// ErrUpdateFailed is returned when a cycle failed transiently.
	// Cached data is kept and marked stale.
	ErrUpdateFailed = errors.New("coordinator: update failed")

	// ErrAuthRequired is returned when the router rejected the credentials.
	ErrAuthRequired = errors.New("coordinator: authentication required")

	// ErrNotReady is returned by Setup when the router is temporarily
	// unreachable. The host should retry setup later.
	ErrNotReady = errors.New("coordinator: router not ready")

	// ErrMissingSerial is returned by Setup when the router metadata carries
	// no serial number. The serial is the router's unique ID, so setup
	// cannot continue. Not retried.
	ErrMissingSerial = errors.New("coordinator: router has no serial number")

	// ErrNotSetUp is returned by metadata accessors before Setup succeeded.
	ErrNotSetUp = errors.New("coordinator: not set up")

	// ErrCycleInProgress is returned when Refresh is called while a cycle
	// is already running.
	ErrCycleInProgress = errors.New("coordinator: refresh already in progress")

	// ErrInvalidOptions is returned by New when required options are missing.
	ErrInvalidOptions = errors.New("coordinator: invalid options")
)
