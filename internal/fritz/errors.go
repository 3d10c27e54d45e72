package fritz

import (
	"errors"
	"fmt"
)

// Sentinel errors for TR-064 operations.
//
//	if errors.Is(err, fritz.ErrConnection) {
//	    // router unreachable, retry later
//	}
var (
	// ErrConnection indicates the router could not be reached or the
	// request timed out.
	ErrConnection = errors.New("fritz: connection failed")

	// ErrSecurity indicates the router refused the request (403) or the
	// digest challenge could not be satisfied.
	ErrSecurity = errors.New("fritz: security error")

	// ErrAuthFailed indicates the router rejected the credentials.
	ErrAuthFailed = errors.New("fritz: authentication failed")

	// ErrService indicates the requested service is not offered by the router.
	ErrService = errors.New("fritz: unknown service")

	// ErrAction indicates the action is not supported (UPnP 401, 606).
	ErrAction = errors.New("fritz: invalid action")

	// ErrArgument indicates invalid action arguments (UPnP 402, 600).
	ErrArgument = errors.New("fritz: invalid argument")

	// ErrActionFailed indicates the action failed on the router (UPnP 501).
	ErrActionFailed = errors.New("fritz: action failed")

	// ErrArrayIndex indicates an index out of range (UPnP 713, 714).
	ErrArrayIndex = errors.New("fritz: array index out of range")

	// ErrInternal indicates an internal router error (UPnP 820).
	ErrInternal = errors.New("fritz: internal error")

	// ErrProtocol indicates a response the client could not parse.
	ErrProtocol = errors.New("fritz: protocol error")
)

// FaultError is a SOAP fault returned by an action call.
type FaultError struct {
	Service     string
	Action      string
	Code        int
	Description string
}

// Error implements error.
func (e *FaultError) Error() string {
	return fmt.Sprintf("fritz: %s#%s: UPnP error %d: %s", e.Service, e.Action, e.Code, e.Description)
}

// Unwrap returns the sentinel for the fault code.
func (e *FaultError) Unwrap() error {
	switch e.Code {
	case 401, 606:
		return ErrAction
	case 402, 600:
		return ErrArgument
	case 501:
		return ErrActionFailed
	case 713, 714:
		return ErrArrayIndex
	case 820:
		return ErrInternal
	default:
		return ErrActionFailed
	}
}
