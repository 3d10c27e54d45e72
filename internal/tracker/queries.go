package tracker

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
)

// Router states reported for routers that are configured but not set up.
const (
	StateSetupRetry  = "setup_retry"
	StateSetupFailed = "setup_failed"
)

// RouterStates returns the state of every configured router sorted by id,
// including routers whose setup is pending or failed.
func (i *Integration) RouterStates() []RouterState {
	ids := make([]string, 0, len(i.opts.Routers))
	for _, rc := range i.opts.Routers {
		ids = append(ids, rc.ID)
	}
	sort.Strings(ids)

	out := make([]RouterState, 0, len(ids))
	for _, id := range ids {
		if st, ok := i.routerState(id); ok {
			out = append(out, st)
		}
	}
	return out
}

// RouterState returns the state of one configured router.
//
// Returns:
//   - RouterState: The router's state; StateSetupRetry or StateSetupFailed
//     while it is not set up
//   - error: ErrRouterNotFound if id is not configured
func (i *Integration) RouterState(id string) (RouterState, error) {
	st, ok := i.routerState(id)
	if !ok {
		return RouterState{}, fmt.Errorf("%w: %s", ErrRouterNotFound, id)
	}
	return st, nil
}

func (i *Integration) routerState(id string) (RouterState, bool) {
	i.mu.RLock()
	e, ready := i.entries[id]
	failErr, failed := i.failed[id]
	_, pending := i.pending[id]
	i.mu.RUnlock()

	if ready {
		return e.State(), true
	}

	configured := false
	for _, rc := range i.opts.Routers {
		if rc.ID == id {
			configured = true
			break
		}
	}
	if !configured {
		return RouterState{}, false
	}

	st := RouterState{ID: id, State: StateSetupFailed}
	if pending || !failed || errors.Is(failErr, coordinator.ErrNotReady) {
		st.State = StateSetupRetry
	}
	if failErr != nil {
		st.LastError = failErr.Error()
	}
	return st, true
}

// Trackers returns every tracked device of a router, sorted by MAC.
func (i *Integration) Trackers(routerID string) ([]TrackerState, error) {
	e, err := i.Router(routerID)
	if err != nil {
		return nil, err
	}
	return e.Platform().Trackers(), nil
}

// Tracker returns one tracked device of a router. MACs are matched case-insensitively.
func (i *Integration) Tracker(routerID, mac string) (TrackerState, error) {
	e, err := i.Router(routerID)
	if err != nil {
		return TrackerState{}, err
	}
	st, ok := e.Platform().Tracker(strings.ToUpper(mac))
	if !ok {
		return TrackerState{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, mac)
	}
	return st, nil
}
