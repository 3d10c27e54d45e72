// Package coordinator drives periodic polling of a single router.
//
// A Coordinator owns one presence.Registry. Each refresh cycle fetches the
// router's host list, resolves outbound access per host, merges the scan
// into the registry, and notifies subscribers. Failures are classified so
// the caller can tell a transient outage (data kept, marked stale, retried
// on the next tick) from a credential problem or a fatal fault.
//
// # Architecture
//
//	┌──────────┐  tick   ┌─────────────┐  HostList   ┌──────────────┐
//	│  Runner  │────────►│ Coordinator │────────────►│ HostFetcher  │
//	└──────────┘         └─────────────┘             └──────────────┘
//	                        │       │
//	              ApplyScan │       │ Notify
//	                        ▼       ▼
//	              ┌──────────┐   ┌────────────┐
//	              │ Registry │   │ Dispatcher │───► platforms, sinks
//	              └──────────┘   └────────────┘
//
// # Lifecycle
//
// A coordinator starts Uninitialized. Setup fetches router metadata and runs
// the first refresh. After that each cycle leaves it Ready, Stale (transient
// failure) or Failed (auth or fatal failure). Failed is never terminal; the
// next trigger re-evaluates.
//
// Shutdown marks the coordinator as stopping. From then on a failed host
// list fetch is swallowed: Refresh returns nil and the registry, state and
// failure count stay as they were, and no event is sent.
//
// A fetch that fails because the caller's context ended is not a router
// failure either. Refresh returns the context error and leaves the state
// untouched, so an abandoned manual refresh never marks a router failed or
// healthy.
//
// # Thread Safety
//
// At most one cycle runs per coordinator; an overlapping Refresh returns
// ErrCycleInProgress without fetching. Accessors are safe for concurrent use.
package coordinator
