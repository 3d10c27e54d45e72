// Package tracker wires FRITZ!Box routers into Gray Logic Tracker.
//
// For every configured router the Integration owns one Entry: the TR-064
// client, a coordinator.Coordinator polling it, a coordinator.Runner driving
// the cadence, and a Platform that turns presence records into entities.
//
// # Entities
//
// Each tracked device gets two entities in the entity registry:
//
//   - device_tracker, unique id = MAC, state home/not_home
//   - switch, unique id = MAC + "_internet_access", state = WAN access
//
// A device is only tracked once the router reported an IP address for it.
// Entities are available while the coordinator's last cycle succeeded.
//
// # Sinks
//
// The Platform pushes tracker and router changes to Sink implementations.
// Unchanged tracker states are never pushed twice.
//
//   - MQTTSink publishes Home Assistant discovery and state topics
//   - InfluxSink writes presence and poll points
//   - api.Hub broadcasts to WebSocket clients
//
// # Setup
//
// Routers are set up concurrently. A router that is not ready (unreachable,
// timeout) is retried after a fixed delay; a router that rejects the
// credentials is left unconfigured until the process restarts.
package tracker
