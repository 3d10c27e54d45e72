// Package api implements the HTTP REST API and WebSocket server for Gray Logic Tracker.
//
// This package provides:
//   - Read endpoints for router status and tracked devices
//   - Router services (refresh, reboot, reconnect, firmware update, cleanup)
//     and the per-device internet access switch
//   - A WebSocket hub that streams tracker and router changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The server sits on top of the tracker integration. Reads come from the
// platforms' last pushed states; services call the router through the
// integration. The Hub is registered as a tracker sink, so every state the
// platforms push to MQTT is also broadcast to WebSocket clients.
//
// # Security
//
// Reads and the WebSocket stream are open. Every mutating route requires an
// HS256 bearer token (see package auth) whose role grants the route's
// permission.
package api
