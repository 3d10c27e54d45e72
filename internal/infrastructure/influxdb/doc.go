// Package influxdb provides InfluxDB connectivity for Gray Logic Tracker.
//
// It wraps the official influxdb-client-go v2 library and records the
// tracker's history:
//   - presence: one point per host state change (connected, wan_access, ip)
//   - router_poll: one point per polling cycle (duration, host counts, outcome)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePresence(influxdb.PresencePoint{RouterID: "fritz", MAC: mac, Connected: true})
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); write
// errors are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb
