package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPresence   = "presence"
	MeasurementRouterPoll = "router_poll"
)

// PresencePoint is one host state change as seen by a router.
type PresencePoint struct {
	RouterID  string
	MAC       string
	Hostname  string
	IP        string
	Connected bool
	WANAccess bool
	// LastActivity is zero for hosts never seen active.
	LastActivity time.Time
	Time         time.Time
}

// PollPoint summarises one polling cycle of a router.
type PollPoint struct {
	RouterID  string
	Duration  time.Duration
	Hosts     int
	Connected int
	// Outcome is "ok" or the failure kind ("transient", "auth", "fatal").
	Outcome string
	Time    time.Time
}

// WritePresence records a host state change.
//
// Tags: router, mac. Fields: connected, wan_access, hostname, ip and
// last_activity (unix seconds, omitted when never active).
func (c *Client) WritePresence(p PresencePoint) {
	fields := map[string]interface{}{
		"connected":  p.Connected,
		"wan_access": p.WANAccess,
		"hostname":   p.Hostname,
		"ip":         p.IP,
	}
	if !p.LastActivity.IsZero() {
		fields["last_activity"] = p.LastActivity.Unix()
	}

	c.WritePointWithTime(MeasurementPresence,
		map[string]string{"router": p.RouterID, "mac": p.MAC},
		fields,
		pointTime(p.Time),
	)
}

// WritePoll records the outcome of a polling cycle.
//
// Tags: router, outcome. Fields: duration_ms, hosts, connected.
func (c *Client) WritePoll(p PollPoint) {
	c.WritePointWithTime(MeasurementRouterPoll,
		map[string]string{"router": p.RouterID, "outcome": p.Outcome},
		map[string]interface{}{
			"duration_ms": float64(p.Duration) / float64(time.Millisecond),
			"hosts":       p.Hosts,
			"connected":   p.Connected,
		},
		pointTime(p.Time),
	)
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("tracker_stats",
//	    map[string]string{"site": "home"},
//	    map[string]interface{}{"routers": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Points written while disconnected are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
