package tracker

import (
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/influxdb"
)

// InfluxWriter is the subset of *influxdb.Client the sink uses.
type InfluxWriter interface {
	WritePresence(p influxdb.PresencePoint)
	WritePoll(p influxdb.PollPoint)
}

// InfluxSink records tracker states and refresh cycles as time series.
// It implements both Sink and coordinator.CycleObserver.
type InfluxSink struct {
	writer InfluxWriter
	now    func() time.Time
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w InfluxWriter) *InfluxSink {
	return &InfluxSink{writer: w, now: time.Now}
}

// TrackerAdded implements Sink.
func (s *InfluxSink) TrackerAdded(t TrackerState) {
	s.writePresence(t)
}

// TrackerChanged implements Sink.
func (s *InfluxSink) TrackerChanged(t TrackerState) {
	s.writePresence(t)
}

// TrackerRemoved implements Sink. History is kept.
func (s *InfluxSink) TrackerRemoved(TrackerState) {}

// RouterChanged implements Sink. Router health is recorded per cycle by
// ObserveCycle instead.
func (s *InfluxSink) RouterChanged(RouterState) {}

func (s *InfluxSink) writePresence(t TrackerState) {
	// An unavailable router reports no fresh presence data.
	if !t.Available {
		return
	}
	p := influxdb.PresencePoint{
		RouterID:  t.RouterID,
		MAC:       t.MAC,
		Hostname:  t.Hostname,
		IP:        t.IPAddress,
		Connected: t.Connected,
		WANAccess: t.WANAccess,
		Time:      s.now(),
	}
	if t.LastActivity != nil {
		p.LastActivity = *t.LastActivity
	}
	s.writer.WritePresence(p)
}

// ObserveCycle implements coordinator.CycleObserver.
func (s *InfluxSink) ObserveCycle(res coordinator.CycleResult) {
	s.writer.WritePoll(influxdb.PollPoint{
		RouterID:  res.CoordinatorID,
		Duration:  res.Duration,
		Hosts:     res.Hosts,
		Connected: res.Connected,
		Outcome:   outcome(res.Kind),
		Time:      res.Start,
	})
}

func outcome(k coordinator.FailureKind) string {
	if k == coordinator.FailureNone {
		return "ok"
	}
	return k.String()
}
