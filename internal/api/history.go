package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/influxdb"
)

// defaultHistoryWindow is the query window when no start is given.
const defaultHistoryWindow = 24 * time.Hour

// History serves recorded presence changes. *influxdb.Client satisfies it.
type History interface {
	PresenceHistory(ctx context.Context, routerID, mac string, start, end time.Time) ([]influxdb.PresencePoint, error)
}

// historyPoint is one presence change in a history response.
type historyPoint struct {
	Time         time.Time  `json:"time"`
	Hostname     string     `json:"hostname,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	Connected    bool       `json:"connected"`
	WANAccess    bool       `json:"wan_access"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// handleDeviceHistory returns a device's presence changes between the
// RFC 3339 "start" and "end" query parameters. end defaults to now and
// start to 24 hours before end.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "presence history is disabled")
		return
	}

	id, mac := chi.URLParam(r, "id"), strings.ToUpper(chi.URLParam(r, "mac"))
	if _, err := s.tracker.RouterState(id); err != nil {
		writeTrackerError(w, err)
		return
	}

	end, err := parseTimeParam(r, "end", time.Now().UTC())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	start, err := parseTimeParam(r, "start", end.Add(-defaultHistoryWindow))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	points, err := s.history.PresenceHistory(r.Context(), id, mac, start, end)
	if err != nil {
		if errors.Is(err, influxdb.ErrInvalidRange) {
			writeBadRequest(w, "start must be before end and at most 31 days earlier")
			return
		}
		s.logger.Error("presence history query failed", "router", id, "mac", mac, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "presence history unavailable")
		return
	}

	out := make([]historyPoint, 0, len(points))
	for _, p := range points {
		hp := historyPoint{
			Time:      p.Time,
			Hostname:  p.Hostname,
			IPAddress: p.IP,
			Connected: p.Connected,
			WANAccess: p.WANAccess,
		}
		if !p.LastActivity.IsZero() {
			la := p.LastActivity
			hp.LastActivity = &la
		}
		out = append(out, hp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"router_id": id,
		"mac":       mac,
		"start":     start,
		"end":       end,
		"points":    out,
		"count":     len(out),
	})
}

func parseTimeParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New(name + " must be an RFC 3339 timestamp")
	}
	return t, nil
}
