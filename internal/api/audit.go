package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// handleListAudit returns audit entries filtered by the "action", "router"
// and "mac" query parameters, paged by "limit" and "offset".
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		RouterID: q.Get("router"),
		MAC:      q.Get("mac"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// recordAction logs a mutating request with the caller's identity and
// appends it to the audit log. Requests naming an unknown router or
// device are not recorded.
func (s *Server) recordAction(r *http.Request, action, routerID, mac string, err error, details map[string]any) {
	if errors.Is(err, tracker.ErrRouterNotFound) || errors.Is(err, tracker.ErrDeviceNotFound) {
		return
	}

	e := &audit.Entry{
		Action:   action,
		RouterID: routerID,
		MAC:      mac,
		Source:   audit.SourceAPI,
		Outcome:  audit.OutcomeOK,
		Details:  details,
	}
	attrs := []any{"action", action, "router", routerID, "request_id", r.Context().Value(ctxKeyRequestID)}
	if mac != "" {
		attrs = append(attrs, "mac", mac)
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		e.Subject = claims.Subject
		e.Role = string(claims.Role)
		attrs = append(attrs, "subject", claims.Subject, "role", claims.Role)
	}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}

	if err != nil {
		e.Outcome = audit.OutcomeError
		if e.Details == nil {
			e.Details = map[string]any{}
		}
		e.Details["error"] = err.Error()
		s.logger.Warn("service call failed", append(attrs, "error", err)...)
	} else {
		s.logger.Info("service call", attrs...)
	}

	if s.audit == nil {
		return
	}
	if createErr := s.audit.Create(r.Context(), e); createErr != nil {
		s.logger.Error("writing audit log", "action", action, "router", routerID, "error", createErr)
	}
}
