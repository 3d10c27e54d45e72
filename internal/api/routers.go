package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
)

// internetAccessRequest is the body of PUT /routers/{id}/devices/{mac}/internet-access.
type internetAccessRequest struct {
	Allow *bool `json:"allow"`
}

// handleListRouters returns every configured router.
func (s *Server) handleListRouters(w http.ResponseWriter, _ *http.Request) {
	routers := s.tracker.RouterStates()
	writeJSON(w, http.StatusOK, map[string]any{
		"routers": routers,
		"count":   len(routers),
	})
}

// handleGetRouter returns one router's status and metadata.
func (s *Server) handleGetRouter(w http.ResponseWriter, r *http.Request) {
	rs, err := s.tracker.RouterState(chi.URLParam(r, "id"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// handleListDevices returns every tracked device of a router.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.tracker.Trackers(chi.URLParam(r, "id"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one tracked device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Tracker(chi.URLParam(r, "id"), chi.URLParam(r, "mac"))
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleRefresh runs a refresh cycle and returns the router's new state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.tracker.Refresh(r.Context(), id)
	s.recordAction(r, audit.ActionRefresh, id, "", err, nil)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	s.handleGetRouter(w, r)
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.tracker.Reboot(r.Context(), id)
	s.recordAction(r, audit.ActionReboot, id, "", err, nil)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebooting"})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.tracker.Reconnect(r.Context(), id)
	s.recordAction(r, audit.ActionReconnect, id, "", err, nil)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

func (s *Server) handleFirmwareUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.tracker.FirmwareUpdate(r.Context(), id)
	var details map[string]any
	if err == nil {
		details = map[string]any{"upgrade_state": state}
	}
	s.recordAction(r, audit.ActionFirmwareUpdate, id, "", err, details)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "updating", "upgrade_state": state})
}

// handleCleanup removes entities of devices the router no longer knows.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.tracker.Cleanup(r.Context(), id)
	var details map[string]any
	if err == nil {
		details = map[string]any{"removed": removed}
	}
	s.recordAction(r, audit.ActionCleanup, id, "", err, details)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleSetInternetAccess allows or blocks a device's internet access.
func (s *Server) handleSetInternetAccess(w http.ResponseWriter, r *http.Request) {
	var req internetAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Allow == nil {
		writeBadRequest(w, "allow is required")
		return
	}

	id, mac := chi.URLParam(r, "id"), strings.ToUpper(chi.URLParam(r, "mac"))
	err := s.tracker.SetInternetAccess(r.Context(), id, mac, *req.Allow)
	s.recordAction(r, audit.ActionInternetAccess, id, mac, err, map[string]any{"allow": *req.Allow})
	if err != nil {
		writeTrackerError(w, err)
		return
	}

	st, err := s.tracker.Tracker(id, mac)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
