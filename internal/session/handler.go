package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler exposes the session operations over HTTP.
type Handler struct {
	ctrl *Controller
	log  *slog.Logger
}

// NewHandler returns a Handler backed by ctrl.
func NewHandler(ctrl *Controller, log *slog.Logger) *Handler {
	return &Handler{ctrl: ctrl, log: log}
}

type startPreviewRequest struct {
	TimelineID string `json:"timeline_id"`
}

type goLiveRequest struct {
	DestinationIDs []string `json:"destination_ids"`
}

type errorResponse struct {
	Error                string `json:"error"`
	ConflictTimelineID   string `json:"conflict_timeline_id,omitempty"`
	ConflictTimelineName string `json:"conflict_timeline_name,omitempty"`
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Session())
}

// StartPreview handles POST /api/session/preview.
// Body: { "timeline_id": "morning-show" }.
func (h *Handler) StartPreview(w http.ResponseWriter, r *http.Request) {
	var req startPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TimelineID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "timeline_id is required"})
		return
	}

	s, err := h.ctrl.StartPreview(r.Context(), req.TimelineID)
	if err != nil {
		h.writeError(w, "start preview", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StopPreview handles DELETE /api/session/preview.
func (h *Handler) StopPreview(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.StopPreview(r.Context()); err != nil {
		h.writeError(w, "stop preview", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Session())
}

// GoLive handles POST /api/session/live.
// Body: { "destination_ids": ["yt", "twitch"] }.
func (h *Handler) GoLive(w http.ResponseWriter, r *http.Request) {
	var req goLiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	s, err := h.ctrl.GoLive(r.Context(), req.DestinationIDs)
	if err != nil {
		h.writeError(w, "go live", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StopLive handles DELETE /api/session/live.
func (h *Handler) StopLive(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.StopLive(r.Context()); err != nil {
		h.writeError(w, "stop live", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Session())
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	resp := errorResponse{Error: err.Error()}
	var busy *BusyError

	switch {
	case errors.As(err, &busy):
		resp.ConflictTimelineID = busy.TimelineID
		resp.ConflictTimelineName = busy.TimelineName
		h.log.Info(op+" rejected, session busy",
			slog.String("conflict_timeline_id", busy.TimelineID))
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, ErrInvalidDestinations):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, ErrInvalidState):
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, ErrInvalidTimeline):
		writeJSON(w, http.StatusNotFound, resp)
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
