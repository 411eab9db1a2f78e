package livesync

import (
	"encoding/json"
	"net/http"
)

// Handler exposes the preview player state to operator UI clients.
type Handler struct {
	sync    *Synchronizer
	binding *Binding
}

// NewHandler returns a Handler. binding may be nil when the player is not a
// Binding.
func NewHandler(s *Synchronizer, binding *Binding) *Handler {
	return &Handler{sync: s, binding: binding}
}

type previewResponse struct {
	Status
	Player *BindingState `json:"player,omitempty"`
}

type playerErrorRequest struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// GetPreview handles GET /api/preview. UI clients poll it and (re)load their
// player whenever player.generation changes.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	resp := previewResponse{Status: h.sync.Status()}
	if h.binding != nil {
		st := h.binding.State()
		resp.Player = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReportPlayerError handles POST /api/preview/player-errors.
// Body: { "kind": "media" | "network", "detail": "bufferStalledError" }.
func (h *Handler) ReportPlayerError(w http.ResponseWriter, r *http.Request) {
	var req playerErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.Kind != ErrorMedia && req.Kind != ErrorNetwork {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be media or network"})
		return
	}
	if err := h.sync.ReportPlayerError(req.Kind, req.Detail); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
