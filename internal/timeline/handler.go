package timeline

import (
	"encoding/json"
	"net/http"
)

// Handler serves the read-only catalog listings.
type Handler struct {
	catalog *Catalog
}

// NewHandler returns a Handler over catalog.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// ListTimelines handles GET /api/timelines.
func (h *Handler) ListTimelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.catalog.Timelines())
}

// ListDestinations handles GET /api/destinations. Ingest URLs are not exposed.
func (h *Handler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.catalog.Destinations())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
