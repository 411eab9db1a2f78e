package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"broadcast-orchestrator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes segment registration and the preview manifest.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. m may be nil.
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// RegisterSegment handles POST /streams/{stream_id}/renditions/{rendition}/segments.
// Body: { "sequence": 42, "duration": 2.0, "path": "/segments/42.ts" }.
func (h *Handler) RegisterSegment(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	rendition := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || rendition == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var seg Segment
	if err := json.NewDecoder(r.Body).Decode(&seg); err != nil || seg.Path == "" || seg.Duration <= 0 {
		h.log.Debug("invalid segment body", slog.String("stream_id", string(streamID)))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.svc.RegisterSegment(streamID, rendition, seg)
	switch {
	case errors.Is(err, ErrUnknownStream):
		w.WriteHeader(http.StatusNotFound)
		return
	case errors.Is(err, ErrStreamEnded):
		h.log.Info("segment rejected, stream ended",
			slog.String("stream_id", string(streamID)),
			slog.String("rendition", string(rendition)),
			slog.Int64("sequence", seg.Sequence))
		w.WriteHeader(http.StatusConflict)
		return
	case err != nil:
		h.log.Error("register segment failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.metrics.IncSegmentsRegistered()
}

// GetPreviewPlaylist handles GET /preview/{rendition}/playlist.m3u8. The URL
// never changes across sessions; its content follows the current stream.
func (h *Handler) GetPreviewPlaylist(w http.ResponseWriter, r *http.Request) {
	m3u8, ok := h.svc.CurrentPlaylist(RenditionID(chi.URLParam(r, "rendition")))
	h.writePlaylist(w, m3u8, ok)
}

// GetPlaylist handles GET /streams/{stream_id}/renditions/{rendition}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	m3u8, ok := h.svc.Playlist(StreamID(chi.URLParam(r, "stream_id")), RenditionID(chi.URLParam(r, "rendition")))
	h.writePlaylist(w, m3u8, ok)
}

func (h *Handler) writePlaylist(w http.ResponseWriter, m3u8 string, ok bool) {
	// Pollers must never be handed a cached 404 from before the stream began.
	w.Header().Set("Cache-Control", "no-store")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}
