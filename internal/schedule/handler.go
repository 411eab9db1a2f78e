package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"broadcast-orchestrator/internal/session"

	"github.com/go-chi/chi/v5"
)

// Handler exposes schedule CRUD and the conflict check over HTTP. Overlapping
// windows never block a write; they come back as conflicts alongside it.
type Handler struct {
	store        Store
	timelines    session.TimelineLookup
	destinations session.DestinationLookup
	log          *slog.Logger
}

// NewHandler returns a Handler over store.
func NewHandler(store Store, timelines session.TimelineLookup, destinations session.DestinationLookup, log *slog.Logger) *Handler {
	return &Handler{store: store, timelines: timelines, destinations: destinations, log: log}
}

// scheduleJSON is the wire form of a Schedule: windows are local "HH:MM".
type scheduleJSON struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	Enabled        *bool     `json:"is_enabled,omitempty"`
	Timezone       string    `json:"timezone"`
	Days           []int     `json:"days_of_week"`
	WindowStart    string    `json:"window_start"`
	WindowEnd      string    `json:"window_end"`
	Timelines      []Entry   `json:"timelines"`
	DestinationIDs []string  `json:"destination_ids"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

type writeResponse struct {
	Schedule  scheduleJSON   `json:"schedule"`
	Conflicts []scheduleJSON `json:"conflicts"`
}

type conflictsResponse struct {
	Conflicts []scheduleJSON `json:"conflicts"`
}

func toJSON(s Schedule) scheduleJSON {
	enabled := s.Enabled
	return scheduleJSON{
		ID:             s.ID,
		Name:           s.Name,
		Enabled:        &enabled,
		Timezone:       s.Timezone,
		Days:           s.Days,
		WindowStart:    FormatClock(s.WindowStart),
		WindowEnd:      FormatClock(s.WindowEnd),
		Timelines:      s.OrderedTimelines(),
		DestinationIDs: s.DestinationIDs,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toJSONList(in []Schedule) []scheduleJSON {
	out := make([]scheduleJSON, 0, len(in))
	for _, s := range in {
		out = append(out, toJSON(s))
	}
	return out
}

// decode parses and validates a schedule body. is_enabled defaults to true
// and timezone to UTC.
func (h *Handler) decode(r *http.Request) (Schedule, error) {
	var in scheduleJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return Schedule{}, fmt.Errorf("%w: invalid body", ErrInvalidSchedule)
	}
	start, err := ParseClock(in.WindowStart)
	if err != nil {
		return Schedule{}, err
	}
	end, err := ParseClock(in.WindowEnd)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{
		ID:             in.ID,
		Name:           in.Name,
		Enabled:        in.Enabled == nil || *in.Enabled,
		Timezone:       in.Timezone,
		Days:           in.Days,
		WindowStart:    start,
		WindowEnd:      end,
		Timelines:      in.Timelines,
		DestinationIDs: in.DestinationIDs,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	if err := h.checkRefs(r.Context(), &s); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

func (h *Handler) checkRefs(ctx context.Context, s *Schedule) error {
	for _, e := range s.Timelines {
		if _, ok := h.timelines.Timeline(ctx, e.TimelineID); !ok {
			return fmt.Errorf("%w: unknown timeline %s", ErrInvalidSchedule, e.TimelineID)
		}
	}
	for _, id := range s.DestinationIDs {
		d, ok := h.destinations.Destination(ctx, id)
		if !ok {
			return fmt.Errorf("%w: unknown destination %s", ErrInvalidSchedule, id)
		}
		if !d.Active {
			return fmt.Errorf("%w: destination %s is not active", ErrInvalidSchedule, id)
		}
	}
	return nil
}

// List handles GET /api/schedules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		h.writeError(w, "list schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, toJSONList(all))
}

// Get handles GET /api/schedules/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(s))
}

// Create handles POST /api/schedules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	s, err := h.decode(r)
	if err != nil {
		h.writeError(w, "create schedule", err)
		return
	}
	conflicts, err := h.conflicts(r.Context(), &s)
	if err != nil {
		h.writeError(w, "create schedule", err)
		return
	}
	created, err := h.store.Create(r.Context(), s)
	if err != nil {
		h.writeError(w, "create schedule", err)
		return
	}
	h.logConflicts(created, conflicts)
	writeJSON(w, http.StatusCreated, writeResponse{Schedule: toJSON(created), Conflicts: toJSONList(conflicts)})
}

// Update handles PUT /api/schedules/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	s, err := h.decode(r)
	if err != nil {
		h.writeError(w, "update schedule", err)
		return
	}
	s.ID = chi.URLParam(r, "id")
	conflicts, err := h.conflicts(r.Context(), &s)
	if err != nil {
		h.writeError(w, "update schedule", err)
		return
	}
	updated, err := h.store.Update(r.Context(), s)
	if err != nil {
		h.writeError(w, "update schedule", err)
		return
	}
	h.logConflicts(updated, conflicts)
	writeJSON(w, http.StatusOK, writeResponse{Schedule: toJSON(updated), Conflicts: toJSONList(conflicts)})
}

// Delete handles DELETE /api/schedules/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "delete schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConflicts handles POST /api/schedules/conflicts. The body is a
// candidate schedule; with an id, that stored schedule is not compared with
// itself.
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	s, err := h.decode(r)
	if err != nil {
		h.writeError(w, "check conflicts", err)
		return
	}
	conflicts, err := h.conflicts(r.Context(), &s)
	if err != nil {
		h.writeError(w, "check conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, conflictsResponse{Conflicts: toJSONList(conflicts)})
}

func (h *Handler) conflicts(ctx context.Context, s *Schedule) ([]Schedule, error) {
	existing, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return CheckConflicts(s, existing), nil
}

func (h *Handler) logConflicts(s Schedule, conflicts []Schedule) {
	if len(conflicts) == 0 {
		return
	}
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	h.log.Info("schedule saved with overlapping windows",
		slog.String("schedule_id", s.ID),
		slog.Any("conflict_ids", ids))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidSchedule):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
