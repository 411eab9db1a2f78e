// Package session owns the single process-wide playback session: the
// idle -> preview -> live state machine and the admission controller that
// keeps at most one timeline executing at a time.
package session

import (
	"context"
	"time"

	"broadcast-orchestrator/internal/timeline"
)

// Mode is the playback session mode.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModePreview Mode = "preview"
	ModeLive    Mode = "live"
)

// OriginManual tags sessions started by an operator.
const OriginManual = "manual"

// Session is a read-only snapshot of the playback session. Empty string ids
// stand for null.
type Session struct {
	ID               string    `json:"id,omitempty"`
	Mode             Mode      `json:"mode"`
	ActiveTimelineID string    `json:"active_timeline_id,omitempty"`
	DestinationIDs   []string  `json:"destination_ids"`
	CurrentCueID     string    `json:"current_cue_id,omitempty"`
	StreamID         string    `json:"stream_id,omitempty"`
	Origin           string    `json:"origin,omitempty"`
	StartedAt        time.Time `json:"started_at,omitzero"`
	Warning          string    `json:"warning,omitempty"`
}

// Active reports whether a timeline is executing (preview or live).
func (s Session) Active() bool {
	return s.Mode == ModePreview || s.Mode == ModeLive
}

func (s Session) clone() Session {
	s.DestinationIDs = append([]string{}, s.DestinationIDs...)
	return s
}

// TimelineLookup resolves timelines by id.
type TimelineLookup interface {
	Timeline(ctx context.Context, id string) (timeline.Timeline, bool)
}

// DestinationLookup resolves destinations by id.
type DestinationLookup interface {
	Destination(ctx context.Context, id string) (timeline.Destination, bool)
}

// Listener observes committed transitions. Listeners run synchronously on
// the transition path and must not call back into the Machine's transition
// methods.
type Listener func(prev, next Session)
