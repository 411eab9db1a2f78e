package livesync

import (
	"context"
	"errors"
	"time"

	"broadcast-orchestrator/internal/session"
)

var errNoSession = errors.New("no active session")

// ClockFeed derives the playback position from the wall clock: the encoder
// starts a timeline when the session starts and plays it in real time, so
// the elapsed time since StartedAt locates the active cue.
type ClockFeed struct {
	sessions  SessionSource
	timelines session.TimelineLookup
	now       func() time.Time
}

// NewClockFeed returns a ClockFeed over sessions and timelines.
func NewClockFeed(sessions SessionSource, timelines session.TimelineLookup) *ClockFeed {
	return &ClockFeed{sessions: sessions, timelines: timelines, now: time.Now}
}

func (f *ClockFeed) Position(ctx context.Context) (Position, error) {
	sess := f.sessions.Session()
	if !sess.Active() {
		return Position{}, errNoSession
	}
	tl, ok := f.timelines.Timeline(ctx, sess.ActiveTimelineID)
	if !ok {
		return Position{}, session.ErrInvalidTimeline
	}

	elapsed := f.now().Sub(sess.StartedAt)
	pos, playing := tl.Position(elapsed)
	if !playing {
		return Position{Elapsed: elapsed}, nil
	}
	p := Position{Playing: true, Elapsed: pos}
	if cue, ok := tl.ActiveVideoCue(pos); ok {
		p.CurrentCueID = cue.ID
	}
	return p, nil
}
