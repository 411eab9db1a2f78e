package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidTimeline is returned by Validate for structurally broken timelines.
var ErrInvalidTimeline = errors.New("invalid timeline")

// Validate checks the timeline invariants: a positive duration, known track
// types, unique cue ids and every cue lying inside [0, Duration].
func (t *Timeline) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTimeline)
	}
	if t.Duration <= 0 {
		return fmt.Errorf("%w: %s: duration must be positive", ErrInvalidTimeline, t.ID)
	}

	seen := make(map[string]struct{})
	for _, tr := range t.Tracks {
		switch tr.Type {
		case TrackVideo, TrackOverlay, TrackAudio:
		default:
			return fmt.Errorf("%w: %s: track %s has unknown type %q", ErrInvalidTimeline, t.ID, tr.ID, tr.Type)
		}
		for _, c := range tr.Cues {
			if c.ID == "" {
				return fmt.Errorf("%w: %s: track %s has a cue without id", ErrInvalidTimeline, t.ID, tr.ID)
			}
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: %s: duplicate cue id %s", ErrInvalidTimeline, t.ID, c.ID)
			}
			seen[c.ID] = struct{}{}

			if c.StartTime < 0 || c.Duration < 0 || c.End() > t.Duration {
				return fmt.Errorf("%w: %s: cue %s [%v, %v) outside timeline duration %v",
					ErrInvalidTimeline, t.ID, c.ID, c.StartTime, c.End(), t.Duration)
			}
		}
	}
	return nil
}

// Normalize sorts each track's cues by start time, breaking ties with CueOrder.
func (t *Timeline) Normalize() {
	for i := range t.Tracks {
		cues := t.Tracks[i].Cues
		sort.SliceStable(cues, func(a, b int) bool {
			if cues[a].StartTime != cues[b].StartTime {
				return cues[a].StartTime < cues[b].StartTime
			}
			return cues[a].CueOrder < cues[b].CueOrder
		})
	}
}

// Position maps wall-clock time since the timeline started onto the timeline.
// ok is false once a non-looping timeline has run past its end.
func (t *Timeline) Position(elapsed time.Duration) (pos time.Duration, ok bool) {
	if elapsed < 0 || t.Duration <= 0 {
		return 0, false
	}
	if t.Loop {
		return elapsed % t.Duration, true
	}
	if elapsed >= t.Duration {
		return t.Duration, false
	}
	return elapsed, true
}

// ActiveVideoCue returns the video cue on screen at pos: among video tracks
// the highest layer with a cue covering pos wins, and within a track the
// latest-starting covering cue wins.
func (t *Timeline) ActiveVideoCue(pos time.Duration) (Cue, bool) {
	var (
		best      Cue
		bestLayer int
		found     bool
	)
	for _, tr := range t.Tracks {
		if tr.Type != TrackVideo {
			continue
		}
		if found && tr.Layer <= bestLayer {
			continue
		}
		if c, ok := coveringCue(tr.Cues, pos); ok {
			best, bestLayer, found = c, tr.Layer, true
		}
	}
	return best, found
}

func coveringCue(cues []Cue, pos time.Duration) (Cue, bool) {
	var (
		hit   Cue
		found bool
	)
	for _, c := range cues {
		if c.StartTime <= pos && pos < c.End() {
			if !found || c.StartTime > hit.StartTime ||
				(c.StartTime == hit.StartTime && c.CueOrder > hit.CueOrder) {
				hit, found = c, true
			}
		}
	}
	return hit, found
}
