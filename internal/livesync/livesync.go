// Package livesync keeps the preview player attached to the stream of the
// currently active video cue. The stream URL never changes, but the encoder
// swaps its content when the timeline cuts to another camera, so a cue switch
// forces the player to be torn down and re-attached once the manifest is
// ready again.
package livesync

import (
	"context"
	"time"

	"broadcast-orchestrator/internal/session"
)

// Position is one reading of the playback position feed.
type Position struct {
	CurrentCueID string        `json:"current_cue_id,omitempty"`
	Playing      bool          `json:"is_playing"`
	Elapsed      time.Duration `json:"elapsed"`
}

// PositionFeed reports which cue the running timeline is on.
type PositionFeed interface {
	Position(ctx context.Context) (Position, error)
}

// ManifestFetcher checks whether the preview manifest is ready for a player.
// It returns nil once a valid manifest is served.
type ManifestFetcher interface {
	Fetch(ctx context.Context) error
}

// Player is the single player binding owned by the Synchronizer.
type Player interface {
	// Attach points the player at streamURL. Called only once the manifest
	// is ready.
	Attach(ctx context.Context, streamURL string) error
	// Recover attempts in-place recovery after a transient media error.
	Recover() error
	// Release detaches the player. Releasing a detached player is a no-op.
	Release()
}

// SessionSource is the Synchronizer's view of the playback session. Besides
// reading it may record the observed cue and raise a warning; it can never
// change the session mode.
type SessionSource interface {
	Session() session.Session
	RecordCue(sessionID, cueID string) bool
	SetWarning(sessionID, warning string) bool
}

// ErrorKind classifies player errors reported by clients.
type ErrorKind string

const (
	// ErrorMedia is a decode or media error; recovered in place.
	ErrorMedia ErrorKind = "media"
	// ErrorNetwork is a failed manifest or segment fetch; forces reconciliation.
	ErrorNetwork ErrorKind = "network"
)

// Config tunes the Synchronizer's polling.
type Config struct {
	StreamURL        string
	PositionInterval time.Duration
	ManifestInterval time.Duration
	ManifestAttempts int
	MaxRecoveries    int
}

const (
	DefaultPositionInterval = 500 * time.Millisecond
	DefaultManifestInterval = 500 * time.Millisecond
	DefaultManifestAttempts = 40
	DefaultMaxRecoveries    = 3
)

func (c Config) withDefaults() Config {
	if c.PositionInterval <= 0 {
		c.PositionInterval = DefaultPositionInterval
	}
	if c.ManifestInterval <= 0 {
		c.ManifestInterval = DefaultManifestInterval
	}
	if c.ManifestAttempts <= 0 {
		c.ManifestAttempts = DefaultManifestAttempts
	}
	if c.MaxRecoveries <= 0 {
		c.MaxRecoveries = DefaultMaxRecoveries
	}
	return c
}
