package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not valid from the
	// current mode. Callers recover by re-reading the session.
	ErrInvalidState = errors.New("operation not valid in current session mode")

	// ErrSessionBusy is returned when another timeline holds the session.
	ErrSessionBusy = errors.New("another timeline holds the playback session")

	// ErrInvalidTimeline is returned when the requested timeline does not exist.
	ErrInvalidTimeline = errors.New("timeline not found")

	// ErrInvalidDestinations is returned when go-live is given an empty set or
	// an id that does not resolve to an active destination.
	ErrInvalidDestinations = errors.New("invalid destinations")

	// ErrManifestTimeout marks a preview that never became ready. It is
	// surfaced as a session warning, never as a failed transition.
	ErrManifestTimeout = errors.New("preview manifest not ready")

	// ErrTeardownTimeout marks a restart that went ahead without the encoder
	// confirming teardown. Logged, non-fatal.
	ErrTeardownTimeout = errors.New("encoder teardown not confirmed")
)

// BusyError is the SessionBusy rejection. It names the timeline that holds
// the session so the operator can decide whether to stop it.
type BusyError struct {
	TimelineID   string
	TimelineName string
	Mode         Mode
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: %q is in %s", ErrSessionBusy, e.TimelineName, e.Mode)
}

func (e *BusyError) Unwrap() error {
	return ErrSessionBusy
}

// Warning values carried on Session.Warning.
const (
	WarningManifestTimeout = "manifest_timeout"
)
