// Package encoder talks to the external encoder agent that renders a timeline
// into the preview stream and fans it out to broadcast destinations.
package encoder

import (
	"context"
	"errors"
)

// Handle identifies one encoder job. It doubles as the preview stream id the
// agent registers segments under.
type Handle string

// ErrUnknownJob is returned when the agent does not know a handle.
var ErrUnknownJob = errors.New("unknown encoder job")

// Controller is the encoder control contract. Every call is idempotent: ending
// an ended job or reconfiguring with the same destinations is harmless.
type Controller interface {
	// Begin starts rendering timelineID. It returns once the job is accepted,
	// not once media is ready.
	Begin(ctx context.Context, timelineID string) (Handle, error)
	// Reconfigure sets the broadcast destinations of a running job.
	Reconfigure(ctx context.Context, h Handle, destinationIDs []string) error
	// End asks the job to stop.
	End(ctx context.Context, h Handle) error
	// AwaitStopped blocks until the agent confirms the job released its
	// resources, or ctx is done.
	AwaitStopped(ctx context.Context, h Handle) error
}
