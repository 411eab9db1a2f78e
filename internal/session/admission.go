package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"broadcast-orchestrator/internal/platform/metrics"
)

// DefaultTeardownTimeout bounds the wait for encoder teardown on restart.
const DefaultTeardownTimeout = time.Second

// Controller is the admission controller and the entry point for every
// session operation. It enforces that at most one timeline executes at a
// time, and turns an operator start of the already-running timeline into a
// stop-then-start restart.
//
// Scheduled starts never restart: StartScheduled reports any active session
// as busy, including a manual session on the same timeline, so a schedule
// cannot interrupt an operator.
type Controller struct {
	machine         *Machine
	timelines       TimelineLookup
	teardownTimeout time.Duration
	log             *slog.Logger
	metrics         *metrics.Metrics
}

// NewController wraps machine. teardownTimeout <= 0 uses DefaultTeardownTimeout.
func NewController(machine *Machine, timelines TimelineLookup, teardownTimeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Controller {
	if teardownTimeout <= 0 {
		teardownTimeout = DefaultTeardownTimeout
	}
	return &Controller{
		machine:         machine,
		timelines:       timelines,
		teardownTimeout: teardownTimeout,
		log:             log,
		metrics:         m,
	}
}

// Session returns a snapshot of the playback session.
func (c *Controller) Session() Session {
	return c.machine.Session()
}

// StartPreview starts previewing timelineID on behalf of an operator.
func (c *Controller) StartPreview(ctx context.Context, timelineID string) (Session, error) {
	c.machine.transition.Lock()
	defer c.machine.transition.Unlock()
	return c.admitLocked(ctx, timelineID, OriginManual)
}

// StartScheduled starts timelineID for a schedule and takes it live on
// destinationIDs. Unlike StartPreview it never restarts a running session:
// any active session, whatever its timeline, is reported as busy. If going
// live fails the preview is stopped again so a half-started schedule does not
// hold the session.
func (c *Controller) StartScheduled(ctx context.Context, timelineID string, destinationIDs []string, origin string) (Session, error) {
	c.machine.transition.Lock()
	defer c.machine.transition.Unlock()

	if cur := c.machine.Session(); cur.Active() {
		return Session{}, c.busy(ctx, cur)
	}
	// Checked before the encoder is involved so a schedule that can never go
	// live does not begin a job on every attempt.
	ids := dedupe(destinationIDs)
	if err := c.machine.checkDestinations(ctx, ids); err != nil {
		return Session{}, err
	}
	if _, err := c.admitLocked(ctx, timelineID, origin); err != nil {
		return Session{}, err
	}
	s, err := c.machine.goLiveLocked(ctx, ids)
	if err != nil {
		if _, stopErr := c.machine.stopLocked(ctx, ModePreview); stopErr != nil {
			c.log.Warn("rollback of scheduled preview failed", slog.String("error", stopErr.Error()))
		}
		return Session{}, err
	}
	return s, nil
}

// SwitchScheduled replaces the running scheduled session with timelineID,
// live on destinationIDs. It refuses if the session was not started by origin.
func (c *Controller) SwitchScheduled(ctx context.Context, timelineID string, destinationIDs []string, origin string) (Session, error) {
	c.machine.transition.Lock()
	defer c.machine.transition.Unlock()

	cur := c.machine.Session()
	if !cur.Active() || cur.Origin != origin {
		return Session{}, c.busy(ctx, cur)
	}
	ids := dedupe(destinationIDs)
	if err := c.machine.checkDestinations(ctx, ids); err != nil {
		return Session{}, err
	}
	if err := c.stopAndWaitLocked(ctx, cur); err != nil {
		return Session{}, err
	}
	if _, err := c.machine.startPreviewLocked(ctx, timelineID, origin); err != nil {
		return Session{}, err
	}
	return c.machine.goLiveLocked(ctx, ids)
}

// StopScheduled stops the session if, and only if, origin started it. It
// reports whether a session was stopped.
func (c *Controller) StopScheduled(ctx context.Context, origin string) (bool, error) {
	c.machine.transition.Lock()
	defer c.machine.transition.Unlock()

	cur := c.machine.Session()
	if !cur.Active() || cur.Origin != origin {
		return false, nil
	}
	if _, err := c.machine.stopLocked(ctx, cur.Mode); err != nil {
		return false, err
	}
	return true, nil
}

// StopPreview stops an active preview.
func (c *Controller) StopPreview(ctx context.Context) error {
	return c.machine.StopPreview(ctx)
}

// GoLive promotes the preview to a live broadcast.
func (c *Controller) GoLive(ctx context.Context, destinationIDs []string) (Session, error) {
	return c.machine.GoLive(ctx, destinationIDs)
}

// StopLive stops a live broadcast, returning to idle.
func (c *Controller) StopLive(ctx context.Context) error {
	return c.machine.StopLive(ctx)
}

// Stop ends whatever is running. Stopping an idle session is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.machine.transition.Lock()
	defer c.machine.transition.Unlock()

	cur := c.machine.Session()
	if !cur.Active() {
		return nil
	}
	_, err := c.machine.stopLocked(ctx, cur.Mode)
	return err
}

// admitLocked applies the admission rules. Caller holds the transition lock.
func (c *Controller) admitLocked(ctx context.Context, timelineID, origin string) (Session, error) {
	cur := c.machine.Session()

	if cur.Active() && cur.ActiveTimelineID != timelineID {
		return Session{}, c.busy(ctx, cur)
	}
	if _, ok := c.timelines.Timeline(ctx, timelineID); !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrInvalidTimeline, timelineID)
	}

	if cur.Active() {
		c.log.Info("restarting timeline",
			slog.String("timeline_id", timelineID),
			slog.String("from", string(cur.Mode)))
		if err := c.stopAndWaitLocked(ctx, cur); err != nil {
			return Session{}, err
		}
	}
	return c.machine.startPreviewLocked(ctx, timelineID, origin)
}

// stopAndWaitLocked stops cur and waits, bounded, for the encoder to confirm
// teardown. An unconfirmed teardown is logged and the caller carries on.
func (c *Controller) stopAndWaitLocked(ctx context.Context, cur Session) error {
	h, err := c.machine.stopLocked(ctx, cur.Mode)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.teardownTimeout)
	defer cancel()
	if err := c.machine.encoder.AwaitStopped(waitCtx, h); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.IncTeardownTimeouts()
		c.log.Warn("teardown not confirmed, restarting anyway",
			slog.String("stream_id", string(h)),
			slog.Duration("waited", c.teardownTimeout),
			slog.String("error", errors.Join(ErrTeardownTimeout, err).Error()))
	}
	return nil
}

func (c *Controller) busy(ctx context.Context, cur Session) error {
	c.metrics.IncAdmissionRejections()
	name := cur.ActiveTimelineID
	if tl, ok := c.timelines.Timeline(ctx, cur.ActiveTimelineID); ok && tl.Name != "" {
		name = tl.Name
	}
	return &BusyError{TimelineID: cur.ActiveTimelineID, TimelineName: name, Mode: cur.Mode}
}
