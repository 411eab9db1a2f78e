package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"broadcast-orchestrator/internal/encoder"
	"broadcast-orchestrator/internal/platform/metrics"

	"github.com/google/uuid"
)

// Machine is the session state machine. It is the only writer of the
// playback session.
//
// transition serializes state changes: a request that arrives while another
// is in flight queues behind it. mu guards the snapshot itself so readers
// never wait on a slow encoder call.
type Machine struct {
	encoder      encoder.Controller
	destinations DestinationLookup
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	transition sync.Mutex

	mu        sync.RWMutex
	state     Session
	handle    encoder.Handle
	listeners []Listener
}

// NewMachine returns an idle Machine. m may be nil.
func NewMachine(enc encoder.Controller, destinations DestinationLookup, log *slog.Logger, m *metrics.Metrics) *Machine {
	return &Machine{
		encoder:      enc,
		destinations: destinations,
		log:          log,
		metrics:      m,
		now:          time.Now,
		state:        Session{Mode: ModeIdle},
	}
}

// Subscribe registers l for every committed transition.
func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Session returns a snapshot of the current session.
func (m *Machine) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// StartPreview moves idle -> preview on timelineID. It does not check
// admission; use Controller.StartPreview for that.
func (m *Machine) StartPreview(ctx context.Context, timelineID string) (Session, error) {
	m.transition.Lock()
	defer m.transition.Unlock()
	return m.startPreviewLocked(ctx, timelineID, OriginManual)
}

// StopPreview moves preview -> idle and ends the encoder job.
func (m *Machine) StopPreview(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()
	_, err := m.stopLocked(ctx, ModePreview)
	return err
}

// GoLive moves preview -> live on destinationIDs.
func (m *Machine) GoLive(ctx context.Context, destinationIDs []string) (Session, error) {
	m.transition.Lock()
	defer m.transition.Unlock()
	return m.goLiveLocked(ctx, destinationIDs)
}

// StopLive moves live -> idle. There is no live -> preview edge.
func (m *Machine) StopLive(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()
	_, err := m.stopLocked(ctx, ModeLive)
	return err
}

// RecordCue stores the last observed active video cue for session id. It is
// ignored if that session is no longer active.
func (m *Machine) RecordCue(sessionID, cueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Active() || m.state.ID != sessionID {
		return false
	}
	m.state.CurrentCueID = cueID
	return true
}

// SetWarning sets the session-level warning flag for session id. An empty
// warning clears it.
func (m *Machine) SetWarning(sessionID, warning string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Active() || m.state.ID != sessionID {
		return false
	}
	m.state.Warning = warning
	return true
}

func (m *Machine) startPreviewLocked(ctx context.Context, timelineID, origin string) (Session, error) {
	if mode := m.Session().Mode; mode != ModeIdle {
		return Session{}, fmt.Errorf("%w: start preview from %s", ErrInvalidState, mode)
	}

	h, err := m.encoder.Begin(ctx, timelineID)
	if err != nil {
		return Session{}, fmt.Errorf("start preview: %w", err)
	}

	next := Session{
		ID:               uuid.NewString(),
		Mode:             ModePreview,
		ActiveTimelineID: timelineID,
		StreamID:         string(h),
		Origin:           origin,
		StartedAt:        m.now().UTC(),
	}
	m.commit(next, h)
	m.log.Info("preview started",
		slog.String("session_id", next.ID),
		slog.String("timeline_id", timelineID),
		slog.String("stream_id", next.StreamID),
		slog.String("origin", origin))
	return next.clone(), nil
}

func (m *Machine) goLiveLocked(ctx context.Context, destinationIDs []string) (Session, error) {
	cur := m.Session()
	ids := dedupe(destinationIDs)

	if len(ids) == 0 {
		if cur.Mode != ModePreview {
			return Session{}, errors.Join(ErrInvalidDestinations, fmt.Errorf("%w: go live from %s", ErrInvalidState, cur.Mode))
		}
		return Session{}, fmt.Errorf("%w: at least one destination is required", ErrInvalidDestinations)
	}
	if cur.Mode != ModePreview {
		return Session{}, fmt.Errorf("%w: go live from %s", ErrInvalidState, cur.Mode)
	}
	if err := m.checkDestinations(ctx, ids); err != nil {
		return Session{}, err
	}

	m.mu.RLock()
	h := m.handle
	m.mu.RUnlock()
	if err := m.encoder.Reconfigure(ctx, h, ids); err != nil {
		return Session{}, fmt.Errorf("go live: %w", err)
	}

	next := cur
	next.Mode = ModeLive
	next.DestinationIDs = ids
	m.commit(next, h)
	m.log.Info("session live",
		slog.String("session_id", next.ID),
		slog.String("timeline_id", next.ActiveTimelineID),
		slog.Any("destination_ids", ids))
	return next.clone(), nil
}

// stopLocked returns the session in from to idle and ends its encoder job.
// The released handle is returned so a restart can wait for teardown.
func (m *Machine) stopLocked(ctx context.Context, from Mode) (encoder.Handle, error) {
	cur := m.Session()
	if cur.Mode != from {
		return "", fmt.Errorf("%w: stop %s from %s", ErrInvalidState, from, cur.Mode)
	}

	m.mu.RLock()
	h := m.handle
	m.mu.RUnlock()

	// Go idle before talking to the encoder so pollers stop immediately.
	m.commit(Session{Mode: ModeIdle}, "")

	if err := m.encoder.End(ctx, h); err != nil {
		m.log.Warn("encoder end failed",
			slog.String("session_id", cur.ID),
			slog.String("stream_id", string(h)),
			slog.String("error", err.Error()))
	}
	m.log.Info("session stopped",
		slog.String("session_id", cur.ID),
		slog.String("timeline_id", cur.ActiveTimelineID),
		slog.String("from", string(from)))
	return h, nil
}

// checkDestinations requires a non-empty set of known, active destinations.
func (m *Machine) checkDestinations(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrInvalidDestinations)
	}
	for _, id := range ids {
		d, ok := m.destinations.Destination(ctx, id)
		if !ok {
			return fmt.Errorf("%w: %s not found", ErrInvalidDestinations, id)
		}
		if !d.Active {
			return fmt.Errorf("%w: %s is not active", ErrInvalidDestinations, id)
		}
	}
	return nil
}

func (m *Machine) commit(next Session, h encoder.Handle) {
	next.DestinationIDs = append([]string{}, next.DestinationIDs...)

	m.mu.Lock()
	prev := m.state
	if prev.ID != "" && prev.ID == next.ID {
		// Pollers may have written these since the caller took its snapshot.
		next.CurrentCueID = prev.CurrentCueID
		next.Warning = prev.Warning
	}
	m.state = next
	m.handle = h
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.metrics.ObserveTransition(string(next.Mode))
	for _, l := range listeners {
		l(prev.clone(), next.clone())
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
