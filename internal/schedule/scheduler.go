package schedule

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"broadcast-orchestrator/internal/platform/metrics"
	"broadcast-orchestrator/internal/session"
)

// DefaultInterval is how often the Scheduler evaluates schedules.
const DefaultInterval = 30 * time.Second

const originPrefix = "schedule:"

// SessionController is the part of the admission controller the Scheduler
// drives.
type SessionController interface {
	Session() session.Session
	StartScheduled(ctx context.Context, timelineID string, destinationIDs []string, origin string) (session.Session, error)
	SwitchScheduled(ctx context.Context, timelineID string, destinationIDs []string, origin string) (session.Session, error)
	StopScheduled(ctx context.Context, origin string) (bool, error)
}

// Lister lists schedules.
type Lister interface {
	List(ctx context.Context) ([]Schedule, error)
}

// Scheduler starts a schedule's timelines while its window is open and stops
// them when it closes. Only one schedule can hold the session; the others are
// refused by admission and retried on the next tick.
type Scheduler struct {
	schedules Lister
	sessions  SessionController
	timelines session.TimelineLookup
	interval  time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewScheduler returns a Scheduler. interval <= 0 uses DefaultInterval.
func NewScheduler(schedules Lister, sessions SessionController, timelines session.TimelineLookup, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		schedules: schedules,
		sessions:  sessions,
		timelines: timelines,
		interval:  interval,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Run evaluates schedules immediately and then on every interval until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scheduler tick failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation.
func (s *Scheduler) Tick(ctx context.Context) error {
	all, err := s.schedules.List(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	cur := s.sessions.Session()

	if cur.Active() && strings.HasPrefix(cur.Origin, originPrefix) {
		owner, ok := findByOrigin(all, cur.Origin)
		if !ok || !owner.Enabled || !IsOpen(&owner, now) {
			return s.stop(ctx, cur)
		}
		return s.advance(ctx, &owner, cur, now)
	}

	for i := range all {
		sc := &all[i]
		if !sc.Enabled || !IsOpen(sc, now) {
			continue
		}
		if done, err := s.start(ctx, sc); done || err != nil {
			return err
		}
	}
	return nil
}

// start tries to start sc. done reports that the session is now taken,
// either by sc or by someone admission refused sc for.
func (s *Scheduler) start(ctx context.Context, sc *Schedule) (done bool, err error) {
	entries := sc.OrderedTimelines()
	if len(entries) == 0 {
		return false, nil
	}
	first := entries[0].TimelineID

	sess, err := s.sessions.StartScheduled(ctx, first, sc.DestinationIDs, sc.Origin())
	var busy *session.BusyError
	switch {
	case errors.As(err, &busy):
		s.log.Info("scheduled start deferred, session busy",
			slog.String("schedule_id", sc.ID),
			slog.String("conflict_timeline_id", busy.TimelineID),
			slog.String("mode", string(busy.Mode)))
		return true, nil
	case err != nil:
		s.log.Warn("scheduled start failed",
			slog.String("schedule_id", sc.ID),
			slog.String("timeline_id", first),
			slog.String("error", err.Error()))
		return false, nil
	}

	s.metrics.IncScheduledStarts()
	s.log.Info("schedule started",
		slog.String("schedule_id", sc.ID),
		slog.String("schedule", sc.Name),
		slog.String("session_id", sess.ID),
		slog.String("timeline_id", first))
	return true, nil
}

// advance moves to the next playlist entry once a non-looping timeline has
// played to its end. The playlist repeats until the window closes.
func (s *Scheduler) advance(ctx context.Context, sc *Schedule, cur session.Session, now time.Time) error {
	tl, ok := s.timelines.Timeline(ctx, cur.ActiveTimelineID)
	if !ok || tl.Loop || now.Sub(cur.StartedAt) < tl.Duration {
		return nil
	}

	entries := sc.OrderedTimelines()
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.TimelineID == cur.ActiveTimelineID })
	next := entries[(i+1)%len(entries)].TimelineID

	if _, err := s.sessions.SwitchScheduled(ctx, next, sc.DestinationIDs, sc.Origin()); err != nil {
		return err
	}
	s.log.Info("schedule advanced",
		slog.String("schedule_id", sc.ID),
		slog.String("from_timeline_id", cur.ActiveTimelineID),
		slog.String("timeline_id", next))
	return nil
}

func (s *Scheduler) stop(ctx context.Context, cur session.Session) error {
	stopped, err := s.sessions.StopScheduled(ctx, cur.Origin)
	if err != nil {
		return err
	}
	if stopped {
		s.log.Info("schedule window closed, session stopped",
			slog.String("origin", cur.Origin),
			slog.String("session_id", cur.ID))
	}
	return nil
}

func findByOrigin(all []Schedule, origin string) (Schedule, bool) {
	for _, sc := range all {
		if sc.Origin() == origin {
			return sc, true
		}
	}
	return Schedule{}, false
}

// IsOpen reports whether sc's window contains now, evaluated in sc's
// timezone. The tail of a window that wraps past midnight belongs to the day
// it started on.
func IsOpen(sc *Schedule, now time.Time) bool {
	loc, err := time.LoadLocation(sc.Timezone)
	if err != nil {
		return false
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	day := int(local.Weekday())
	prev := (day + 6) % 7

	if !sc.Wraps() {
		return slices.Contains(sc.Days, day) && minute >= sc.WindowStart && minute < sc.WindowEnd
	}
	return (slices.Contains(sc.Days, day) && minute >= sc.WindowStart) ||
		(slices.Contains(sc.Days, prev) && minute < sc.WindowEnd)
}
