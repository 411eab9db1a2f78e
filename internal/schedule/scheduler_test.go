package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"broadcast-orchestrator/internal/encoder"
	"broadcast-orchestrator/internal/platform/logger"
	"broadcast-orchestrator/internal/session"
	"broadcast-orchestrator/internal/timeline"
)

type call struct {
	op, timelineID, origin string
}

// fakeSessions records what the Scheduler asks of the admission controller.
type fakeSessions struct {
	sess     session.Session
	startErr error
	calls    []call
}

func (f *fakeSessions) Session() session.Session { return f.sess }

func (f *fakeSessions) StartScheduled(_ context.Context, timelineID string, _ []string, origin string) (session.Session, error) {
	f.calls = append(f.calls, call{"start", timelineID, origin})
	if f.startErr != nil {
		return session.Session{}, f.startErr
	}
	f.sess = session.Session{ID: "s1", Mode: session.ModeLive, ActiveTimelineID: timelineID, Origin: origin}
	return f.sess, nil
}

func (f *fakeSessions) SwitchScheduled(_ context.Context, timelineID string, _ []string, origin string) (session.Session, error) {
	f.calls = append(f.calls, call{"switch", timelineID, origin})
	f.sess.ActiveTimelineID = timelineID
	return f.sess, nil
}

func (f *fakeSessions) StopScheduled(_ context.Context, origin string) (bool, error) {
	f.calls = append(f.calls, call{"stop", "", origin})
	if f.sess.Origin != origin {
		return false, nil
	}
	f.sess = session.Session{Mode: session.ModeIdle}
	return true, nil
}

type staticLister []Schedule

func (l staticLister) List(context.Context) ([]Schedule, error) { return l, nil }

func schedulerCatalog(t *testing.T) *timeline.Catalog {
	t.Helper()
	c, err := timeline.NewCatalog([]timeline.Timeline{
		{ID: "A", Name: "Alpha", Duration: time.Minute},
		{ID: "B", Name: "Bravo", Duration: time.Minute},
		{ID: "L", Name: "Loop", Duration: time.Minute, Loop: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// friday 2026-03-06 22:30 UTC
var fridayNight = time.Date(2026, 3, 6, 22, 30, 0, 0, time.UTC)

func eveningShow(id string, entries ...Entry) Schedule {
	return Schedule{
		ID: id, Name: "Evening " + id, Enabled: true, Timezone: "UTC",
		Days: []int{fri}, WindowStart: 22 * 60, WindowEnd: 2 * 60,
		Timelines: entries, DestinationIDs: []string{"yt"},
	}
}

func newTestScheduler(t *testing.T, sessions *fakeSessions, schedules []Schedule, now time.Time) *Scheduler {
	s := NewScheduler(staticLister(schedules), sessions, schedulerCatalog(t), 0, logger.Discard(), nil)
	s.now = func() time.Time { return now }
	return s
}

func TestIsOpen(t *testing.T) {
	nineToFive := &Schedule{Timezone: "UTC", Days: []int{mon}, WindowStart: 9 * 60, WindowEnd: 17 * 60}
	overnight := &Schedule{Timezone: "UTC", Days: []int{fri}, WindowStart: 22 * 60, WindowEnd: 2 * 60}
	newYork := &Schedule{Timezone: "America/New_York", Days: []int{mon}, WindowStart: 9 * 60, WindowEnd: 17 * 60}

	at := func(month time.Month, day, hour, min int) time.Time {
		return time.Date(2026, month, day, hour, min, 0, 0, time.UTC)
	}
	tests := []struct {
		name string
		sc   *Schedule
		now  time.Time
		want bool
	}{
		{"inside", nineToFive, at(3, 9, 10, 0), true},
		{"at_start", nineToFive, at(3, 9, 9, 0), true},
		{"at_end_is_closed", nineToFive, at(3, 9, 17, 0), false},
		{"other_day", nineToFive, at(3, 10, 10, 0), false},
		{"wrap_before_midnight", overnight, at(3, 6, 23, 0), true},
		{"wrap_after_midnight", overnight, at(3, 7, 1, 0), true},
		{"wrap_closed_at_end", overnight, at(3, 7, 2, 0), false},
		{"wrap_before_start", overnight, at(3, 6, 21, 0), false},
		{"wrap_tail_needs_previous_day", overnight, at(3, 6, 1, 0), false},
		{"timezone_applied", newYork, at(6, 8, 14, 0), true},
		{"timezone_closed_in_utc_window", newYork, at(6, 8, 10, 0), false},
		{"bad_timezone", &Schedule{Timezone: "Mars/Olympus", Days: []int{mon}, WindowStart: 0, WindowEnd: 60}, at(3, 9, 0, 30), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOpen(tc.sc, tc.now); got != tc.want {
				t.Errorf("IsOpen = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScheduler_Tick_startsFirstEntry(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{Mode: session.ModeIdle}}
	sc := eveningShow("s1", Entry{TimelineID: "A", OrderIndex: 1}, Entry{TimelineID: "B", OrderIndex: 0})
	s := newTestScheduler(t, sessions, []Schedule{sc}, fridayNight)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	want := []call{{"start", "B", "schedule:s1"}}
	if len(sessions.calls) != 1 || sessions.calls[0] != want[0] {
		t.Errorf("calls = %v, want %v", sessions.calls, want)
	}
}

func TestScheduler_Tick_skipsClosedAndDisabled(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{Mode: session.ModeIdle}}
	disabled := eveningShow("off", Entry{TimelineID: "A"})
	disabled.Enabled = false
	s := newTestScheduler(t, sessions, []Schedule{disabled, eveningShow("s1", Entry{TimelineID: "A"})}, fridayNight.Add(-3*time.Hour))

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(sessions.calls) != 0 {
		t.Errorf("calls = %v, want none", sessions.calls)
	}
}

func TestScheduler_Tick_busyIsRetriedLater(t *testing.T) {
	busy := &session.BusyError{TimelineID: "A", TimelineName: "Alpha", Mode: session.ModePreview}
	sessions := &fakeSessions{
		sess:     session.Session{Mode: session.ModePreview, ActiveTimelineID: "A", Origin: session.OriginManual},
		startErr: busy,
	}
	s := newTestScheduler(t, sessions,
		[]Schedule{eveningShow("s1", Entry{TimelineID: "A"}), eveningShow("s2", Entry{TimelineID: "B"})},
		fridayNight)

	for range 2 {
		if err := s.Tick(context.Background()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if len(sessions.calls) != 2 {
		t.Fatalf("calls = %v, want one refused start per tick", sessions.calls)
	}
	for _, c := range sessions.calls {
		if c.op != "start" || c.origin != "schedule:s1" {
			t.Errorf("unexpected call %v", c)
		}
	}
	if sessions.sess.Origin != session.OriginManual {
		t.Error("manual session was disturbed")
	}
}

func TestScheduler_Tick_failedStartTriesNextSchedule(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{Mode: session.ModeIdle}, startErr: errors.New("encoder down")}
	s := newTestScheduler(t, sessions,
		[]Schedule{eveningShow("s1", Entry{TimelineID: "A"}), eveningShow("s2", Entry{TimelineID: "B"})},
		fridayNight)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(sessions.calls) != 2 || sessions.calls[1].origin != "schedule:s2" {
		t.Errorf("calls = %v", sessions.calls)
	}
}

func TestScheduler_Tick_stopsWhenWindowCloses(t *testing.T) {
	sc := eveningShow("s1", Entry{TimelineID: "L"})
	closing := time.Date(2026, 3, 7, 2, 0, 0, 0, time.UTC)

	t.Run("window_closed", func(t *testing.T) {
		sessions := &fakeSessions{sess: session.Session{Mode: session.ModeLive, ActiveTimelineID: "L", Origin: sc.Origin()}}
		s := newTestScheduler(t, sessions, []Schedule{sc}, closing)
		s.Tick(context.Background())
		if sessions.sess.Mode != session.ModeIdle {
			t.Errorf("session still %s after the window closed", sessions.sess.Mode)
		}
	})

	t.Run("schedule_deleted", func(t *testing.T) {
		sessions := &fakeSessions{sess: session.Session{Mode: session.ModeLive, ActiveTimelineID: "L", Origin: sc.Origin()}}
		s := newTestScheduler(t, sessions, nil, fridayNight)
		s.Tick(context.Background())
		if sessions.sess.Mode != session.ModeIdle {
			t.Error("session of a deleted schedule kept running")
		}
	})

	t.Run("manual_session_untouched", func(t *testing.T) {
		sessions := &fakeSessions{sess: session.Session{Mode: session.ModeLive, ActiveTimelineID: "L", Origin: session.OriginManual}}
		s := newTestScheduler(t, sessions, []Schedule{sc}, closing)
		s.Tick(context.Background())
		if len(sessions.calls) != 0 {
			t.Errorf("calls = %v, want none", sessions.calls)
		}
	})

	t.Run("still_open", func(t *testing.T) {
		sessions := &fakeSessions{sess: session.Session{
			Mode: session.ModeLive, ActiveTimelineID: "L", Origin: sc.Origin(), StartedAt: fridayNight.Add(-10 * time.Minute),
		}}
		s := newTestScheduler(t, sessions, []Schedule{sc}, fridayNight)
		s.Tick(context.Background())
		if len(sessions.calls) != 0 {
			t.Errorf("calls = %v, a looping timeline in an open window needs nothing", sessions.calls)
		}
	})
}

func TestScheduler_Tick_advancesPlaylist(t *testing.T) {
	sc := eveningShow("s1", Entry{TimelineID: "A", OrderIndex: 0}, Entry{TimelineID: "B", OrderIndex: 1})

	tests := []struct {
		name    string
		current string
		elapsed time.Duration
		want    string
	}{
		{"still_playing", "A", 30 * time.Second, ""},
		{"next_entry", "A", 61 * time.Second, "B"},
		{"wraps_to_first", "B", 2 * time.Minute, "A"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &fakeSessions{sess: session.Session{
				Mode: session.ModeLive, ActiveTimelineID: tc.current, Origin: sc.Origin(),
				StartedAt: fridayNight.Add(-tc.elapsed),
			}}
			s := newTestScheduler(t, sessions, []Schedule{sc}, fridayNight)
			if err := s.Tick(context.Background()); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if tc.want == "" {
				if len(sessions.calls) != 0 {
					t.Errorf("calls = %v, want none", sessions.calls)
				}
				return
			}
			if len(sessions.calls) != 1 || sessions.calls[0] != (call{"switch", tc.want, sc.Origin()}) {
				t.Errorf("calls = %v, want switch to %s", sessions.calls, tc.want)
			}
		})
	}
}

func TestScheduler_Run_stopsOnCancel(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{Mode: session.ModeIdle}}
	s := newTestScheduler(t, sessions, nil, fridayNight)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// countingEncoder counts jobs begun and ended.
type countingEncoder struct {
	mu           sync.Mutex
	begins, ends int
}

func (e *countingEncoder) Begin(context.Context, string) (encoder.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.begins++
	return encoder.Handle(fmt.Sprintf("job-%d", e.begins)), nil
}

func (e *countingEncoder) Reconfigure(context.Context, encoder.Handle, []string) error { return nil }

func (e *countingEncoder) End(context.Context, encoder.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ends++
	return nil
}

func (e *countingEncoder) AwaitStopped(context.Context, encoder.Handle) error { return nil }

func (e *countingEncoder) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.begins, e.ends
}

func TestScheduler_Tick_withController(t *testing.T) {
	cat, err := timeline.NewCatalog(
		[]timeline.Timeline{{ID: "A", Name: "Alpha", Duration: time.Minute, Loop: true}},
		[]timeline.Destination{
			{ID: "yt", Name: "YouTube", Active: true},
			{ID: "retired", Name: "Old RTMP", Active: false},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		dests      []string
		wantBegins int
		wantMode   session.Mode
	}{
		{"deliverable_starts_once", []string{"yt"}, 1, session.ModeLive},
		{"no_destinations", nil, 0, session.ModeIdle},
		{"inactive_destination", []string{"retired"}, 0, session.ModeIdle},
		{"unknown_destination", []string{"gone"}, 0, session.ModeIdle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := &countingEncoder{}
			m := session.NewMachine(enc, cat, logger.Discard(), nil)
			ctrl := session.NewController(m, cat, 0, logger.Discard(), nil)

			sc := eveningShow("s1", Entry{TimelineID: "A"})
			sc.DestinationIDs = tc.dests
			s := NewScheduler(staticLister{sc}, ctrl, cat, 0, logger.Discard(), nil)
			s.now = func() time.Time { return fridayNight }

			for range 5 {
				if err := s.Tick(context.Background()); err != nil {
					t.Fatalf("Tick: %v", err)
				}
			}
			begins, ends := enc.counts()
			if begins != tc.wantBegins || ends != 0 {
				t.Errorf("encoder begins=%d ends=%d, want begins=%d ends=0", begins, ends, tc.wantBegins)
			}
			if got := ctrl.Session().Mode; got != tc.wantMode {
				t.Errorf("mode = %s, want %s", got, tc.wantMode)
			}
		})
	}
}
