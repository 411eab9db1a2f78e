package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"broadcast-orchestrator/internal/platform/metrics"
	"broadcast-orchestrator/internal/session"
)

// ErrManifestTimeout reports that the manifest never became valid within the
// allowed number of attempts.
var ErrManifestTimeout = session.ErrManifestTimeout

// Status is a snapshot of the Synchronizer.
type Status struct {
	SessionID        string `json:"session_id,omitempty"`
	Attached         bool   `json:"attached"`
	Loading          bool   `json:"loading"`
	Generation       uint64 `json:"generation"`
	Reconciliations  int    `json:"reconciliations"`
	ManifestTimeouts int    `json:"manifest_timeouts"`
	Recoveries       int    `json:"recoveries"`
	LastError        string `json:"last_error,omitempty"`
}

// Synchronizer polls the playback position while a session is active and
// re-attaches the player whenever the active video cue changes.
//
// Every reconciliation bumps the generation and cancels the one in flight, so
// when switches arrive faster than the manifest becomes ready only the last
// one attaches. Going idle bumps the generation too, which is what keeps a
// late manifest from attaching a player to a stopped session.
type Synchronizer struct {
	cfg      Config
	sessions SessionSource
	feed     PositionFeed
	fetcher  ManifestFetcher
	player   Player
	log      *slog.Logger
	metrics  *metrics.Metrics

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu         sync.Mutex
	sessionID  string
	generation uint64
	cancel     context.CancelFunc
	recoveries int // consecutive in-place recoveries since the last attach
	status     Status
}

// NewSynchronizer returns an idle Synchronizer. m may be nil.
func NewSynchronizer(cfg Config, sessions SessionSource, feed PositionFeed, fetcher ManifestFetcher, player Player, log *slog.Logger, m *metrics.Metrics) *Synchronizer {
	base, shutdown := context.WithCancel(context.Background())
	return &Synchronizer{
		cfg:      cfg.withDefaults(),
		sessions: sessions,
		feed:     feed,
		fetcher:  fetcher,
		player:   player,
		log:      log,
		metrics:  m,
		base:     base,
		shutdown: shutdown,
	}
}

// OnSessionChange is a session.Listener. A newly active session gets its
// initial attach; going idle cancels everything in flight and releases the
// player. preview -> live keeps the same session and changes nothing.
func (s *Synchronizer) OnSessionChange(_, next session.Session) {
	if !next.Active() {
		s.deactivate()
		return
	}
	s.track(next.ID)
}

// Run polls the position feed until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PositionInterval)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Close cancels any in-flight reconciliation and waits for it to return.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.shutdown()
	s.deactivateLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// Poll runs one position poll. It does nothing while the session is idle.
func (s *Synchronizer) Poll(ctx context.Context) {
	sess := s.sessions.Session()
	if !sess.Active() {
		return
	}
	s.track(sess.ID)

	pos, err := s.feed.Position(ctx)
	if err != nil {
		s.log.Debug("position poll failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
		return
	}

	observed, stored := pos.CurrentCueID, sess.CurrentCueID
	if observed != "" && stored != "" && observed != stored {
		s.log.Info("video cue switched",
			slog.String("session_id", sess.ID),
			slog.String("from_cue_id", stored),
			slog.String("to_cue_id", observed))
		s.restart(sess.ID, true)
	}
	s.sessions.RecordCue(sess.ID, observed)
}

// ReportPlayerError handles an error raised by the player. Media errors are
// recovered in place a bounded number of times; network errors force a full
// reconciliation.
func (s *Synchronizer) ReportPlayerError(kind ErrorKind, detail string) error {
	switch kind {
	case ErrorMedia:
		return s.recoverMedia(detail)
	case ErrorNetwork:
		s.mu.Lock()
		id := s.sessionID
		s.mu.Unlock()
		if id == "" {
			return nil
		}
		s.log.Info("player network error, reconciling",
			slog.String("session_id", id),
			slog.String("detail", detail))
		s.restart(id, true)
		return nil
	default:
		return errors.New("unknown player error kind " + string(kind))
	}
}

// Status returns a snapshot.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Synchronizer) recoverMedia(detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Attached {
		return nil
	}
	if s.recoveries >= s.cfg.MaxRecoveries {
		s.log.Warn("player recovery limit reached",
			slog.String("session_id", s.sessionID),
			slog.Int("recoveries", s.recoveries),
			slog.String("detail", detail))
		return nil
	}
	if err := s.player.Recover(); err != nil {
		return err
	}
	s.recoveries++
	s.status.Recoveries++
	s.metrics.IncPlayerRecoveries()
	s.log.Info("player recovered from media error",
		slog.String("session_id", s.sessionID),
		slog.String("detail", detail))
	return nil
}

// track makes id the tracked session, starting its initial attach if it is
// new. id is adopted only if it is still the active session, so a poll that
// raced a stop cannot revive it.
func (s *Synchronizer) track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID == id {
		return
	}
	if cur := s.sessions.Session(); !cur.Active() || cur.ID != id {
		return
	}
	s.deactivateLocked()
	s.sessionID = id
	s.status = Status{SessionID: id, Generation: s.generation}
	s.restartLocked(id, false)
}

func (s *Synchronizer) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked()
}

func (s *Synchronizer) deactivateLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.sessionID == "" {
		return
	}
	s.player.Release()
	s.log.Debug("player released", slog.String("session_id", s.sessionID))
	s.sessionID = ""
	s.recoveries = 0
	s.status = Status{Generation: s.generation}
}

// restart releases the player and starts waiting for the manifest under a new
// generation, abandoning any wait already in flight.
func (s *Synchronizer) restart(id string, reconcile bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != id {
		return
	}
	s.restartLocked(id, reconcile)
}

func (s *Synchronizer) restartLocked(id string, reconcile bool) {
	if s.base.Err() != nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	s.player.Release()
	s.status.Attached = false
	s.status.Loading = true
	s.status.Generation = gen
	if reconcile {
		s.status.Reconciliations++
		s.metrics.IncReconciliations()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.attach(ctx, id, gen)
	}()
}

func (s *Synchronizer) attach(ctx context.Context, id string, gen uint64) {
	ready := s.awaitManifest(ctx)
	if ctx.Err() != nil {
		return
	}

	if !ready {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		s.status.Loading = false
		s.status.ManifestTimeouts++
		s.status.LastError = ErrManifestTimeout.Error()
		s.mu.Unlock()

		s.metrics.IncManifestTimeouts()
		s.log.Warn("preview manifest not ready, giving up",
			slog.String("session_id", id),
			slog.Int("attempts", s.cfg.ManifestAttempts))
		s.sessions.SetWarning(id, session.WarningManifestTimeout)
		return
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	err := s.player.Attach(ctx, s.cfg.StreamURL)
	s.status.Loading = false
	if err != nil {
		s.status.LastError = err.Error()
		s.mu.Unlock()
		s.log.Error("player attach failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return
	}
	s.status.Attached = true
	s.status.LastError = ""
	s.recoveries = 0
	s.mu.Unlock()

	s.sessions.SetWarning(id, "")
	s.log.Debug("player attached",
		slog.String("session_id", id),
		slog.Uint64("generation", gen))
}

// awaitManifest polls the manifest until it is valid, the attempts run out or
// ctx is cancelled.
func (s *Synchronizer) awaitManifest(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := s.fetcher.Fetch(ctx)
		if err == nil {
			return true
		}
		if ctx.Err() != nil || attempt >= s.cfg.ManifestAttempts {
			return false
		}
		s.log.Debug("manifest not ready",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		t := time.NewTimer(s.cfg.ManifestInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}
