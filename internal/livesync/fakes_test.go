package livesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"broadcast-orchestrator/internal/platform/logger"
	"broadcast-orchestrator/internal/session"
)

// fakeSessions is an in-memory SessionSource.
type fakeSessions struct {
	mu       sync.Mutex
	sess     session.Session
	warnings []string
}

func newActiveSessions(id string) *fakeSessions {
	return &fakeSessions{sess: session.Session{ID: id, Mode: session.ModePreview, ActiveTimelineID: "A"}}
}

func (f *fakeSessions) Session() session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSessions) RecordCue(id, cueID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sess.Active() || f.sess.ID != id {
		return false
	}
	f.sess.CurrentCueID = cueID
	return true
}

func (f *fakeSessions) SetWarning(id, warning string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sess.Active() || f.sess.ID != id {
		return false
	}
	f.sess.Warning = warning
	f.warnings = append(f.warnings, warning)
	return true
}

func (f *fakeSessions) set(s session.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = s
}

// scriptedFeed returns the cue ids in order, then repeats the last one.
type scriptedFeed struct {
	mu   sync.Mutex
	cues []string
}

func (f *scriptedFeed) Position(context.Context) (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cues) == 0 {
		return Position{}, errors.New("feed exhausted")
	}
	id := f.cues[0]
	if len(f.cues) > 1 {
		f.cues = f.cues[1:]
	}
	return Position{CurrentCueID: id, Playing: id != ""}, nil
}

// gatedFetcher reports not-ready until open is called.
type gatedFetcher struct {
	mu    sync.Mutex
	ready bool
	calls int
}

func (f *gatedFetcher) Fetch(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.ready {
		return ErrManifestNotReady
	}
	return nil
}

func (f *gatedFetcher) open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingPlayer counts player operations.
type recordingPlayer struct {
	mu       sync.Mutex
	attaches int
	recovers int
	releases int
	attached bool
}

func (p *recordingPlayer) Attach(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attaches++
	p.attached = true
	return nil
}

func (p *recordingPlayer) Recover() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recovers++
	return nil
}

func (p *recordingPlayer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	p.attached = false
}

func (p *recordingPlayer) counts() (attaches, recovers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attaches, p.recovers
}

func testConfig() Config {
	return Config{
		StreamURL:        "http://preview.test/preview/720p/playlist.m3u8",
		PositionInterval: time.Millisecond,
		ManifestInterval: time.Millisecond,
		ManifestAttempts: 5,
		MaxRecoveries:    2,
	}
}

func newTestSynchronizer(t *testing.T, sessions SessionSource, feed PositionFeed, fetcher ManifestFetcher, player Player) *Synchronizer {
	t.Helper()
	s := NewSynchronizer(testConfig(), sessions, feed, fetcher, player, logger.Discard(), nil)
	t.Cleanup(s.Close)
	return s
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
