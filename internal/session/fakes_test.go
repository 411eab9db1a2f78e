package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"broadcast-orchestrator/internal/encoder"
	"broadcast-orchestrator/internal/platform/logger"
	"broadcast-orchestrator/internal/timeline"
)

// fakeEncoder records calls and lets tests control teardown confirmation.
type fakeEncoder struct {
	mu       sync.Mutex
	seq      int
	calls    []string
	begun    []string
	ended    []encoder.Handle
	outputs  map[encoder.Handle][]string
	hangStop bool // AwaitStopped blocks until ctx is done
	beginErr error
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{outputs: map[encoder.Handle][]string{}}
}

func (f *fakeEncoder) Begin(_ context.Context, timelineID string) (encoder.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return "", f.beginErr
	}
	f.seq++
	f.calls = append(f.calls, "begin")
	f.begun = append(f.begun, timelineID)
	return encoder.Handle(fmt.Sprintf("job-%d", f.seq)), nil
}

func (f *fakeEncoder) Reconfigure(_ context.Context, h encoder.Handle, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "reconfigure")
	f.outputs[h] = ids
	return nil
}

func (f *fakeEncoder) End(_ context.Context, h encoder.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end")
	f.ended = append(f.ended, h)
	return nil
}

func (f *fakeEncoder) AwaitStopped(ctx context.Context, _ encoder.Handle) error {
	f.mu.Lock()
	hang := f.hangStop
	f.calls = append(f.calls, "await")
	f.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeEncoder) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var errEncoderDown = errors.New("encoder agent unreachable")

func testCatalog() *timeline.Catalog {
	tl := func(id, name string) timeline.Timeline {
		return timeline.Timeline{ID: id, Name: name, Duration: time.Minute}
	}
	c, err := timeline.NewCatalog(
		[]timeline.Timeline{tl("A", "Alpha Show"), tl("B", "Bravo Show")},
		[]timeline.Destination{
			{ID: "yt", Name: "YouTube", Active: true},
			{ID: "twitch", Name: "Twitch", Active: true},
			{ID: "retired", Name: "Old RTMP", Active: false},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

func newTestController(enc *fakeEncoder) (*Controller, *Machine) {
	cat := testCatalog()
	m := NewMachine(enc, cat, logger.Discard(), nil)
	return NewController(m, cat, 0, logger.Discard(), nil), m
}
