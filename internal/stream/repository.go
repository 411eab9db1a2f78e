package stream

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownStream is returned for segments of a stream that was never begun.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrStreamEnded is returned when registering a segment on an ended stream.
	ErrStreamEnded = errors.New("stream has ended")
)

// Repository is the concurrency-safe registry of preview streams.
type Repository struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewRepository returns a Repository over a fresh in-memory store.
func NewRepository() *Repository {
	return NewRepositoryWithStore(NewInMemoryStore())
}

// NewRepositoryWithStore returns a Repository over store.
func NewRepositoryWithStore(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// BeginStream creates id if needed. Beginning an existing stream is a no-op.
func (r *Repository) BeginStream(id StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store.GetStream(id); ok {
		return
	}
	r.store.SetStream(&StreamState{
		ID:         id,
		Renditions: make(map[RenditionID]*RenditionState),
		BegunAt:    r.now().UTC(),
	})
}

// RegisterSegment records seg. Duplicate sequence numbers are ignored.
func (r *Repository) RegisterSegment(id StreamID, rendition RenditionID, seg Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.store.GetStream(id)
	if !ok {
		return ErrUnknownStream
	}
	if st.Ended {
		return ErrStreamEnded
	}

	rs, ok := st.Renditions[rendition]
	if !ok {
		rs = &RenditionState{ID: rendition, Segments: make(map[int64]Segment)}
		st.Renditions[rendition] = rs
	}
	if _, dup := rs.Segments[seg.Sequence]; dup {
		return nil
	}
	seg.ReceivedAt = r.now().UTC()
	rs.Segments[seg.Sequence] = seg
	return nil
}

// Snapshot returns the rendition's segments sorted by sequence and the
// stream's ended flag. ok is false if the stream or rendition is unknown.
func (r *Repository) Snapshot(id StreamID, rendition RenditionID) (segments []Segment, ended bool, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, exists := r.store.GetStream(id)
	if !exists {
		return nil, false, false
	}
	rs, exists := st.Renditions[rendition]
	if !exists {
		return nil, st.Ended, false
	}

	segments = make([]Segment, 0, len(rs.Segments))
	for _, seg := range rs.Segments {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Sequence < segments[j].Sequence })
	return segments, st.Ended, true
}

// EndStream marks id ended. Ending an unknown or ended stream is a no-op.
func (r *Repository) EndStream(id StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.store.GetStream(id); ok {
		st.Ended = true
	}
}

// Prune drops ended streams beyond the newest keep, returning how many went.
func (r *Repository) Prune(keep int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ended []*StreamState
	for _, st := range r.store.ListStreams() {
		if st.Ended {
			ended = append(ended, st)
		}
	}
	n := 0
	for i := 0; i < len(ended)-keep; i++ {
		r.store.DeleteStream(ended[i].ID)
		n++
	}
	return n
}
