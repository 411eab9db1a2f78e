package stream

import "sort"

// Store is the persistence abstraction for stream state. Callers serialize
// access; implementations need not be safe for concurrent use.
type Store interface {
	GetStream(id StreamID) (*StreamState, bool)
	SetStream(s *StreamState)
	DeleteStream(id StreamID)
	// ListStreams returns all streams, oldest first.
	ListStreams() []*StreamState
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	streams map[StreamID]*StreamState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{streams: make(map[StreamID]*StreamState)}
}

func (s *InMemoryStore) GetStream(id StreamID) (*StreamState, bool) {
	st, ok := s.streams[id]
	return st, ok
}

func (s *InMemoryStore) SetStream(st *StreamState) {
	s.streams[st.ID] = st
}

func (s *InMemoryStore) DeleteStream(id StreamID) {
	delete(s.streams, id)
}

func (s *InMemoryStore) ListStreams() []*StreamState {
	out := make([]*StreamState, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BegunAt.Before(out[j].BegunAt) })
	return out
}
