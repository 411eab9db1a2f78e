package stream

import "sync"

// DefaultWindowSize is the default number of segments in the sliding window.
const DefaultWindowSize = 6

// retainedStreams is how many ended streams are kept for late playlist reads.
const retainedStreams = 2

// Service tracks which stream is the current preview and renders playlists
// as a contiguous sliding window.
type Service struct {
	repo       *Repository
	windowSize int

	mu      sync.RWMutex
	current StreamID
}

// NewService returns a Service over repo. windowSize <= 0 uses DefaultWindowSize.
func NewService(repo *Repository, windowSize int) *Service {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Service{repo: repo, windowSize: windowSize}
}

// Begin makes id the current preview stream, ending the previous one.
func (s *Service) Begin(id StreamID) {
	s.repo.BeginStream(id)

	s.mu.Lock()
	prev := s.current
	s.current = id
	s.mu.Unlock()

	if prev != "" && prev != id {
		s.repo.EndStream(prev)
	}
	s.repo.Prune(retainedStreams)
}

// End ends the current stream. Its playlist keeps serving with ENDLIST until
// the next Begin.
func (s *Service) End() {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != "" {
		s.repo.EndStream(cur)
	}
}

// Current returns the current stream id, or "" before the first Begin.
func (s *Service) Current() StreamID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// RegisterSegment records a segment for a begun stream.
func (s *Service) RegisterSegment(id StreamID, rendition RenditionID, seg Segment) error {
	return s.repo.RegisterSegment(id, rendition, seg)
}

// Playlist renders the playlist of a specific stream.
func (s *Service) Playlist(id StreamID, rendition RenditionID) (string, bool) {
	segments, ended, ok := s.repo.Snapshot(id, rendition)
	if !ok {
		return "", false
	}
	return BuildLivePlaylist(visibleWindow(segments, s.windowSize), ended), true
}

// CurrentPlaylist renders the current stream's playlist.
func (s *Service) CurrentPlaylist(rendition RenditionID) (string, bool) {
	cur := s.Current()
	if cur == "" {
		return "", false
	}
	return s.Playlist(cur, rendition)
}

// visibleWindow slides to the newest windowSize segments, then cuts at the
// first sequence gap so a player never sees e.g. 42 followed by 44. A missing
// segment eventually slides off the back and unblocks the rest.
// segs must be sorted by Sequence ascending.
func visibleWindow(segs []Segment, windowSize int) []Segment {
	if len(segs) == 0 {
		return nil
	}
	if len(segs) > windowSize {
		segs = segs[len(segs)-windowSize:]
	}

	out := make([]Segment, 0, len(segs))
	for i, seg := range segs {
		if i > 0 && seg.Sequence != segs[i-1].Sequence+1 {
			break
		}
		out = append(out, seg)
	}
	return out
}
