// Package stream is the preview stream registry: the encoder agent registers
// HLS segments per job, and the registry serves the current job's sliding
// window at a stable manifest URL.
package stream

import "time"

// StreamID identifies one encoder job's output. It equals the encoder handle.
type StreamID string

// RenditionID names a rendition of a stream (e.g. "720p").
type RenditionID string

// Segment is one HLS media segment. It is also the registration payload.
type Segment struct {
	Sequence      int64   `json:"sequence"`
	Duration      float64 `json:"duration"`
	Path          string  `json:"path"`
	Discontinuity bool    `json:"discontinuity,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// RenditionState holds the registered segments of one rendition.
type RenditionState struct {
	ID       RenditionID
	Segments map[int64]Segment
}

// StreamState is the registry's record of one stream.
type StreamState struct {
	ID         StreamID
	Renditions map[RenditionID]*RenditionState
	Ended      bool
	BegunAt    time.Time
}
