// Package timeline holds the timeline, track and cue model together with the
// read-only catalog of timelines and broadcast destinations.
package timeline

import "time"

// TrackType is the kind of content a track carries.
type TrackType string

const (
	TrackVideo   TrackType = "video"
	TrackOverlay TrackType = "overlay"
	TrackAudio   TrackType = "audio"
)

// ActionType selects how a cue's ActionParams are interpreted.
type ActionType string

const (
	// ActionCameraPreset recalls a PTZ preset on a camera.
	ActionCameraPreset ActionType = "camera_preset"
	// ActionAsset shows a stored asset (image, lower third, audio bed).
	ActionAsset ActionType = "asset"
)

// ActionParams is the polymorphic payload of a cue. CameraID and PresetID are
// set for camera_preset cues, AssetID for asset cues.
type ActionParams struct {
	CameraID string `yaml:"camera_id,omitempty" json:"camera_id,omitempty"`
	PresetID string `yaml:"preset_id,omitempty" json:"preset_id,omitempty"`
	AssetID  string `yaml:"asset_id,omitempty" json:"asset_id,omitempty"`
}

// Cue is a timestamped instruction within a track.
type Cue struct {
	ID                 string        `yaml:"id" json:"id"`
	StartTime          time.Duration `yaml:"start_time" json:"start_time"`
	Duration           time.Duration `yaml:"duration" json:"duration"`
	ActionType         ActionType    `yaml:"action_type" json:"action_type"`
	Params             ActionParams  `yaml:"action_params" json:"action_params"`
	TransitionType     string        `yaml:"transition_type,omitempty" json:"transition_type,omitempty"`
	TransitionDuration time.Duration `yaml:"transition_duration,omitempty" json:"transition_duration,omitempty"`

	// CueOrder is the insertion index, used to break StartTime ties.
	CueOrder int `yaml:"cue_order" json:"cue_order"`
}

// End returns the instant the cue stops being active.
func (c Cue) End() time.Duration {
	return c.StartTime + c.Duration
}

// Track is an ordered sequence of cues on one layer.
type Track struct {
	ID    string    `yaml:"id" json:"id"`
	Type  TrackType `yaml:"track_type" json:"track_type"`
	Layer int       `yaml:"layer" json:"layer"`
	Cues  []Cue     `yaml:"cues" json:"cues"`
}

// Timeline is an ordered set of tracks played against a single clock.
type Timeline struct {
	ID         string        `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Duration   time.Duration `yaml:"duration" json:"duration"`
	Loop       bool          `yaml:"loop" json:"loop"`
	Resolution string        `yaml:"resolution" json:"resolution"`
	FPS        int           `yaml:"fps" json:"fps"`
	Tracks     []Track       `yaml:"tracks" json:"tracks"`
}

// Destination is a broadcast output (RTMP ingest, SRT listener, ...).
type Destination struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind" json:"kind"`
	URL    string `yaml:"url" json:"-"`
	Active bool   `yaml:"active" json:"active"`
}
