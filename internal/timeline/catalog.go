package timeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a catalog.
type catalogFile struct {
	Timelines    []Timeline    `yaml:"timelines"`
	Destinations []Destination `yaml:"destinations"`
}

// Catalog is a read-only, in-memory index of timelines and destinations.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	timelines    map[string]Timeline
	destinations map[string]Destination
}

// NewCatalog validates and indexes the given records.
func NewCatalog(timelines []Timeline, destinations []Destination) (*Catalog, error) {
	c := &Catalog{
		timelines:    make(map[string]Timeline, len(timelines)),
		destinations: make(map[string]Destination, len(destinations)),
	}
	for _, t := range timelines {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.timelines[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate timeline id %s", ErrInvalidTimeline, t.ID)
		}
		t.Normalize()
		c.timelines[t.ID] = t
	}
	for _, d := range destinations {
		if d.ID == "" {
			return nil, errors.New("destination without id")
		}
		c.destinations[d.ID] = d
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog from path. A missing file yields an empty
// catalog so the service can start before any content is authored.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewCatalog(nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return DecodeCatalog(bytes.NewReader(data))
}

// DecodeCatalog parses a YAML catalog document.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return NewCatalog(f.Timelines, f.Destinations)
}

// Timeline returns the timeline with the given id.
func (c *Catalog) Timeline(_ context.Context, id string) (Timeline, bool) {
	t, ok := c.timelines[id]
	return t, ok
}

// Destination returns the destination with the given id.
func (c *Catalog) Destination(_ context.Context, id string) (Destination, bool) {
	d, ok := c.destinations[id]
	return d, ok
}

// Timelines lists all timelines ordered by id.
func (c *Catalog) Timelines() []Timeline {
	out := make([]Timeline, 0, len(c.timelines))
	for _, t := range c.timelines {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Destinations lists all destinations ordered by id.
func (c *Catalog) Destinations() []Destination {
	out := make([]Destination, 0, len(c.destinations))
	for _, d := range c.destinations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
