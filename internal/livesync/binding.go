package livesync

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Binding is the server-side player binding. It does not render anything:
// it publishes what the operator UI's player should be doing, and UI clients
// follow it. Every attach gets a new generation and a cache-busting URL so
// clients reload instead of reusing a stale media element.
type Binding struct {
	mu         sync.RWMutex
	attached   bool
	generation uint64
	url        string
	recoveries uint64
}

// BindingState is a snapshot of the Binding.
type BindingState struct {
	Attached   bool   `json:"attached"`
	Generation uint64 `json:"generation"`
	URL        string `json:"stream_url,omitempty"`
	// Recoveries increments on every in-place recovery; clients call their
	// player's recoverMediaError when it changes.
	Recoveries uint64 `json:"recoveries"`
}

// NewBinding returns a detached Binding.
func NewBinding() *Binding {
	return &Binding{}
}

// Attach implements Player.Attach. It publishes streamURL under a new
// generation.
func (b *Binding) Attach(_ context.Context, streamURL string) error {
	u, err := url.Parse(streamURL)
	if err != nil {
		return fmt.Errorf("attach player: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
	q := u.Query()
	q.Set("g", fmt.Sprint(b.generation))
	u.RawQuery = q.Encode()
	b.url = u.String()
	b.attached = true
	return nil
}

// Recover implements Player.Recover.
func (b *Binding) Recover() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return fmt.Errorf("recover player: not attached")
	}
	b.recoveries++
	return nil
}

// Release implements Player.Release.
func (b *Binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
	b.url = ""
}

// State returns a snapshot.
func (b *Binding) State() BindingState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BindingState{Attached: b.attached, Generation: b.generation, URL: b.url, Recoveries: b.recoveries}
}
