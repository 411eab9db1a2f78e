package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"broadcast-orchestrator/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// fakeAgent is a minimal in-memory encoder agent.
type fakeAgent struct {
	mu        sync.Mutex
	jobs      map[string]string // handle -> state
	outputs   map[string][]string
	stopPolls int // GET polls answered "stopping" before reporting stopped
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{jobs: map[string]string{}, outputs: map[string][]string{}}
}

func (a *fakeAgent) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req beginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TimelineID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		h := "job-" + req.TimelineID
		a.jobs[h] = StateRunning
		a.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(beginResponse{Handle: h})
	})
	r.Put("/jobs/{h}/outputs", func(w http.ResponseWriter, r *http.Request) {
		var req outputsRequest
		json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		defer a.mu.Unlock()
		h := chi.URLParam(r, "h")
		if _, ok := a.jobs[h]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		a.outputs[h] = req.DestinationIDs
		w.WriteHeader(http.StatusNoContent)
	})
	r.Delete("/jobs/{h}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		h := chi.URLParam(r, "h")
		if _, ok := a.jobs[h]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		a.jobs[h] = StateStopping
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/jobs/{h}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		h := chi.URLParam(r, "h")
		st, ok := a.jobs[h]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if st == StateStopping {
			if a.stopPolls > 0 {
				a.stopPolls--
			} else {
				st = StateStopped
				a.jobs[h] = st
			}
		}
		json.NewEncoder(w).Encode(jobStatus{State: st})
	})
	return r
}

func newTestClient(t *testing.T, a *fakeAgent) *Client {
	t.Helper()
	srv := httptest.NewServer(a.router())
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", time.Second, logger.Discard())
	c.pollInterval = time.Millisecond
	return c
}

func TestClient_lifecycle(t *testing.T) {
	agent := newFakeAgent()
	agent.stopPolls = 2
	c := newTestClient(t, agent)
	ctx := context.Background()

	h, err := c.Begin(ctx, "t1")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if h != "job-t1" {
		t.Errorf("handle = %q", h)
	}

	if err := c.Reconfigure(ctx, h, []string{"yt", "twitch"}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	agent.mu.Lock()
	got := agent.outputs["job-t1"]
	agent.mu.Unlock()
	if len(got) != 2 || got[1] != "twitch" {
		t.Errorf("outputs = %v", got)
	}

	if err := c.End(ctx, h); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := c.AwaitStopped(ctx, h); err != nil {
		t.Fatalf("AwaitStopped: %v", err)
	}
}

func TestClient_End_unknownJobIsIdempotent(t *testing.T) {
	c := newTestClient(t, newFakeAgent())
	if err := c.End(context.Background(), "missing"); err != nil {
		t.Errorf("End(unknown) = %v, want nil", err)
	}
	if err := c.AwaitStopped(context.Background(), "missing"); err != nil {
		t.Errorf("AwaitStopped(unknown) = %v, want nil", err)
	}
}

func TestClient_AwaitStopped_honoursDeadline(t *testing.T) {
	agent := newFakeAgent()
	agent.stopPolls = 1 << 30
	c := newTestClient(t, agent)

	h, _ := c.Begin(context.Background(), "t1")
	_ = c.End(context.Background(), h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.AwaitStopped(ctx, h); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitStopped = %v, want deadline exceeded", err)
	}
}

func TestClient_Reconfigure_unknownJob(t *testing.T) {
	c := newTestClient(t, newFakeAgent())
	err := c.Reconfigure(context.Background(), "missing", []string{"yt"})
	if !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Reconfigure = %v, want ErrUnknownJob", err)
	}
}
