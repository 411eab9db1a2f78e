package stream

import (
	"errors"
	"testing"
)

func TestRepository_RegisterSegment(t *testing.T) {
	repo := NewRepository()
	repo.BeginStream("s1")

	t.Run("creates_rendition", func(t *testing.T) {
		if err := repo.RegisterSegment("s1", "720p", Segment{Sequence: 1, Duration: 2, Path: "/1.ts"}); err != nil {
			t.Fatalf("RegisterSegment: %v", err)
		}
		got, ended, ok := repo.Snapshot("s1", "720p")
		if !ok || ended || len(got) != 1 || got[0].ReceivedAt.IsZero() {
			t.Errorf("Snapshot: ok=%v ended=%v got=%+v", ok, ended, got)
		}
	})

	t.Run("duplicate_sequence_idempotent", func(t *testing.T) {
		repo.RegisterSegment("s1", "720p", Segment{Sequence: 1, Duration: 9, Path: "/other.ts"})
		got, _, _ := repo.Snapshot("s1", "720p")
		if len(got) != 1 || got[0].Path != "/1.ts" {
			t.Errorf("duplicate should not replace segment, got %+v", got)
		}
	})

	t.Run("out_of_order_sorted", func(t *testing.T) {
		repo.RegisterSegment("s1", "720p", Segment{Sequence: 3, Duration: 2, Path: "/3.ts"})
		repo.RegisterSegment("s1", "720p", Segment{Sequence: 2, Duration: 2, Path: "/2.ts"})
		got, _, _ := repo.Snapshot("s1", "720p")
		if len(got) != 3 || got[0].Sequence != 1 || got[2].Sequence != 3 {
			t.Errorf("expected sorted 1..3, got %+v", got)
		}
	})
}

func TestRepository_unknownAndEnded(t *testing.T) {
	repo := NewRepository()
	if err := repo.RegisterSegment("nope", "720p", Segment{Sequence: 1}); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("got %v, want ErrUnknownStream", err)
	}

	repo.BeginStream("s1")
	repo.EndStream("s1")
	if err := repo.RegisterSegment("s1", "720p", Segment{Sequence: 1}); !errors.Is(err, ErrStreamEnded) {
		t.Errorf("got %v, want ErrStreamEnded", err)
	}
	repo.EndStream("never-begun")
}

func TestRepository_Prune(t *testing.T) {
	store := NewInMemoryStore()
	repo := NewRepositoryWithStore(store)
	for _, id := range []StreamID{"a", "b", "c", "live"} {
		repo.BeginStream(id)
		if id != "live" {
			repo.EndStream(id)
		}
	}

	if n := repo.Prune(1); n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if _, ok := store.GetStream("live"); !ok {
		t.Error("running stream must never be pruned")
	}
	if len(store.ListStreams()) != 2 {
		t.Errorf("expected 2 streams left, got %d", len(store.ListStreams()))
	}
}
