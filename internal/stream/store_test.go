package stream

import (
	"testing"
	"time"
)

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	if _, ok := store.GetStream("s1"); ok {
		t.Error("expected not found for empty store")
	}

	t0 := time.Unix(100, 0)
	older := &StreamState{ID: "old", BegunAt: t0}
	newer := &StreamState{ID: "new", BegunAt: t0.Add(time.Minute)}
	store.SetStream(newer)
	store.SetStream(older)

	list := store.ListStreams()
	if len(list) != 2 || list[0].ID != "old" {
		t.Errorf("ListStreams should be oldest first, got %v", list)
	}

	store.DeleteStream("old")
	if _, ok := store.GetStream("old"); ok {
		t.Error("DeleteStream did not delete")
	}
}
