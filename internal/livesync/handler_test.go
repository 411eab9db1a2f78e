package livesync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_GetPreview(t *testing.T) {
	sessions := newActiveSessions("s1")
	binding := NewBinding()
	s := newTestSynchronizer(t, sessions, &scriptedFeed{}, &gatedFetcher{ready: true}, binding)
	s.OnSessionChange(idle, sessions.Session())
	eventually(t, "attach", func() bool { return s.Status().Attached })

	h := NewHandler(s, binding)
	rec := httptest.NewRecorder()
	h.GetPreview(rec, httptest.NewRequest(http.MethodGet, "/api/preview", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		SessionID string `json:"session_id"`
		Attached  bool   `json:"attached"`
		Player    struct {
			Attached   bool   `json:"attached"`
			Generation uint64 `json:"generation"`
			URL        string `json:"stream_url"`
		} `json:"player"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.SessionID != "s1" || !body.Attached || !body.Player.Attached {
		t.Errorf("body = %+v", body)
	}
	if body.Player.Generation != 1 || !strings.HasSuffix(body.Player.URL, "playlist.m3u8?g=1") {
		t.Errorf("player = %+v", body.Player)
	}
}

func TestHandler_ReportPlayerError(t *testing.T) {
	sessions := newActiveSessions("s1")
	s := newTestSynchronizer(t, sessions, &scriptedFeed{}, &gatedFetcher{ready: true}, &recordingPlayer{})
	h := NewHandler(s, nil)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"media", `{"kind":"media","detail":"bufferStalledError"}`, http.StatusAccepted},
		{"network", `{"kind":"network"}`, http.StatusAccepted},
		{"unknown kind", `{"kind":"other"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/preview/player-errors", strings.NewReader(tc.body))
			h.ReportPlayerError(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestBinding(t *testing.T) {
	b := NewBinding()
	if err := b.Recover(); err == nil {
		t.Error("Recover on a detached binding should fail")
	}
	if err := b.Attach(t.Context(), "http://x.test/p.m3u8?a=b"); err != nil {
		t.Fatal(err)
	}
	b.Release()
	if err := b.Attach(t.Context(), "http://x.test/p.m3u8?a=b"); err != nil {
		t.Fatal(err)
	}

	st := b.State()
	if !st.Attached || st.Generation != 2 || st.URL != "http://x.test/p.m3u8?a=b&g=2" {
		t.Errorf("state = %+v", st)
	}
	b.Release()
	if st := b.State(); st.Attached || st.URL != "" {
		t.Errorf("state after release = %+v", st)
	}
}
