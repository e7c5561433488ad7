package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-torrent-search/internal/domain"
	"github.com/tbourn/go-torrent-search/internal/registry"
	"github.com/tbourn/go-torrent-search/internal/services"
)

// ----- Fakes -----

type fakeSearchService struct {
	outcomes []domain.Outcome
	launched int
	err      error
}

func (s *fakeSearchService) Search(ctx context.Context, q domain.Query) (<-chan domain.Outcome, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}
	if s.err != nil {
		return nil, 0, s.err
	}
	ch := make(chan domain.Outcome, len(s.outcomes))
	for _, o := range s.outcomes {
		ch <- o
	}
	close(ch)
	return ch, s.launched, nil
}

type fakeRegistryService struct {
	indexers []domain.Indexer
	err      error
	calls    int
}

func (r *fakeRegistryService) Refresh(ctx context.Context) ([]domain.Indexer, error) {
	r.calls++
	return r.indexers, r.err
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/search", h.StreamSearch)
	r.GET("/indexers", h.ListIndexers)
	return r
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

// parseSSE splits an SSE body into its events. Good enough for the frames
// gin's SSEvent writes: one event: line and one data: line per frame.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		if ev.name != "" || ev.data != "" {
			events = append(events, ev)
		}
	}
	return events
}

// ----- Tests -----

func TestStreamSearch_EmitsOutcomesInArrivalOrderThenDone(t *testing.T) {
	svc := &fakeSearchService{
		launched: 3,
		outcomes: []domain.Outcome{
			{IndexerID: "fast", Results: []domain.ResultItem{{Title: "a"}, {Title: "b"}}},
			{IndexerID: "empty", Results: nil},
			{IndexerID: "broken", Err: errors.New("502 from gateway")},
		},
	}
	r := newTestRouter(New(svc, &fakeRegistryService{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search?query=ubuntu", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type=%q", ct)
	}

	events := parseSSE(t, w.Body.String())
	if len(events) != 4 {
		t.Fatalf("events=%d want 4 (%+v)", len(events), events)
	}

	wantNames := []string{"result", "result", "error", "done"}
	for i, ev := range events {
		if ev.name != wantNames[i] {
			t.Fatalf("event %d = %q; want %q", i, ev.name, wantNames[i])
		}
	}

	var first ResultEvent
	if err := json.Unmarshal([]byte(events[0].data), &first); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if first.Indexer != "fast" || len(first.Results) != 2 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	// An indexer with zero hits is still a success; its results field must be
	// an empty array, not null.
	if !strings.Contains(events[1].data, `"results":[]`) {
		t.Fatalf("empty success not encoded as []: %s", events[1].data)
	}

	var errEv ErrorEvent
	if err := json.Unmarshal([]byte(events[2].data), &errEv); err != nil {
		t.Fatalf("error payload: %v", err)
	}
	if errEv.Indexer != "broken" || !strings.Contains(errEv.Error, "502") {
		t.Fatalf("unexpected error event: %+v", errEv)
	}

	var done DoneEvent
	if err := json.Unmarshal([]byte(events[3].data), &done); err != nil {
		t.Fatalf("done payload: %v", err)
	}
	if done.Indexers != 3 || done.Failures != 1 {
		t.Fatalf("unexpected done event: %+v", done)
	}
}

func TestStreamSearch_EmptyQueryIs400(t *testing.T) {
	r := newTestRouter(New(&fakeSearchService{}, &fakeRegistryService{}))

	for _, target := range []string{"/search", "/search?query=%20%20"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", target, w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json: %v", err)
		}
		if resp.Code != ErrCodeBadRequest {
			t.Fatalf("code=%q", resp.Code)
		}
	}
}

func TestStreamSearch_TerminalErrorsBeforeStream(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		"registry unavailable": {
			err:        errors.Join(registry.ErrUnavailable, errors.New("conn refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeRegistryUnavailable,
		},
		"no indexers": {
			err:        services.ErrNoIndexers,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeNoIndexers,
		},
		"unknown": {
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestRouter(New(&fakeSearchService{err: tc.err}, &fakeRegistryService{}))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/search?query=x", nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status=%d want %d", w.Code, tc.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
				t.Fatalf("terminal error must not start a stream")
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestListIndexers_ForcesRefresh(t *testing.T) {
	reg := &fakeRegistryService{indexers: []domain.Indexer{
		{ID: "rarbg", Name: "RARBG", Enabled: true},
		{ID: "dead", Name: "Dead Tracker", Enabled: false},
	}}
	r := newTestRouter(New(&fakeSearchService{}, reg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/indexers", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if reg.calls != 1 {
		t.Fatalf("refresh calls=%d", reg.calls)
	}

	var resp IndexersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Count != 2 || len(resp.Indexers) != 2 {
		t.Fatalf("unexpected body: %+v", resp)
	}
	// Disabled indexers are listed; they are only excluded from fan-out.
	if !resp.Indexers[0].Enabled || resp.Indexers[1].Enabled {
		t.Fatalf("enabled flags lost: %+v", resp.Indexers)
	}
}

func TestListIndexers_RegistryFailureIs503(t *testing.T) {
	reg := &fakeRegistryService{err: errors.Join(registry.ErrUnavailable, errors.New("gateway down"))}
	r := newTestRouter(New(&fakeSearchService{}, reg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/indexers", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Code != ErrCodeRegistryUnavailable {
		t.Fatalf("code=%q", resp.Code)
	}
}
