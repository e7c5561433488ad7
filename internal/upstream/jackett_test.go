package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

func TestListIndexers_ParsesAndFlagsConfigured(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"rarbg","name":"RARBG","configured":true},
			{"id":"eztv","name":"EZTV","configured":false},
			{"id":"","name":"ghost","configured":true},
			{"id":"noname","configured":true}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k123")
	got, err := c.ListIndexers(context.Background())
	if err != nil {
		t.Fatalf("ListIndexers() error: %v", err)
	}

	if gotPath != "/api/v2.0/indexers" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "k123" {
		t.Fatalf("apikey = %q", gotKey)
	}

	// Entry with empty id is dropped; missing name falls back to id.
	if len(got) != 3 {
		t.Fatalf("len = %d; want 3 (%+v)", len(got), got)
	}
	if got[0].ID != "rarbg" || got[0].Name != "RARBG" || !got[0].Enabled {
		t.Fatalf("got[0] = %+v", got[0])
	}
	if got[1].ID != "eztv" || got[1].Enabled {
		t.Fatalf("got[1] = %+v", got[1])
	}
	if got[2].ID != "noname" || got[2].Name != "noname" {
		t.Fatalf("got[2] = %+v", got[2])
	}
	for _, ix := range got {
		if ix.FetchedAt.IsZero() {
			t.Fatalf("FetchedAt not stamped: %+v", ix)
		}
	}
}

func TestSearch_ParsesResultsInOrder(t *testing.T) {
	var gotPath, gotQuery, gotCat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("Query")
		gotCat = r.URL.Query().Get("Category[]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Results":[
			{"Title":"B second","Size":2,"Seeders":5,"Tracker":"rarbg","MagnetUri":"magnet:?xt=urn:btih:bbb"},
			{"Title":"A first","Size":1,"Seeders":9,"Tracker":"rarbg","PublishDate":"2024-03-01T10:00:00"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	items, err := c.Search(context.Background(), "rarbg", domain.Query{Term: "ubuntu", Category: "2000"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if gotPath != "/api/v2.0/indexers/rarbg/results" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "ubuntu" || gotCat != "2000" {
		t.Fatalf("query params: Query=%q Category[]=%q", gotQuery, gotCat)
	}

	// Upstream order is preserved, no re-sorting by seeders.
	if len(items) != 2 || items[0].Title != "B second" || items[1].Title != "A first" {
		t.Fatalf("order not preserved: %+v", items)
	}
	if items[1].PublishDate == nil || items[1].PublishDate.Year() != 2024 {
		t.Fatalf("publish date not parsed: %+v", items[1].PublishDate)
	}
}

func TestSearch_NonSuccessStatusIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Search(context.Background(), "eztv", domain.Query{Term: "x"})

	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GatewayError, got %T: %v", err, err)
	}
	if gerr.Status != http.StatusBadGateway || gerr.IndexerID != "eztv" || gerr.Op != "search" {
		t.Fatalf("unexpected gateway error: %+v", gerr)
	}
}

func TestSearch_MalformedBodyIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Results": not-json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, err := c.Search(context.Background(), "eztv", domain.Query{Term: "x"})

	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *GatewayError, got %T: %v", err, err)
	}
	if gerr.Err == nil {
		t.Fatalf("decode failure should carry a cause: %+v", gerr)
	}
}

func TestSearch_DeadlineSurvivesWrapping(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, "k")
	_, err := c.Search(ctx, "slow", domain.Query{Term: "x"})
	<-started

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("deadline should be matchable through the wrap, got: %v", err)
	}
}

func TestMagnetLink(t *testing.T) {
	cases := []struct {
		name string
		in   rawResult
		want string
	}{
		{"magnet uri wins", rawResult{MagnetURI: "magnet:?xt=urn:btih:aaa", Link: "http://x/t", InfoHash: "AAA"}, "magnet:?xt=urn:btih:aaa"},
		{"synthesized from infohash", rawResult{Link: "http://x/t", InfoHash: "ABCDEF"}, "magnet:?xt=urn:btih:abcdef"},
		{"link only", rawResult{Link: "http://x/t"}, "http://x/t"},
		{"nothing", rawResult{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := magnetLink(tc.in); got != tc.want {
				t.Fatalf("magnetLink() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestParsePublishDate(t *testing.T) {
	if got := parsePublishDate(""); got != nil {
		t.Fatalf("empty input should be nil, got %v", got)
	}
	if got := parsePublishDate("not a date"); got != nil {
		t.Fatalf("garbage input should be nil, got %v", got)
	}
	got := parsePublishDate("2023-11-05T08:30:00Z")
	if got == nil || got.Month() != time.November {
		t.Fatalf("RFC3339 not parsed: %v", got)
	}
}

func TestGatewayErrorString(t *testing.T) {
	e := &GatewayError{Op: "search", IndexerID: "rarbg", Status: 502}
	if e.Error() != "gateway search [rarbg]: status 502" {
		t.Fatalf("Error() = %q", e.Error())
	}
	e2 := &GatewayError{Op: "list_indexers", Err: errors.New("conn refused")}
	if e2.Error() != "gateway list_indexers: conn refused" {
		t.Fatalf("Error() = %q", e2.Error())
	}
}
