// Package upstream implements the client for the upstream search gateway
// (Jackett). The gateway performs the actual per-indexer network queries on
// this service's behalf; this package owns the raw-response-to-domain mapping
// so that callers never see gateway-specific payload shapes.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

// GatewayError describes a failed call to the upstream gateway. Status is the
// upstream HTTP status when one was received, zero otherwise. It wraps the
// underlying cause so callers can still match context.DeadlineExceeded and
// friends with errors.Is.
type GatewayError struct {
	Op        string // "list_indexers" or "search"
	IndexerID string // set for per-indexer operations
	Status    int    // upstream HTTP status, 0 when the call never completed
	Err       error  // underlying cause, may be nil when Status alone explains it
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("gateway " + e.Op)
	if e.IndexerID != "" {
		b.WriteString(" [" + e.IndexerID + "]")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error { return e.Err }

// Client talks to a Jackett instance over its v2.0 HTTP API. The zero value is
// not usable; construct with NewClient. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient returns a Client for the gateway at baseURL authenticating with
// apiKey. The embedded http.Client carries no timeout of its own: per-call
// deadlines are supplied through the context by the caller.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client. Intended for tests and
// for callers that need custom transports (proxies, TLS settings).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpc = h
	return c
}

// rawIndexer is the gateway's wire shape for one configured indexer.
type rawIndexer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// ListIndexers fetches the gateway's full indexer list. Indexers the gateway
// reports as not configured are returned with Enabled=false so callers can
// surface them without ever querying them.
func (c *Client) ListIndexers(ctx context.Context) ([]domain.Indexer, error) {
	u := c.baseURL + "/api/v2.0/indexers?" + url.Values{"apikey": {c.apiKey}}.Encode()

	var raw []rawIndexer
	if gerr := c.getJSON(ctx, "list_indexers", "", u, &raw); gerr != nil {
		return nil, gerr
	}

	now := time.Now()
	out := make([]domain.Indexer, 0, len(raw))
	for _, ri := range raw {
		if ri.ID == "" {
			continue
		}
		name := ri.Name
		if name == "" {
			name = ri.ID
		}
		out = append(out, domain.Indexer{
			ID:        ri.ID,
			Name:      name,
			Enabled:   ri.Configured,
			FetchedAt: now,
		})
	}
	return out, nil
}

// rawResult is the gateway's wire shape for one torrent record. PublishDate is
// kept as a string because Jackett emits several timestamp layouts.
type rawResult struct {
	Title       string `json:"Title"`
	Link        string `json:"Link"`
	MagnetURI   string `json:"MagnetUri"`
	InfoHash    string `json:"InfoHash"`
	Size        int64  `json:"Size"`
	Seeders     int    `json:"Seeders"`
	Leechers    int    `json:"Leechers"`
	Tracker     string `json:"Tracker"`
	Details     string `json:"Details"`
	Year        int    `json:"Year"`
	PublishDate string `json:"PublishDate"`
}

// rawSearchResponse wraps the results array of a per-indexer query.
type rawSearchResponse struct {
	Results []rawResult `json:"Results"`
}

// Search runs one query against one indexer through the gateway and returns
// the normalized results in the order the indexer produced them. No
// re-sorting, deduplication, or truncation happens here.
func (c *Client) Search(ctx context.Context, indexerID string, q domain.Query) ([]domain.ResultItem, error) {
	vals := url.Values{
		"apikey": {c.apiKey},
		"Query":  {q.Term},
	}
	if q.Category != "" {
		vals.Set("Category[]", q.Category)
	}
	u := c.baseURL + "/api/v2.0/indexers/" + url.PathEscape(indexerID) + "/results?" + vals.Encode()

	var raw rawSearchResponse
	if gerr := c.getJSON(ctx, "search", indexerID, u, &raw); gerr != nil {
		return nil, gerr
	}

	items := make([]domain.ResultItem, 0, len(raw.Results))
	for _, rr := range raw.Results {
		items = append(items, trimResult(rr))
	}
	return items, nil
}

// getJSON performs one GET against the gateway and decodes the JSON body into
// dst. Every failure mode (transport error, non-2xx status, malformed body)
// is reported as a *GatewayError.
func (c *Client) getJSON(ctx context.Context, op, indexerID, rawurl string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return &GatewayError{Op: op, IndexerID: indexerID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &GatewayError{Op: op, IndexerID: indexerID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Op: op, IndexerID: indexerID, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &GatewayError{Op: op, IndexerID: indexerID, Status: resp.StatusCode, Err: err}
	}

	log.Debug().
		Str("op", op).
		Str("indexer", indexerID).
		Dur("latency", time.Since(start)).
		Msg("gateway call")
	return nil
}

// trimResult maps one raw gateway record to the client-facing shape.
func trimResult(rr rawResult) domain.ResultItem {
	return domain.ResultItem{
		Title:       rr.Title,
		Link:        magnetLink(rr),
		Size:        rr.Size,
		Seeders:     rr.Seeders,
		Leechers:    rr.Leechers,
		InfoHash:    rr.InfoHash,
		IndexerID:   rr.Tracker,
		Year:        rr.Year,
		Details:     rr.Details,
		PublishDate: parsePublishDate(rr.PublishDate),
	}
}

// magnetLink picks the best download reference for a record: a magnet URI when
// the indexer provides one, a magnet synthesized from the info hash when only
// a torrent-file link exists, and the raw link as a last resort.
func magnetLink(rr rawResult) string {
	if rr.MagnetURI != "" {
		return rr.MagnetURI
	}
	if rr.Link != "" && rr.InfoHash != "" {
		return "magnet:?xt=urn:btih:" + strings.ToLower(rr.InfoHash)
	}
	return rr.Link
}

// publishDateLayouts covers the timestamp formats Jackett is known to emit.
var publishDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parsePublishDate parses a gateway timestamp, returning nil when the value is
// absent or in an unknown layout. An unparseable date never fails the record.
func parsePublishDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
