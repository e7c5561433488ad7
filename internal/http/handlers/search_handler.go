// Search HTTP handlers.
//
// This file exposes the streaming search endpoint:
//   - GET /search?query=&category=   (Server-Sent Events)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The search handler is the
// streaming encoder of the pipeline: each indexer outcome becomes one SSE
// event the moment it arrives, so clients render fast indexers' results while
// slow ones are still in flight.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-torrent-search/internal/domain"
	"github.com/tbourn/go-torrent-search/internal/registry"
	"github.com/tbourn/go-torrent-search/internal/services"
)

//
// Service contracts (context-aware)
//

// SearchService defines the fan-out search operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SearchService interface {
	// Search fans one query out to every enabled indexer and returns a channel
	// of per-indexer outcomes in completion order, plus the fan-out degree.
	Search(ctx context.Context, q domain.Query) (<-chan domain.Outcome, int, error)
}

// RegistryService defines registry operations consumed by HTTP handlers.
type RegistryService interface {
	// Refresh forces an upstream fetch of the indexer list, bypassing the TTL.
	Refresh(ctx context.Context) ([]domain.Indexer, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for search and the indexer registry.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	searchSvc SearchService
	registry  RegistryService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(searchSvc SearchService, registry RegistryService) *Handlers {
	return &Handlers{searchSvc: searchSvc, registry: registry}
}

//
// Event payloads
//

// ResultEvent is the payload of a `result` SSE event: one indexer answered.
type ResultEvent struct {
	Indexer string              `json:"indexer"`
	Results []domain.ResultItem `json:"results"`
}

// ErrorEvent is the payload of an `error` SSE event: one indexer failed.
// A failed indexer never aborts the stream; its siblings keep reporting.
type ErrorEvent struct {
	Indexer string `json:"indexer"`
	Error   string `json:"error"`
}

// DoneEvent is the payload of the terminal `done` SSE event.
type DoneEvent struct {
	Indexers  int   `json:"indexers"`
	Failures  int   `json:"failures"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

//
// Handlers
//

// StreamSearch runs a fan-out search and streams per-indexer outcomes as
// Server-Sent Events: one `result` or `error` event per indexer in completion
// order, then a single `done` event.
//
// Terminal failures (empty query, unresolvable registry) are reported as a
// plain JSON error envelope before the stream starts; once streaming begins
// the response always ends with `done`.
func (h *Handlers) StreamSearch(c *gin.Context) {
	q := domain.Query{
		Term:     strings.TrimSpace(c.Query("query")),
		Category: strings.TrimSpace(c.Query("category")),
	}

	start := time.Now()
	outcomes, launched, err := h.searchSvc.Search(c.Request.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyQuery):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query must not be empty")
		case errors.Is(err, services.ErrNoIndexers):
			fail(c, http.StatusServiceUnavailable, ErrCodeNoIndexers, "no enabled indexers configured")
		case errors.Is(err, registry.ErrUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeRegistryUnavailable, "indexer registry could not be resolved")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable proxy buffering for SSE

	// Drain the outcome channel, one SSE frame per outcome. A client
	// disconnect cancels the request context, which cancels all outstanding
	// indexer queries; the channel is buffered so nothing is left stranded.
	ctx := c.Request.Context()
	failures := 0
	for {
		select {
		case o, open := <-outcomes:
			if !open {
				c.SSEvent("done", DoneEvent{
					Indexers:  launched,
					Failures:  failures,
					ElapsedMs: time.Since(start).Milliseconds(),
				})
				c.Writer.Flush()
				return
			}
			if o.Failed() {
				failures++
				c.SSEvent("error", ErrorEvent{Indexer: o.IndexerID, Error: o.Err.Error()})
			} else {
				results := o.Results
				if results == nil {
					results = []domain.ResultItem{}
				}
				c.SSEvent("result", ResultEvent{Indexer: o.IndexerID, Results: results})
			}
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
