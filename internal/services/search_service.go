// Package services – SearchService
//
// This file implements the fan-out coordinator. One search resolves the
// indexer list from the registry cache, launches one query task per enabled
// indexer, and delivers each task's outcome on a channel the moment it
// completes. Emission order is completion order, never registry order: the
// caller can render fast indexers' results while slow ones are still in
// flight.
//
// Failure isolation is strict: every per-indexer error (network, gateway
// status, malformed payload, deadline) is converted to data — an Outcome with
// a non-nil Err — at the task boundary. Search itself can only fail before
// the fan-out starts (invalid query, unresolvable registry).
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

// Registry is the slice of the registry cache the coordinator depends on.
type Registry interface {
	// Get returns the current indexer list, refreshing it when stale.
	Get(ctx context.Context) ([]domain.Indexer, error)
}

// Gateway is the slice of the upstream client used by query tasks.
type Gateway interface {
	// Search runs one query against one indexer through the gateway.
	Search(ctx context.Context, indexerID string, q domain.Query) ([]domain.ResultItem, error)
}

// SearchService coordinates concurrent per-indexer queries for one search
// request. Safe for concurrent use; one Search call owns one session.
type SearchService struct {
	// Registry resolves the indexer list per search.
	Registry Registry
	// Gateway performs the actual per-indexer queries.
	Gateway Gateway

	// IndexerTimeout is the per-task query deadline. Each task gets its own
	// timer; one hung indexer can delay the stream's end by at most this much.
	IndexerTimeout time.Duration

	// MaxConcurrent caps concurrent outbound queries. Zero means no cap: the
	// fan-out degree equals the enabled indexer count.
	MaxConcurrent int
}

// NewSearchService constructs a SearchService with the given collaborators.
func NewSearchService(reg Registry, gw Gateway, indexerTimeout time.Duration, maxConcurrent int) *SearchService {
	return &SearchService{
		Registry:       reg,
		Gateway:        gw,
		IndexerTimeout: indexerTimeout,
		MaxConcurrent:  maxConcurrent,
	}
}

// Search launches one query task per enabled indexer and returns a channel of
// their outcomes in completion order, plus the number of tasks launched. The
// channel is closed once every task has reported exactly once. It is buffered
// to the fan-out degree, so tasks never block on send and a caller that stops
// reading (client disconnect) leaks nothing; cancelling ctx also cancels all
// outstanding queries.
//
// Errors returned directly (rather than through the channel) are terminal for
// the whole search: domain.ErrEmptyQuery, registry.ErrUnavailable wrapped by
// the registry, or ErrNoIndexers.
func (s *SearchService) Search(ctx context.Context, q domain.Query) (<-chan domain.Outcome, int, error) {
	if err := q.Validate(); err != nil {
		searchesTotal.WithLabelValues("invalid_query").Inc()
		return nil, 0, err
	}

	indexers, err := s.Registry.Get(ctx)
	if err != nil {
		searchesTotal.WithLabelValues("registry_unavailable").Inc()
		return nil, 0, err
	}

	enabled := make([]domain.Indexer, 0, len(indexers))
	for _, ix := range indexers {
		if ix.Enabled {
			enabled = append(enabled, ix)
		}
	}
	if len(enabled) == 0 {
		searchesTotal.WithLabelValues("no_indexers").Inc()
		return nil, 0, ErrNoIndexers
	}
	searchesTotal.WithLabelValues("started").Inc()

	// Buffered to the fan-out degree: sends never block, so an abandoned
	// session cannot strand task goroutines.
	out := make(chan domain.Outcome, len(enabled))

	var sem chan struct{}
	if s.MaxConcurrent > 0 && s.MaxConcurrent < len(enabled) {
		sem = make(chan struct{}, s.MaxConcurrent)
	}

	var wg sync.WaitGroup
	for _, ix := range enabled {
		wg.Add(1)
		go func(ix domain.Indexer) {
			defer wg.Done()
			out <- s.query(ctx, ix, q, sem)
		}(ix)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	log.Debug().
		Str("term", q.Term).
		Str("category", q.Category).
		Int("indexers", len(enabled)).
		Msg("search fan-out started")
	return out, len(enabled), nil
}

// query is one per-indexer task. It always resolves to exactly one Outcome
// and never lets an error escape past its own boundary.
func (s *SearchService) query(ctx context.Context, ix domain.Indexer, q domain.Query, sem chan struct{}) domain.Outcome {
	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return domain.Outcome{IndexerID: ix.ID, Err: ctx.Err()}
		}
	}

	qctx, cancel := context.WithTimeout(ctx, s.IndexerTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.Gateway.Search(qctx, ix.ID, q)
	elapsed := time.Since(start)
	indexerQueryDuration.WithLabelValues(ix.ID).Observe(elapsed.Seconds())

	if err != nil {
		outcome := "error"
		// The overall request being cancelled is not the indexer's fault;
		// only its own deadline counts as a timeout.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			outcome = "timeout"
			err = fmt.Errorf("%w after %s", ErrIndexerTimeout, s.IndexerTimeout)
		}
		indexerOutcomes.WithLabelValues(ix.ID, outcome).Inc()
		log.Warn().
			Str("indexer", ix.ID).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("indexer query failed")
		return domain.Outcome{IndexerID: ix.ID, Err: err}
	}

	indexerOutcomes.WithLabelValues(ix.ID, "success").Inc()
	log.Debug().
		Str("indexer", ix.ID).
		Int("results", len(results)).
		Dur("elapsed", elapsed).
		Msg("indexer query complete")
	return domain.Outcome{IndexerID: ix.ID, Results: results}
}
