// Package registry maintains the cached list of indexers configured on the
// upstream gateway. The cache serves reads lock-free from an atomically
// swapped snapshot, refreshes on a TTL policy, collapses concurrent refreshes
// into a single upstream call, and prefers a stale snapshot over failing a
// search when the gateway is briefly unreachable.
package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

// ErrUnavailable is returned when no indexer list can be obtained: the
// gateway fetch failed and no snapshot (current or persisted) exists. It is
// fatal for the whole search that triggered it.
var ErrUnavailable = errors.New("indexer registry unavailable")

// Lister is the slice of the gateway client the cache depends on.
type Lister interface {
	ListIndexers(ctx context.Context) ([]domain.Indexer, error)
}

// Store persists registry snapshots so a restart can serve searches before the
// first successful gateway fetch. Implementations live in the repo package; a
// nil Store disables persistence.
type Store interface {
	SaveSnapshot(ctx context.Context, indexers []domain.Indexer) error
	LoadSnapshot(ctx context.Context) ([]domain.Indexer, time.Time, error)
}

// fetchTimeout bounds a single gateway fetch once it has been detached from
// the caller that triggered it.
const fetchTimeout = 30 * time.Second

// snapshot is one immutable cache generation.
type snapshot struct {
	indexers  []domain.Indexer
	fetchedAt time.Time
}

// Cache is the process-scoped indexer registry cache. Construct with New;
// safe for concurrent use.
type Cache struct {
	gateway Lister
	store   Store // optional
	ttl     time.Duration

	cur   atomic.Pointer[snapshot]
	group singleflight.Group
}

// New returns a Cache refreshing from gateway at most once per ttl. When
// store is non-nil, the last persisted snapshot is loaded eagerly so the cache
// starts warm (it is treated as already stale, so the first Get still attempts
// a refresh and only falls back to it if the gateway is down).
func New(gateway Lister, store Store, ttl time.Duration) *Cache {
	c := &Cache{gateway: gateway, store: store, ttl: ttl}
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if indexers, fetchedAt, err := store.LoadSnapshot(ctx); err == nil && len(indexers) > 0 {
			c.cur.Store(&snapshot{indexers: indexers, fetchedAt: fetchedAt})
			log.Info().Int("indexers", len(indexers)).Time("fetched_at", fetchedAt).
				Msg("registry warm-started from persisted snapshot")
		}
	}
	return c
}

// Get returns the current indexer list. A fresh snapshot is served without any
// network access; a stale or absent one triggers exactly one gateway fetch no
// matter how many callers arrive concurrently. When the fetch fails, the
// previous snapshot (however stale) is returned instead; ErrUnavailable is
// returned only when there is nothing to fall back to.
func (c *Cache) Get(ctx context.Context) ([]domain.Indexer, error) {
	if s := c.cur.Load(); s != nil && time.Since(s.fetchedAt) < c.ttl {
		return s.indexers, nil
	}
	return c.refresh(ctx, false)
}

// Refresh forces a gateway fetch regardless of snapshot freshness, still
// collapsing concurrent callers into one upstream call. Used by the
// /indexers endpoint, which mirrors the gateway's live state.
func (c *Cache) Refresh(ctx context.Context) ([]domain.Indexer, error) {
	return c.refresh(ctx, true)
}

func (c *Cache) refresh(ctx context.Context, force bool) ([]domain.Indexer, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// A caller that queued behind a completed refresh may find the
		// snapshot fresh already; skip the duplicate fetch.
		if !force {
			if s := c.cur.Load(); s != nil && time.Since(s.fetchedAt) < c.ttl {
				return s.indexers, nil
			}
		}

		// The fetch runs on a context detached from the triggering caller:
		// queued callers share this one result, so a client disconnecting
		// mid-fetch must not fail its siblings.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		indexers, err := c.gateway.ListIndexers(fctx)
		if err != nil {
			if s := c.cur.Load(); s != nil {
				refreshesTotal.WithLabelValues("stale_fallback").Inc()
				log.Warn().Err(err).Time("fetched_at", s.fetchedAt).
					Msg("registry refresh failed, serving stale snapshot")
				return s.indexers, nil
			}
			refreshesTotal.WithLabelValues("unavailable").Inc()
			return nil, errors.Join(ErrUnavailable, err)
		}

		c.cur.Store(&snapshot{indexers: indexers, fetchedAt: time.Now()})
		c.persist(indexers)
		refreshesTotal.WithLabelValues("success").Inc()
		log.Info().Int("indexers", len(indexers)).Msg("registry refreshed")
		return indexers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Indexer), nil
}

// persist writes the new snapshot through the optional store. Persistence is
// best effort: a write failure must not fail the refresh that produced the
// snapshot.
func (c *Cache) persist(indexers []domain.Indexer) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.SaveSnapshot(ctx, indexers); err != nil {
		log.Warn().Err(err).Msg("failed to persist registry snapshot")
	}
}
