// Indexer registry HTTP handlers.
//
// This file exposes the registry inspection endpoint:
//   - GET /indexers   (force refresh, JSON)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

// IndexersResponse wraps the refreshed indexer list.
type IndexersResponse struct {
	Indexers []domain.Indexer `json:"indexers"`
	Count    int              `json:"count"`
}

// ListIndexers forces a registry refresh and returns the full indexer list,
// including disabled entries. The refresh bypasses the cache TTL but still
// collapses into any refresh already in flight.
func (h *Handlers) ListIndexers(c *gin.Context) {
	indexers, err := h.registry.Refresh(c.Request.Context())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeRegistryUnavailable, "indexer registry could not be resolved")
		return
	}
	if indexers == nil {
		indexers = []domain.Indexer{}
	}
	ok(c, http.StatusOK, IndexersResponse{Indexers: indexers, Count: len(indexers)})
}
