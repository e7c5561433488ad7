// Package domain defines the core types flowing through the search pipeline:
// indexers served by the registry cache, search queries, normalized torrent
// results, and per-indexer outcomes. The Indexer type doubles as the GORM
// model used to persist registry snapshots between restarts.
package domain

import (
	"strings"
	"time"
)

// Indexer is one torrent-tracker backend configured on the upstream gateway.
// Instances are immutable once a registry snapshot has been loaded; a refresh
// replaces the whole snapshot rather than mutating rows in place.
//
// Fields:
//   - ID: gateway-assigned identifier, unique within a snapshot.
//   - Name: human-readable display name.
//   - Enabled: whether the gateway reports the indexer as configured; only
//     enabled indexers are queried during a search.
//   - Position: zero-based rank within the gateway's listing. Persisted so a
//     warm-started snapshot keeps the gateway's order, which is also the order
//     search tasks are launched in.
//   - FetchedAt: timestamp of the snapshot this row belongs to. All rows of
//     one snapshot share the same value.
type Indexer struct {
	ID        string    `json:"id"      gorm:"type:varchar(128);primaryKey"`
	Name      string    `json:"name"    gorm:"type:varchar(255);not null"`
	Enabled   bool      `json:"enabled" gorm:"not null"`
	Position  int       `json:"-"       gorm:"not null;default:0"`
	FetchedAt time.Time `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Indexer.
func (Indexer) TableName() string { return "indexers" }

// Query is one immutable search request. Term is the free-text query; the
// optional Category narrows results to a gateway category identifier.
type Query struct {
	Term     string
	Category string
}

// Validate reports whether the query can be dispatched. A query with a blank
// term is rejected before any indexer task is launched.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Term) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ResultItem is a single torrent record as returned by one indexer. It is
// passed through to clients unmodified: no cross-indexer merging, ranking, or
// deduplication is applied. The Link field always carries the best available
// download reference (magnet URI preferred, synthesized from the info hash
// when the indexer provides only a torrent-file link).
type ResultItem struct {
	Title       string     `json:"Title"`
	Link        string     `json:"Link,omitempty"`
	Size        int64      `json:"Size"`
	Seeders     int        `json:"Seeders"`
	Leechers    int        `json:"Leechers"`
	InfoHash    string     `json:"InfoHash,omitempty"`
	IndexerID   string     `json:"IndexerId,omitempty"`
	Year        int        `json:"year,omitempty"`
	Details     string     `json:"Details,omitempty"`
	PublishDate *time.Time `json:"PublishDate,omitempty"`
}

// Outcome is the result of querying exactly one indexer for one search.
// Exactly one Outcome is produced per enabled indexer per search: either
// Results is populated (Err nil) or Err describes why the indexer failed.
// A failed indexer never aborts its siblings.
type Outcome struct {
	IndexerID string
	Results   []ResultItem
	Err       error
}

// Failed reports whether the indexer query ended in an error.
func (o Outcome) Failed() bool { return o.Err != nil }
