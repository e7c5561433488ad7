// Registry snapshot persistence.
//
// The original deployment cached the gateway's indexer list in a JSON file
// next to the process; here the snapshot lives in SQLite so a restart can
// serve searches before the first successful gateway fetch. One snapshot
// generation fully replaces the previous one.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-torrent-search/internal/domain"
)

// ReplaceIndexers atomically swaps the persisted snapshot for the given one,
// stamping each row with its position so the gateway's order survives the
// round trip. An empty slice clears the table.
func ReplaceIndexers(ctx context.Context, db *gorm.DB, indexers []domain.Indexer) error {
	rows := make([]domain.Indexer, len(indexers))
	copy(rows, indexers)
	for i := range rows {
		rows[i].Position = i
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Indexer{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// LoadIndexers returns the persisted snapshot in its original gateway order,
// together with its fetch timestamp. A missing snapshot yields an empty slice
// and a zero time, not an error.
func LoadIndexers(ctx context.Context, db *gorm.DB) ([]domain.Indexer, time.Time, error) {
	var indexers []domain.Indexer
	if err := db.WithContext(ctx).Order("position").Find(&indexers).Error; err != nil {
		return nil, time.Time{}, err
	}
	var fetchedAt time.Time
	for _, ix := range indexers {
		if ix.FetchedAt.After(fetchedAt) {
			fetchedAt = ix.FetchedAt
		}
	}
	return indexers, fetchedAt, nil
}

// SnapshotStore adapts the free functions above to the registry.Store
// interface. This keeps the registry package decoupled from GORM while
// reusing existing functions.
type SnapshotStore struct {
	DB *gorm.DB
}

// SaveSnapshot persists a snapshot via ReplaceIndexers.
func (s SnapshotStore) SaveSnapshot(ctx context.Context, indexers []domain.Indexer) error {
	return ReplaceIndexers(ctx, s.DB, indexers)
}

// LoadSnapshot loads the persisted snapshot via LoadIndexers.
func (s SnapshotStore) LoadSnapshot(ctx context.Context) ([]domain.Indexer, time.Time, error) {
	return LoadIndexers(ctx, s.DB)
}
