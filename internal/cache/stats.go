package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"
)

// Stats summarizes the cache contents for the maintenance CLI.
type Stats struct {
	Total     int64
	Valid     int64
	Expired   int64
	TTL       time.Duration
	Oldest    *time.Time
	Newest    *time.Time
	SizeBytes int64
}

// Stats counts entries and reports the database file size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{TTL: s.ttl}
	db := s.db.WithContext(ctx).Model(&entryModel{})
	if err := db.Count(&st.Total).Error; err != nil {
		return st, fmt.Errorf("cache: count: %w", err)
	}
	cutoff := s.now().UTC().Add(-s.ttl)
	if err := s.db.WithContext(ctx).Model(&entryModel{}).
		Where("cached_at < ?", cutoff).
		Count(&st.Expired).Error; err != nil {
		return st, fmt.Errorf("cache: count expired: %w", err)
	}
	st.Valid = st.Total - st.Expired

	oldest, err := s.edgeEntry(ctx, "cached_at ASC")
	if err != nil {
		return st, err
	}
	newest, err := s.edgeEntry(ctx, "cached_at DESC")
	if err != nil {
		return st, err
	}
	st.Oldest, st.Newest = oldest, newest

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}
	return st, nil
}

func (s *Store) edgeEntry(ctx context.Context, order string) (*time.Time, error) {
	var row entryModel
	err := s.db.WithContext(ctx).Order(order).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	ts := row.CachedAt
	return &ts, nil
}
