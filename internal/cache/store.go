// Package cache implements the TTL cache that sits in front of the fundamentals
// provider. Entries live in a single SQLite table keyed by the upper-cased ticker
// symbol; expiry is lazy (an expired entry is deleted by the Get that finds it).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultTTL matches the one-week freshness window of fundamentals data.
const DefaultTTL = 7 * 24 * time.Hour

type entryModel struct {
	TickerSymbol string         `gorm:"column:ticker_symbol;primaryKey"`
	Data         datatypes.JSON `gorm:"column:data;not null"`
	CachedAt     time.Time      `gorm:"column:cached_at;not null"`
}

func (entryModel) TableName() string { return "overview_cache" }

// Entry is a cached document together with its write time.
type Entry struct {
	Key      string
	Payload  json.RawMessage
	CachedAt time.Time
}

// Store is the SQLite-backed TTL cache.
type Store struct {
	db   *gorm.DB
	path string
	ttl  time.Duration
	now  func() time.Time
}

type Option func(*Store)

// WithTTL overrides DefaultTTL; non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates (or reuses) the cache database at path.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a couple of connections are enough for concurrent runs.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	s := &Store{db: db, path: path, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// NormalizeKey upper-cases and trims a ticker symbol.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormDB exposes the underlying *gorm.DB for inspection.
func (s *Store) GormDB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string { return s.path }

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) expired(cachedAt time.Time) bool {
	return s.now().Sub(cachedAt) > s.ttl
}

// Get returns the payload for key when it is younger than the TTL. An expired
// entry is deleted before Get reports a miss.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	key = NormalizeKey(key)
	if key == "" {
		return nil, false, nil
	}
	var row entryModel
	err := s.db.WithContext(ctx).Where("ticker_symbol = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if s.expired(row.CachedAt) {
		// Conditional delete: a concurrent Set may already have refreshed the row.
		cutoff := s.now().UTC().Add(-s.ttl)
		if err := s.db.WithContext(ctx).
			Where("ticker_symbol = ? AND cached_at < ?", key, cutoff).
			Delete(&entryModel{}).Error; err != nil {
			return nil, false, fmt.Errorf("cache: evict %s: %w", key, err)
		}
		return nil, false, nil
	}
	return json.RawMessage(row.Data), true, nil
}

// Set stores payload under key, replacing any existing entry.
func (s *Store) Set(ctx context.Context, key string, payload json.RawMessage) error {
	key = NormalizeKey(key)
	if key == "" {
		return fmt.Errorf("cache: key cannot be empty")
	}
	if !json.Valid(payload) {
		return fmt.Errorf("cache: payload for %s is not valid JSON", key)
	}
	row := entryModel{
		TickerSymbol: key,
		Data:         datatypes.JSON(append([]byte(nil), payload...)),
		CachedAt:     s.now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker_symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "cached_at"}),
		}).
		Create(&row).Error
}

// Delete removes key and reports whether an entry existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	key = NormalizeKey(key)
	res := s.db.WithContext(ctx).Where("ticker_symbol = ?", key).Delete(&entryModel{})
	if res.Error != nil {
		return false, fmt.Errorf("cache: delete %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entryModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("cache: clear: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeExpired bulk-deletes entries older than the TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	res := s.db.WithContext(ctx).Where("cached_at < ?", cutoff).Delete(&entryModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("cache: purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Lookup returns the raw entry for key without applying the TTL.
func (s *Store) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	var row entryModel
	err := s.db.WithContext(ctx).Where("ticker_symbol = ?", NormalizeKey(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return toEntry(row), true, nil
}

// List returns every entry, newest first, expired ones included.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var rows []entryModel
	if err := s.db.WithContext(ctx).Order("cached_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cache: list: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out, nil
}

func toEntry(row entryModel) Entry {
	return Entry{
		Key:      row.TickerSymbol,
		Payload:  json.RawMessage(row.Data),
		CachedAt: row.CachedAt,
	}
}

// IsExpired reports whether e is past the store's TTL.
func (s *Store) IsExpired(e Entry) bool {
	return s.expired(e.CachedAt)
}
