// Package gormstore provides a gorm session handler.
//
// GORMStore stores encoded session records in a sessions table. Each
// record expires after the configured lifetime unless it is written or
// touched again, and the store supports periodic cleanup of expired
// records.
package gormstore

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/bluescreen10/httpstate/session"
)

// DefaultLifetime is how long a record lives after its last write.
const DefaultLifetime = 24 * time.Minute

// GORMStore is a gorm backed session handler.
type GORMStore struct {
	db       *gorm.DB
	lifetime time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var (
	_ session.Handler          = (*GORMStore)(nil)
	_ session.TimestampUpdater = (*GORMStore)(nil)
)

// record represents a single stored session, containing the data,
// when it was last written and its expiration time.
type record struct {
	ID        string `gorm:"primaryKey;type:varchar(255)"`
	Data      []byte
	TouchedAt time.Time `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
}

func (record) TableName() string {
	return "sessions"
}

// Option is a functional option for configuring a GORMStore
type Option func(*GORMStore)

// WithLifetime sets how long records live after their last write.
// (default 24m)
func WithLifetime(d time.Duration) Option {
	return func(s *GORMStore) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithLogger sets the logger used to report cleanup failures.
// (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(s *GORMStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates and returns a new GORMStore instance.
// If the sessions table doesn't exists it is created.
func New(db *gorm.DB, opts ...Option) (*GORMStore, error) {
	s := &GORMStore{
		db:       db,
		lifetime: DefaultLifetime,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, db.AutoMigrate(&record{})
}

// Open is a no-op, the gorm.DB manages its own connections.
func (s *GORMStore) Open(savePath, name string) error {
	return nil
}

// Close is a no-op, the gorm.DB is owned by the caller.
func (s *GORMStore) Close() error {
	return nil
}

// Read returns the data stored under id, or empty data if the record is
// missing or expired.
func (s *GORMStore) Read(id string) ([]byte, error) {
	rec := &record{}
	tx := s.db.Where("id = ? AND expires_at >= ?", id, s.clock()).Limit(1).Find(rec)
	if tx.Error != nil {
		return []byte{}, tx.Error
	}
	if tx.RowsAffected == 0 {
		return []byte{}, nil
	}

	return rec.Data, nil
}

// Write stores the data under id. If a record with the same id already
// exists, it is overwritten and its expiration is pushed back.
func (s *GORMStore) Write(id string, data []byte) error {
	now := s.clock()
	rec := &record{}
	tx := s.db.Where(record{ID: id}).
		Assign(record{Data: data, TouchedAt: now, ExpiresAt: now.Add(s.lifetime)}).
		FirstOrCreate(rec)
	return tx.Error
}

// Destroy removes the record stored under id.
func (s *GORMStore) Destroy(id string) error {
	tx := s.db.Delete(&record{}, "id = ?", id)
	return tx.Error
}

// GC removes expired records and records that were not written for
// longer than maxLifetime. It returns how many records were removed.
func (s *GORMStore) GC(maxLifetime time.Duration) (int, error) {
	now := s.clock()
	tx := s.db.Where("expires_at < ?", now)
	if maxLifetime > 0 {
		tx = tx.Or("touched_at < ?", now.Add(-maxLifetime))
	}
	tx = tx.Delete(&record{})
	return int(tx.RowsAffected), tx.Error
}

// UpdateTimestamp pushes back the expiration of the record stored under
// id without rewriting its data. A missing record is written.
func (s *GORMStore) UpdateTimestamp(id string, data []byte) error {
	now := s.clock()
	tx := s.db.Model(&record{}).Where("id = ?", id).
		Updates(map[string]any{"touched_at": now, "expires_at": now.Add(s.lifetime)})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return s.Write(id, data)
	}
	return nil
}

// PeriodicCleanUp runs a loop that periodically deletes expired sessions.
// The cleanup runs every interval duration until a value is received on
// the stop channel, at which point the loop returns.
//
// Example usage:
//
//	stop := make(chan struct{})
//	go store.PeriodicCleanUp(time.Minute, stop)
//	...
//	close(stop) // stop the cleanup
func (s *GORMStore) PeriodicCleanUp(interval time.Duration, stop <-chan (struct{})) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.GC(0); err != nil {
				s.logger.Error("session cleanup failed", slog.Any("error", err))
			}
		case <-stop:
			return
		}
	}
}

func (s *GORMStore) clock() time.Time {
	return s.now().UTC()
}
