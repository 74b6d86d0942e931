// Package mysqlstore provides a mysql session handler.
//
// MySQLStore stores encoded session records in a sessions table. Each
// record expires after the configured lifetime unless it is written or
// touched again, and the store supports periodic cleanup of expired
// records. It can tell whether a record exists and refresh its
// expiration without rewriting the data.
package mysqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluescreen10/httpstate/session"
)

// DefaultLifetime is how long a record lives after its last write.
const DefaultLifetime = 24 * time.Minute

// MySQLStore is a mysql backed session handler.
type MySQLStore struct {
	db       *sql.DB
	lifetime time.Duration
	logger   *slog.Logger
}

var (
	_ session.Handler          = (*MySQLStore)(nil)
	_ session.IDValidator      = (*MySQLStore)(nil)
	_ session.TimestampUpdater = (*MySQLStore)(nil)
)

// Option is a functional option for configuring a MySQLStore
type Option func(*MySQLStore)

// WithLifetime sets how long records live after their last write.
// (default 24m)
func WithLifetime(d time.Duration) Option {
	return func(s *MySQLStore) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithLogger sets the logger used to report cleanup failures.
// (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(s *MySQLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates and returns a new MySQLStore instance.
// If the sessions table doesn't exists it is created.
func New(db *sql.DB, opts ...Option) (*MySQLStore, error) {
	s := &MySQLStore{
		db:       db,
		lifetime: DefaultLifetime,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, createTable(db)
}

// Open is a no-op, the sql.DB manages its own connections.
func (s *MySQLStore) Open(savePath, name string) error {
	return nil
}

// Close is a no-op, the sql.DB is owned by the caller.
func (s *MySQLStore) Close() error {
	return nil
}

// Read returns the data stored under id, or empty data if the record is
// missing or expired.
func (s *MySQLStore) Read(id string) ([]byte, error) {
	stmt := "SELECT data FROM sessions WHERE id = ? AND UTC_TIMESTAMP(6) < expires_at"
	row := s.db.QueryRow(stmt, id)

	var data []byte
	err := row.Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []byte{}, nil
		}
		return []byte{}, err
	}
	return data, nil
}

// Write stores the data under id. If a record with the same id already
// exists, it is overwritten and its expiration is pushed back.
func (s *MySQLStore) Write(id string, data []byte) error {
	now := time.Now().UTC()
	stmt := "INSERT INTO sessions(id, data, touched_at, expires_at) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data), touched_at = VALUES(touched_at), expires_at = VALUES(expires_at)"
	_, err := s.db.Exec(stmt, id, data, now, now.Add(s.lifetime))
	return err
}

// Destroy removes the record stored under id.
func (s *MySQLStore) Destroy(id string) error {
	stmt := "DELETE FROM sessions WHERE id = ?"
	_, err := s.db.Exec(stmt, id)
	return err
}

// GC removes expired records and records that were not written for
// longer than maxLifetime. It returns how many records were removed.
func (s *MySQLStore) GC(maxLifetime time.Duration) (int, error) {
	var (
		res sql.Result
		err error
	)
	if maxLifetime > 0 {
		stmt := "DELETE FROM sessions WHERE UTC_TIMESTAMP(6) > expires_at OR touched_at < ?"
		res, err = s.db.Exec(stmt, time.Now().UTC().Add(-maxLifetime))
	} else {
		stmt := "DELETE FROM sessions WHERE UTC_TIMESTAMP(6) > expires_at"
		res, err = s.db.Exec(stmt)
	}
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// ValidateID reports whether a live record exists for id.
func (s *MySQLStore) ValidateID(id string) (bool, error) {
	stmt := "SELECT 1 FROM sessions WHERE id = ? AND UTC_TIMESTAMP(6) < expires_at"
	var one int
	err := s.db.QueryRow(stmt, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateTimestamp pushes back the expiration of the record stored under
// id without rewriting its data. A missing record is written.
func (s *MySQLStore) UpdateTimestamp(id string, data []byte) error {
	now := time.Now().UTC()
	stmt := "UPDATE sessions SET touched_at = ?, expires_at = ? WHERE id = ?"
	res, err := s.db.Exec(stmt, now, now.Add(s.lifetime), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
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
func (s *MySQLStore) PeriodicCleanUp(interval time.Duration, stop <-chan (struct{})) {
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

func createTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(255) COLLATE utf8mb4_bin PRIMARY KEY,
			data BLOB NOT NULL,
			touched_at TIMESTAMP(6) NOT NULL,
			expires_at TIMESTAMP(6) NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}
