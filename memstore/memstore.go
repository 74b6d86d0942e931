// Package memstore provides an in-memory session handler.
//
// Memstore stores encoded session records keyed by session id. Each
// record expires after the configured lifetime unless it is written or
// touched again, and the store supports periodic cleanup of expired
// records.
//
// This package is suitable for single-process applications or testing
// scenarios. It is not persistent and does not share state across
// processes.
package memstore

import (
	"sync"
	"time"

	"github.com/bluescreen10/httpstate/session"
)

// DefaultLifetime is how long a record lives after its last write.
const DefaultLifetime = 24 * time.Minute

// Memstore is an in-memory session handler.
// It is safe for concurrent use by multiple goroutines.
type Memstore struct {
	sessions sync.Map
	lifetime time.Duration
	now      func() time.Time
}

var (
	_ session.Handler          = (*Memstore)(nil)
	_ session.IDValidator      = (*Memstore)(nil)
	_ session.TimestampUpdater = (*Memstore)(nil)
)

// record represents a single stored session, containing the data,
// when it was last written and its expiration time.
type record struct {
	updatedAt time.Time
	expiresAt time.Time
	data      []byte
}

// Option is a functional option for configuring a Memstore
type Option func(*Memstore)

// WithLifetime sets how long records live after their last write.
// (default 24m)
func WithLifetime(d time.Duration) Option {
	return func(m *Memstore) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// New creates and returns a new Memstore instance.
func New(opts ...Option) *Memstore {
	m := &Memstore{
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open is a no-op, records live in process memory.
func (m *Memstore) Open(savePath, name string) error {
	return nil
}

// Close is a no-op.
func (m *Memstore) Close() error {
	return nil
}

// Read returns the data stored under id. If the record is missing or has
// expired Read returns empty data; expired records are deleted.
func (m *Memstore) Read(id string) ([]byte, error) {
	rec, ok := m.load(id)
	if !ok {
		return []byte{}, nil
	}
	return rec.data, nil
}

// Write stores the data under id. If a record with the same id already
// exists, it is overwritten and its expiration is pushed back.
func (m *Memstore) Write(id string, data []byte) error {
	now := m.now()
	rec := record{
		updatedAt: now,
		expiresAt: now.Add(m.lifetime),
		data:      append([]byte(nil), data...),
	}
	m.sessions.Store(id, rec)
	return nil
}

// Destroy removes the record stored under id. If the id does not exist,
// this is a no-op.
func (m *Memstore) Destroy(id string) error {
	m.sessions.Delete(id)
	return nil
}

// GC removes expired records and records that were not written for
// longer than maxLifetime. It returns how many records were removed.
func (m *Memstore) GC(maxLifetime time.Duration) (int, error) {
	now := m.now()
	removed := 0
	m.sessions.Range(func(key, value any) bool {
		rec := value.(record)
		if now.After(rec.expiresAt) || (maxLifetime > 0 && now.Sub(rec.updatedAt) > maxLifetime) {
			m.sessions.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// ValidateID reports whether a live record exists for id.
func (m *Memstore) ValidateID(id string) (bool, error) {
	_, ok := m.load(id)
	return ok, nil
}

// UpdateTimestamp pushes back the expiration of the record stored under
// id without replacing its data. A missing record is written.
func (m *Memstore) UpdateTimestamp(id string, data []byte) error {
	rec, ok := m.load(id)
	if !ok {
		return m.Write(id, data)
	}
	now := m.now()
	rec.updatedAt = now
	rec.expiresAt = now.Add(m.lifetime)
	m.sessions.Store(id, rec)
	return nil
}

// Count returns the number of stored records, expired or not.
func (m *Memstore) Count() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
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
func (m *Memstore) PeriodicCleanUp(interval time.Duration, stop <-chan (struct{})) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = m.GC(0)
		case <-stop:
			return
		}
	}
}

// load returns the live record stored under id, deleting it if expired.
func (m *Memstore) load(id string) (record, bool) {
	r, ok := m.sessions.Load(id)
	if !ok {
		return record{}, false
	}

	rec := r.(record)
	if m.now().After(rec.expiresAt) {
		m.sessions.Delete(id)
		return record{}, false
	}
	return rec, true
}
