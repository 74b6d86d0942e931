package session

import "time"

const (
	// MetadataBagName is the name of the metadata bag.
	MetadataBagName = "__metadata"

	metadataStorageKey = "_meta"

	createdKey  = "c"
	updatedKey  = "u"
	lifetimeKey = "l"
)

// MetadataBag tracks when the session was created, when it was last used
// and the cookie lifetime it was issued with. It is owned by Storage and
// is not cleared by Session.Clear or Storage.Clear.
type MetadataBag struct {
	storageKey      string
	meta            map[string]any
	lastUsed        int64
	updateThreshold time.Duration
	lifetime        time.Duration
	now             func() time.Time
}

var _ Bag = (*MetadataBag)(nil)

// NewMetadataBag creates a metadata bag. The last-used time is only
// refreshed when it is older than updateThreshold, which keeps unchanged
// sessions byte-identical between requests.
func NewMetadataBag(storageKey string, updateThreshold time.Duration) *MetadataBag {
	if storageKey == "" {
		storageKey = metadataStorageKey
	}
	return &MetadataBag{
		storageKey:      storageKey,
		meta:            make(map[string]any),
		updateThreshold: updateThreshold,
		now:             time.Now,
	}
}

func (b *MetadataBag) Name() string {
	return MetadataBagName
}

func (b *MetadataBag) StorageKey() string {
	return b.storageKey
}

func (b *MetadataBag) Initialize(slice map[string]any) {
	b.meta = slice

	if _, ok := slice[createdKey]; !ok {
		b.stampCreated(b.lifetime)
		return
	}

	b.lastUsed = toInt64(slice[updatedKey])
	now := b.now().Unix()
	if time.Duration(now-b.lastUsed)*time.Second >= b.updateThreshold {
		b.meta[updatedKey] = now
	}
}

// StampNew marks the session as newly created with the given cookie
// lifetime. A zero lifetime keeps the default one.
func (b *MetadataBag) StampNew(lifetime time.Duration) {
	if lifetime <= 0 {
		lifetime = b.lifetime
	}
	b.stampCreated(lifetime)
}

// Created returns when the session was created.
func (b *MetadataBag) Created() time.Time {
	return time.Unix(toInt64(b.meta[createdKey]), 0)
}

// LastUsed returns when the session was used before the current request.
func (b *MetadataBag) LastUsed() time.Time {
	return time.Unix(b.lastUsed, 0)
}

// Lifetime returns the cookie lifetime the session was issued with.
func (b *MetadataBag) Lifetime() time.Duration {
	return time.Duration(toInt64(b.meta[lifetimeKey])) * time.Second
}

// All returns a snapshot of the metadata.
func (b *MetadataBag) All() map[string]any {
	return cloneSlice(b.meta)
}

// Clear returns the metadata without removing it: metadata describes the
// session itself, not data stored in it.
func (b *MetadataBag) Clear() map[string]any {
	return b.All()
}

// setDefaultLifetime sets the lifetime stamped on new sessions.
func (b *MetadataBag) setDefaultLifetime(lifetime time.Duration) {
	b.lifetime = lifetime
}

func (b *MetadataBag) stampCreated(lifetime time.Duration) {
	now := b.now().Unix()
	b.lastUsed = now
	b.meta[createdKey] = now
	b.meta[updatedKey] = now
	b.meta[lifetimeKey] = int64(lifetime / time.Second)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
