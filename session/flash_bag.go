package session

import "sort"

const (
	// FlashBagName is the default name of the flash bag.
	FlashBagName = "flashes"

	flashStorageKey = "_flashes"
)

// FlashBag holds messages that survive until they are read. Messages are
// grouped by type (e.g. "notice", "error"). Peek reads without consuming,
// Get and GetAll consume.
type FlashBag struct {
	name       string
	storageKey string
	flashes    map[string]any
}

var _ Bag = (*FlashBag)(nil)

// NewFlashBag creates a flash bag stored under storageKey.
// An empty storageKey selects the default one.
func NewFlashBag(storageKey string) *FlashBag {
	if storageKey == "" {
		storageKey = flashStorageKey
	}
	return &FlashBag{
		name:       FlashBagName,
		storageKey: storageKey,
		flashes:    make(map[string]any),
	}
}

// SetName changes the name the bag is registered under.
func (b *FlashBag) SetName(name string) {
	b.name = name
}

func (b *FlashBag) Name() string {
	return b.name
}

func (b *FlashBag) StorageKey() string {
	return b.storageKey
}

func (b *FlashBag) Initialize(slice map[string]any) {
	b.flashes = slice
}

// Add appends a message of the given type.
func (b *FlashBag) Add(typ, message string) {
	b.flashes[typ] = append(b.messages(typ), message)
}

// Set replaces the messages of the given type.
func (b *FlashBag) Set(typ string, messages ...string) {
	b.flashes[typ] = append([]string(nil), messages...)
}

// SetAll replaces every message.
func (b *FlashBag) SetAll(messages map[string][]string) {
	clear(b.flashes)
	for typ, msgs := range messages {
		b.Set(typ, msgs...)
	}
}

// Peek returns the messages of the given type without consuming them.
func (b *FlashBag) Peek(typ string) []string {
	return append([]string(nil), b.messages(typ)...)
}

// PeekAll returns every message without consuming them.
func (b *FlashBag) PeekAll() map[string][]string {
	all := make(map[string][]string, len(b.flashes))
	for typ := range b.flashes {
		all[typ] = b.Peek(typ)
	}
	return all
}

// Get returns and consumes the messages of the given type.
func (b *FlashBag) Get(typ string) []string {
	msgs := b.messages(typ)
	delete(b.flashes, typ)
	return msgs
}

// GetAll returns and consumes every message.
func (b *FlashBag) GetAll() map[string][]string {
	all := b.PeekAll()
	clear(b.flashes)
	return all
}

// Has reports whether there are messages of the given type.
func (b *FlashBag) Has(typ string) bool {
	return len(b.messages(typ)) > 0
}

// Keys returns the message types, sorted.
func (b *FlashBag) Keys() []string {
	keys := make([]string, 0, len(b.flashes))
	for typ := range b.flashes {
		keys = append(keys, typ)
	}
	sort.Strings(keys)
	return keys
}

// All returns a snapshot of the bag without consuming it.
func (b *FlashBag) All() map[string]any {
	all := make(map[string]any, len(b.flashes))
	for typ, msgs := range b.PeekAll() {
		all[typ] = msgs
	}
	return all
}

// Clear consumes every message and returns them.
func (b *FlashBag) Clear() map[string]any {
	all := b.All()
	clear(b.flashes)
	return all
}

func (b *FlashBag) messages(typ string) []string {
	switch v := b.flashes[typ].(type) {
	case []string:
		return v
	case []any:
		msgs := make([]string, 0, len(v))
		for _, m := range v {
			if s, ok := m.(string); ok {
				msgs = append(msgs, s)
			}
		}
		return msgs
	}
	return nil
}
