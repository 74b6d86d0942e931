package session

const (
	// AttributeBagName is the default name of the attribute bag.
	AttributeBagName = "attributes"

	attributeStorageKey = "_attributes"
)

// AttributeBag holds arbitrary key-value attributes.
type AttributeBag struct {
	name       string
	storageKey string
	attributes map[string]any
}

var _ Bag = (*AttributeBag)(nil)

// NewAttributeBag creates an attribute bag stored under storageKey.
// An empty storageKey selects the default one.
func NewAttributeBag(storageKey string) *AttributeBag {
	if storageKey == "" {
		storageKey = attributeStorageKey
	}
	return &AttributeBag{
		name:       AttributeBagName,
		storageKey: storageKey,
		attributes: make(map[string]any),
	}
}

// SetName changes the name the bag is registered under.
func (b *AttributeBag) SetName(name string) {
	b.name = name
}

func (b *AttributeBag) Name() string {
	return b.name
}

func (b *AttributeBag) StorageKey() string {
	return b.storageKey
}

func (b *AttributeBag) Initialize(slice map[string]any) {
	b.attributes = slice
}

// Has reports whether the attribute is set.
func (b *AttributeBag) Has(key string) bool {
	_, ok := b.attributes[key]
	return ok
}

// Get retrieves an attribute.
// Returns nil if the key doesn't exist.
func (b *AttributeBag) Get(key string) any {
	return b.attributes[key]
}

// GetInt retrieves an int attribute. Returns 0 if not found or
// type mismatch.
func (b *AttributeBag) GetInt(key string) int {
	v, _ := b.attributes[key].(int)
	return v
}

// GetUint retrieves a uint attribute. Returns 0 if not found or
// type mismatch.
func (b *AttributeBag) GetUint(key string) uint {
	v, _ := b.attributes[key].(uint)
	return v
}

// GetBool retrieves a bool attribute. Returns false if not found
// or type mismatch.
func (b *AttributeBag) GetBool(key string) bool {
	v, _ := b.attributes[key].(bool)
	return v
}

// GetFloat32 retrieves a float32 attribute. Returns 0 if not found
// or type mismatch.
func (b *AttributeBag) GetFloat32(key string) float32 {
	v, _ := b.attributes[key].(float32)
	return v
}

// GetFloat64 retrieves a float64 attribute. Returns 0 if not found
// or type mismatch.
func (b *AttributeBag) GetFloat64(key string) float64 {
	v, _ := b.attributes[key].(float64)
	return v
}

// GetString retrieves a string attribute. Returns "" if not found or
// type mismatch.
func (b *AttributeBag) GetString(key string) string {
	v, _ := b.attributes[key].(string)
	return v
}

// Set adds or updates an attribute.
func (b *AttributeBag) Set(key string, value any) {
	b.attributes[key] = value
}

// All returns a copy of the attributes.
func (b *AttributeBag) All() map[string]any {
	return cloneSlice(b.attributes)
}

// Replace discards every attribute and sets the given ones.
func (b *AttributeBag) Replace(attributes map[string]any) {
	clear(b.attributes)
	for k, v := range attributes {
		b.attributes[k] = v
	}
}

// Remove deletes an attribute and returns its previous value.
func (b *AttributeBag) Remove(key string) any {
	v := b.attributes[key]
	delete(b.attributes, key)
	return v
}

// Clear removes all attributes and returns them.
func (b *AttributeBag) Clear() map[string]any {
	old := cloneSlice(b.attributes)
	clear(b.attributes)
	return old
}

// Count returns the number of attributes.
func (b *AttributeBag) Count() int {
	return len(b.attributes)
}
