package session

// Bag is a named sub-container multiplexed over the session data.
//
// A bag owns no storage of its own. Storage hands every bag its slice of
// the shared session data through Initialize, and the bag must read and
// write that very map (never a copy) so that what the bag holds is
// exactly what gets persisted.
type Bag interface {
	// Name returns the name the bag is registered under.
	Name() string

	// StorageKey returns the key of the bag's slice in the session data.
	StorageKey() string

	// Initialize binds the bag to its slice of the session data.
	Initialize(slice map[string]any)

	// All returns a snapshot of the bag's slice.
	All() map[string]any

	// Clear empties the slice in place and returns what it held.
	Clear() map[string]any
}

// bagProxy wraps a bag registered through a Session. It records the slice
// the bag was bound to and counts every access in the session's usage index.
type bagProxy struct {
	bag        Bag
	slice      map[string]any
	usageIndex *int
}

var _ Bag = (*bagProxy)(nil)

func newBagProxy(bag Bag, usageIndex *int) *bagProxy {
	return &bagProxy{bag: bag, usageIndex: usageIndex}
}

// unwrap returns the proxied bag and counts the access.
func (p *bagProxy) unwrap() Bag {
	*p.usageIndex++
	return p.bag
}

func (p *bagProxy) isEmpty() bool {
	return len(p.slice) == 0
}

func (p *bagProxy) Name() string {
	return p.bag.Name()
}

func (p *bagProxy) StorageKey() string {
	return p.bag.StorageKey()
}

func (p *bagProxy) Initialize(slice map[string]any) {
	p.slice = slice
	p.bag.Initialize(slice)
}

func (p *bagProxy) All() map[string]any {
	return p.bag.All()
}

func (p *bagProxy) Clear() map[string]any {
	return p.bag.Clear()
}

// cloneSlice returns a shallow copy of a bag slice.
func cloneSlice(slice map[string]any) map[string]any {
	c := make(map[string]any, len(slice))
	for k, v := range slice {
		c[k] = v
	}
	return c
}
