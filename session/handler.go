package session

import "time"

// Handler defines the interface for session persistence backends.
// A Handler is responsible for storing the raw, encoded session data
// under a session id. Implementations may keep sessions in memory,
// databases, caches, or any other durable storage system, and must be
// safe for concurrent use by multiple sessions.
type Handler interface {
	// Open prepares the handler for a session with the given name.
	// savePath is an opaque, handler specific location hint.
	Open(savePath, name string) error

	// Close releases whatever Open acquired.
	Close() error

	// Read returns the data stored under id. A missing or expired
	// record is not an error: Read returns empty data.
	Read(id string) ([]byte, error)

	// Write stores data under id, overwriting any existing record
	// and refreshing its expiration.
	Write(id string, data []byte) error

	// Destroy removes the record stored under id. Destroying a missing
	// record is not an error.
	Destroy(id string) error

	// GC removes records that have not been written for longer than
	// maxLifetime and returns how many were removed.
	GC(maxLifetime time.Duration) (int, error)
}

// IDValidator is implemented by handlers that can tell whether a
// record exists for an id before it is read.
type IDValidator interface {
	ValidateID(id string) (bool, error)
}

// TimestampUpdater is implemented by handlers that can refresh the
// expiration of a record without rewriting its data.
type TimestampUpdater interface {
	UpdateTimestamp(id string, data []byte) error
}

// CapabilityReporter is implemented by handlers that declare their
// capabilities explicitly, typically decorators that implement every
// optional method but only support what the decorated handler supports.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// Capabilities describes the optional behavior a handler supports.
type Capabilities struct {
	// ValidateID is set when the handler implements IDValidator.
	ValidateID bool

	// UpdateTimestamp is set when the handler implements TimestampUpdater.
	UpdateTimestamp bool

	// NativeWrapper is set when the handler is a passthrough to a
	// platform default handler. It only affects diagnostic naming.
	NativeWrapper bool
}

// DetectCapabilities returns the capabilities declared by h.
func DetectCapabilities(h Handler) Capabilities {
	if r, ok := h.(CapabilityReporter); ok {
		return r.Capabilities()
	}

	_, validates := h.(IDValidator)
	_, updates := h.(TimestampUpdater)
	return Capabilities{ValidateID: validates, UpdateTimestamp: updates}
}
