package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Session is the object application code talks to. It delegates attribute
// access to the attribute bag and the lifecycle to Storage, and counts
// every bag access in a usage index.
//
// A Session serves a single request and is not safe for concurrent use.
type Session struct {
	storage       *Storage
	attributes    *AttributeBag
	flashes       *FlashBag
	attributeName string
	flashName     string
	proxies       []*bagProxy
	usageIndex    int
	logger        *slog.Logger

	// first lazy start failure, reported by Save.
	err error
}

// New creates a Session on top of storage. The attribute and flash bags
// are registered immediately.
func New(storage *Storage, opts ...Option) *Session {
	if storage == nil {
		// Fail fast: there is no implicit default storage
		panic("session: storage is required")
	}

	s := &Session{
		storage: storage,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.attributes == nil {
		s.attributes = NewAttributeBag("")
	}
	if s.flashes == nil {
		s.flashes = NewFlashBag("")
	}

	s.attributeName = s.attributes.Name()
	s.flashName = s.flashes.Name()
	s.RegisterBag(s.attributes)
	s.RegisterBag(s.flashes)

	return s
}

// Start starts the session.
func (s *Session) Start() error {
	return s.storage.Start()
}

// IsStarted reports whether the session is started.
func (s *Session) IsStarted() bool {
	return s.storage.IsStarted()
}

// Has reports whether the attribute is set.
func (s *Session) Has(name string) bool {
	return s.attributeBag().Has(name)
}

// Get retrieves an attribute.
// Returns nil if the attribute doesn't exist.
func (s *Session) Get(name string) any {
	return s.attributeBag().Get(name)
}

// GetString retrieves a string attribute. Returns "" if not found or
// type mismatch.
func (s *Session) GetString(name string) string {
	return s.attributeBag().GetString(name)
}

// GetInt retrieves an int attribute. Returns 0 if not found or
// type mismatch.
func (s *Session) GetInt(name string) int {
	return s.attributeBag().GetInt(name)
}

// GetUint retrieves a uint attribute. Returns 0 if not found or
// type mismatch.
func (s *Session) GetUint(name string) uint {
	return s.attributeBag().GetUint(name)
}

// GetBool retrieves a bool attribute. Returns false if not found or
// type mismatch.
func (s *Session) GetBool(name string) bool {
	return s.attributeBag().GetBool(name)
}

// GetFloat32 retrieves a float32 attribute. Returns 0 if not found or
// type mismatch.
func (s *Session) GetFloat32(name string) float32 {
	return s.attributeBag().GetFloat32(name)
}

// GetFloat64 retrieves a float64 attribute. Returns 0 if not found or
// type mismatch.
func (s *Session) GetFloat64(name string) float64 {
	return s.attributeBag().GetFloat64(name)
}

// Set adds or updates an attribute.
func (s *Session) Set(name string, value any) {
	s.attributeBag().Set(name, value)
}

// All returns a copy of every attribute.
func (s *Session) All() map[string]any {
	return s.attributeBag().All()
}

// Replace discards every attribute and sets the given ones.
func (s *Session) Replace(attributes map[string]any) {
	s.attributeBag().Replace(attributes)
}

// Remove deletes an attribute and returns its previous value.
func (s *Session) Remove(name string) any {
	return s.attributeBag().Remove(name)
}

// Clear removes every attribute.
func (s *Session) Clear() {
	s.attributeBag().Clear()
}

// Count returns the number of attributes.
func (s *Session) Count() int {
	return s.attributeBag().Count()
}

// Invalidate clears all session data and migrates the session to a new
// id, destroying the old record. A positive lifetime replaces the cookie
// lifetime.
func (s *Session) Invalidate(lifetime time.Duration) error {
	s.storage.Clear()
	return s.Migrate(true, lifetime)
}

// Migrate moves the session to a new id, keeping its data. When destroy
// is set the old record is destroyed.
func (s *Session) Migrate(destroy bool, lifetime time.Duration) error {
	return s.storage.Regenerate(destroy, lifetime)
}

// Save persists the session. It must be called explicitly before the
// response is finalized: nothing is flushed implicitly. It also reports
// a failure to start the session during an earlier attribute access.
func (s *Session) Save() error {
	err := s.storage.Save()
	if s.err != nil {
		err = errors.Join(s.err, err)
		s.err = nil
	}
	return err
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.storage.ID()
}

// SetID sets the id of the session to load. It fails once the session is
// started, unless id is the current id.
func (s *Session) SetID(id string) error {
	if s.storage.ID() == id {
		return nil
	}
	return s.storage.SetID(id)
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.storage.Name()
}

// SetName sets the session name.
func (s *Session) SetName(name string) error {
	return s.storage.SetName(name)
}

// CookieLifetime returns the lifetime of the session cookie, 0 for a
// browser session.
func (s *Session) CookieLifetime() time.Duration {
	return s.storage.CookieLifetime()
}

// RegisterBag registers a bag, replacing any bag with the same name. A
// replacement attribute or flash bag backs the attribute accessors and
// FlashBag from then on. Accesses through Bag are counted in the usage
// index.
func (s *Session) RegisterBag(bag Bag) {
	switch b := bag.(type) {
	case *AttributeBag:
		if b.Name() == s.attributeName {
			s.attributes = b
		}
	case *FlashBag:
		if b.Name() == s.flashName {
			s.flashes = b
		}
	}

	p := newBagProxy(bag, &s.usageIndex)
	for i, existing := range s.proxies {
		if existing.Name() == bag.Name() {
			s.proxies = append(s.proxies[:i], s.proxies[i+1:]...)
			break
		}
	}
	s.proxies = append(s.proxies, p)
	s.storage.RegisterBag(p)
}

// Bag returns the bag registered under name, starting the session if
// needed. When starting fails the bag is still returned, bound to
// in-memory data only, and the access is not counted.
func (s *Session) Bag(name string) (Bag, error) {
	bag, err := s.storage.Bag(name)
	if bag == nil {
		return nil, err
	}
	if p, ok := bag.(*bagProxy); ok {
		if err != nil {
			return p.bag, err
		}
		bag = p.unwrap()
	}
	return bag, err
}

// FlashBag returns the flash bag.
func (s *Session) FlashBag() (*FlashBag, error) {
	bag, err := s.Bag(s.flashName)
	if bag == nil {
		return nil, err
	}
	flashes, ok := bag.(*FlashBag)
	if !ok {
		return nil, fmt.Errorf("%w: bag %q is not a flash bag", ErrUsage, s.flashName)
	}
	return flashes, err
}

// MetadataBag returns the metadata bag. Every call counts as a use of the
// session, even when the metadata is only inspected.
func (s *Session) MetadataBag() *MetadataBag {
	s.usageIndex++
	return s.storage.MetadataBag()
}

// UsageIndex returns how many times the session's bags were accessed.
func (s *Session) UsageIndex() int {
	return s.usageIndex
}

// IsEmpty reports whether every registered bag is empty. Checking counts
// as a use of a started session.
func (s *Session) IsEmpty() bool {
	if s.IsStarted() {
		s.usageIndex++
	}
	for _, p := range s.proxies {
		if !p.isEmpty() {
			return false
		}
	}
	return true
}

func (s *Session) attributeBag() *AttributeBag {
	bag, err := s.Bag(s.attributeName)
	if err != nil && s.err == nil {
		s.err = err
		s.logger.Error("session start failed", slog.String("session_name", s.Name()), slog.Any("error", err))
	}
	if attributes, ok := bag.(*AttributeBag); ok {
		return attributes
	}
	return s.attributes
}
