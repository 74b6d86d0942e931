package session

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9,-]{1,256}$`)

// Storage owns the physical session record: it starts the session, reads
// and decodes the record, binds every registered bag to its slice of the
// shared data, regenerates ids and persists the data on Save.
//
// Storage has two states, not started and started. Bags can be registered
// in either; bags registered after start are bound to the live data
// immediately. A Storage serves a single request and is not safe for
// concurrent use.
type Storage struct {
	proxy    *HandlerProxy
	codec    Codec
	logger   *slog.Logger
	config   Config
	genID    func() (string, error)
	metadata *MetadataBag

	id      string
	started bool
	data    Data
	bags    map[string]Bag
	order   []string

	// failure of the last lazy start, returned by Bag until Start succeeds.
	startErr error

	// record as read by Start, used to detect unchanged data on Save.
	loadedID   string
	loadedData []byte
}

// NewStorage creates a Storage persisting through proxy.
func NewStorage(proxy *HandlerProxy, opts ...StorageOption) *Storage {
	s := &Storage{
		proxy:  proxy,
		codec:  GobCodec{},
		logger: slog.Default(),
		config: DefaultConfig(),
		genID:  newID,
		data:   Data{},
		bags:   make(map[string]Bag),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metadata == nil {
		s.metadata = NewMetadataBag("", s.config.MetadataUpdateThreshold)
	}
	s.metadata.setDefaultLifetime(s.config.CookieLifetime)
	s.bind(s.metadata)

	return s
}

// NewStorageFromConfig creates a Storage from the provided Config.
func NewStorageFromConfig(proxy *HandlerProxy, cfg Config, opts ...StorageOption) *Storage {
	return NewStorage(proxy, append([]StorageOption{WithConfig(cfg)}, opts...)...)
}

// Start opens the handler and loads the session. If the current id is
// well-formed and accepted by the handler its record is read, otherwise a
// new id is generated and the session starts empty. Start on a started
// session does nothing.
func (s *Storage) Start() error {
	if s.started {
		return nil
	}

	if err := s.proxy.Open(s.config.SavePath, s.config.Name); err != nil {
		return fmt.Errorf("%w: open %q: %w", ErrStart, s.config.Name, err)
	}

	s.collectGarbage()

	data, raw, err := s.read()
	if err != nil {
		_ = s.proxy.Close()
		return err
	}

	if data == nil {
		id, err := s.genID()
		if err != nil {
			_ = s.proxy.Close()
			return fmt.Errorf("%w: generate id: %w", ErrStart, err)
		}
		s.id = id
		data = Data{}
	}

	s.loadedID = s.id
	s.loadedData = raw
	s.load(s.mergeBuffered(data))
	s.started = true
	s.startErr = nil

	s.logger.Debug("session started",
		slog.String("session_name", s.config.Name),
		slog.String("handler", s.proxy.SaveHandlerName()),
		slog.Bool("existing", len(raw) > 0))

	return nil
}

// read returns the decoded record for the current id, or nil data when the
// id is missing, malformed or rejected by the handler.
func (s *Storage) read() (Data, []byte, error) {
	if s.id == "" || !validIDPattern.MatchString(s.id) {
		return nil, nil, nil
	}

	ok, err := s.proxy.ValidateID(s.id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: validate id: %w", ErrStart, err)
	}
	if !ok {
		s.logger.Debug("session id rejected by handler", slog.String("session_name", s.config.Name))
		return nil, nil, nil
	}

	raw, err := s.proxy.Read(s.id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read: %w", ErrStart, err)
	}

	data, err := s.codec.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w: %w", ErrStart, ErrDecode, err)
	}
	return data, raw, nil
}

// mergeBuffered copies data written to bags before the session started
// into the loaded data, so nothing set early is lost.
func (s *Storage) mergeBuffered(data Data) Data {
	for key, slice := range s.data {
		if key == s.metadata.StorageKey() || len(slice) == 0 {
			continue
		}
		dst := data[key]
		if dst == nil {
			dst = make(map[string]any, len(slice))
			data[key] = dst
		}
		for k, v := range slice {
			dst[k] = v
		}
	}
	return data
}

// collectGarbage runs Handler.GC with probability GCProbability/GCDivisor.
// GC failures never prevent a session from starting.
func (s *Storage) collectGarbage() {
	p, d := s.config.GCProbability, s.config.GCDivisor
	if p <= 0 || d <= 0 {
		return
	}
	if p < d && rand.IntN(d) >= p {
		return
	}

	n, err := s.proxy.GC(s.config.GCMaxLifetime)
	if err != nil {
		s.logger.Warn("session garbage collection failed", slog.Any("error", err))
		return
	}
	s.logger.Debug("session garbage collected", slog.Int("removed", n))
}

// Regenerate assigns a new id to the started session. When destroy is set
// the record under the old id is destroyed and the metadata is stamped as
// new, otherwise the old record is left to garbage collection. A positive
// lifetime replaces the cookie lifetime. The in-memory data is kept.
func (s *Storage) Regenerate(destroy bool, lifetime time.Duration) error {
	if !s.started {
		return fmt.Errorf("%w: regenerate: %w", ErrUsage, ErrNotStarted)
	}

	if lifetime > 0 {
		s.config.CookieLifetime = lifetime
		s.metadata.setDefaultLifetime(lifetime)
	}

	if destroy {
		if err := s.proxy.Destroy(s.id); err != nil {
			return fmt.Errorf("%w: destroy: %w", ErrWrite, err)
		}
		s.metadata.StampNew(lifetime)
	}

	id, err := s.genID()
	if err != nil {
		return fmt.Errorf("%w: generate id: %w", ErrWrite, err)
	}
	s.id = id

	s.logger.Debug("session regenerated",
		slog.String("session_name", s.config.Name),
		slog.Bool("destroyed", destroy))

	return nil
}

// Save persists the session data and closes the handler. When the data
// did not change since Start and LazyWrite is enabled only the record's
// timestamp is refreshed. Saving a session that was never started does
// nothing.
func (s *Storage) Save() error {
	if !s.started {
		s.logger.Debug("session save skipped, not started", slog.String("session_name", s.config.Name))
		return nil
	}

	s.started = false

	raw, err := s.codec.Encode(s.data)
	if err != nil {
		_ = s.proxy.Close()
		return fmt.Errorf("%w: encode: %w", ErrWrite, err)
	}

	if s.unchanged() {
		err = s.proxy.UpdateTimestamp(s.id, raw)
	} else {
		err = s.proxy.Write(s.id, raw)
	}

	closeErr := s.proxy.Close()
	if err != nil {
		return fmt.Errorf("%w: write: %w", ErrWrite, err)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close: %w", ErrWrite, closeErr)
	}

	s.loadedID = s.id
	s.loadedData = raw
	return nil
}

// unchanged reports whether the data equals the record read by Start under
// the same id.
func (s *Storage) unchanged() bool {
	if !s.config.LazyWrite || s.loadedData == nil || s.loadedID != s.id {
		return false
	}
	// gob output depends on map iteration order, so compare decoded data.
	prev, err := s.codec.Decode(s.loadedData)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(prev, s.data)
}

// Clear empties every bag and resets the shared data. The started state
// does not change.
func (s *Storage) Clear() {
	for _, name := range s.order {
		s.bags[name].Clear()
	}
	s.load(Data{})
}

// RegisterBag registers a bag under its name, replacing any bag with the
// same name. A bag registered on a started session is bound to the live
// data immediately.
func (s *Storage) RegisterBag(bag Bag) {
	name := bag.Name()
	if _, ok := s.bags[name]; !ok {
		s.order = append(s.order, name)
	}
	s.bags[name] = bag
	s.bind(bag)
}

// Bag returns the bag registered under name, starting the session if
// needed. If starting fails the bag is returned along with the error and
// keeps working on in-memory data only. The failure is remembered: later
// calls return it without reopening the handler until Start succeeds.
func (s *Storage) Bag(name string) (Bag, error) {
	bag, ok := s.bags[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrUsage, ErrBagNotRegistered, name)
	}

	if !s.started {
		if s.startErr != nil {
			return bag, s.startErr
		}
		if err := s.Start(); err != nil {
			s.startErr = err
			return bag, err
		}
	}

	return bag, nil
}

// MetadataBag returns the metadata bag.
func (s *Storage) MetadataBag() *MetadataBag {
	return s.metadata
}

// IsStarted reports whether the session is started.
func (s *Storage) IsStarted() bool {
	return s.started
}

// ID returns the session id, empty until the session is started or an
// id is set.
func (s *Storage) ID() string {
	return s.id
}

// SetID sets the id of the session to load on Start.
func (s *Storage) SetID(id string) error {
	if s.started {
		return fmt.Errorf("%w: set id: %w", ErrUsage, ErrAlreadyStarted)
	}
	s.id = id
	return nil
}

// Name returns the session name.
func (s *Storage) Name() string {
	return s.config.Name
}

// SetName sets the session name.
func (s *Storage) SetName(name string) error {
	if s.started {
		return fmt.Errorf("%w: set name: %w", ErrUsage, ErrAlreadyStarted)
	}
	s.config.Name = name
	return nil
}

// CookieLifetime returns the cookie lifetime, 0 for a browser session.
func (s *Storage) CookieLifetime() time.Duration {
	return s.config.CookieLifetime
}

// load replaces the shared data and rebinds every bag to it.
func (s *Storage) load(data Data) {
	s.data = data
	for _, name := range s.order {
		s.bind(s.bags[name])
	}
	s.bind(s.metadata)
}

// bind hands bag its slice of the shared data, creating it if absent.
func (s *Storage) bind(bag Bag) {
	key := bag.StorageKey()
	slice := s.data[key]
	if slice == nil {
		slice = make(map[string]any)
		s.data[key] = slice
	}
	bag.Initialize(slice)
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
