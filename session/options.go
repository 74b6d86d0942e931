package session

import "log/slog"

// StorageOption is a functional option for configuring a Storage
type StorageOption func(*Storage)

// WithConfig sets the storage configuration. (default DefaultConfig())
func WithConfig(cfg Config) StorageOption {
	return func(s *Storage) {
		s.config = cfg
	}
}

// WithCodec sets the codec used to serialize session data. (default GobCodec)
func WithCodec(codec Codec) StorageOption {
	return func(s *Storage) {
		s.codec = codec
	}
}

// WithStorageLogger sets the logger used by the storage. (default slog.Default())
func WithStorageLogger(logger *slog.Logger) StorageOption {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator sets the function generating new session ids.
// (default UUIDv7)
func WithIDGenerator(fn func() (string, error)) StorageOption {
	return func(s *Storage) {
		s.genID = fn
	}
}

// WithMetadataBag replaces the metadata bag.
func WithMetadataBag(bag *MetadataBag) StorageOption {
	return func(s *Storage) {
		s.metadata = bag
	}
}

// Option is a functional option for configuring a Session
type Option func(*Session)

// WithAttributeBag replaces the default attribute bag.
func WithAttributeBag(bag *AttributeBag) Option {
	return func(s *Session) {
		s.attributes = bag
	}
}

// WithFlashBag replaces the default flash bag.
func WithFlashBag(bag *FlashBag) Option {
	return func(s *Session) {
		s.flashes = bag
	}
}

// WithLogger sets the logger used by the session. (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}
