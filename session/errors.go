package session

import "errors"

var (
	// ErrStart indicates the handler could not open or read the session
	ErrStart = errors.New("session.start_failed")

	// ErrWrite indicates the handler could not write or destroy the session
	ErrWrite = errors.New("session.write_failed")

	// ErrUsage indicates an operation was called in a state that does not allow it
	ErrUsage = errors.New("session.usage")

	// ErrBagNotRegistered indicates no bag is registered under the requested name
	ErrBagNotRegistered = errors.New("session.bag_not_registered")

	// ErrNotStarted indicates the operation requires a started session
	ErrNotStarted = errors.New("session.not_started")

	// ErrAlreadyStarted indicates the operation is not allowed once the session is started
	ErrAlreadyStarted = errors.New("session.already_started")

	// ErrDecode indicates the persisted session data could not be decoded
	ErrDecode = errors.New("session.decode_failed")
)
