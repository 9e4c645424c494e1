package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrRelayStopped indicates a message was submitted after Stop.
	ErrRelayStopped = errors.New("relay: stopped")

	// ErrInboxFull indicates the inbound queue is at capacity and the
	// message was dropped.
	ErrInboxFull = errors.New("relay: inbox full, message dropped")

	// ErrNoGenerator indicates the relay was built without a text
	// generator.
	ErrNoGenerator = errors.New("relay: no generator configured")

	// ErrNoDispatcher indicates the relay was built without an outbound
	// dispatcher.
	ErrNoDispatcher = errors.New("relay: no dispatcher configured")

	// ErrNotPermitted indicates a command sender failed the gate check.
	ErrNotPermitted = errors.New("relay: command not permitted")
)
