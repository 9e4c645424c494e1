package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrNoChannel indicates the outbound message targets a channel that
	// is not registered in the dispatcher.
	ErrNoChannel = errors.New("channel: unknown channel")

	// ErrDuplicateChannel indicates a channel with the same name is
	// already registered in the dispatcher.
	ErrDuplicateChannel = errors.New("channel: duplicate channel name")

	// ErrNoInbox indicates a channel's inbox callback has not been set.
	ErrNoInbox = errors.New("channel: inbox not set")

	// ErrRejected indicates the platform refused the outbound payload
	// (e.g. the formatting was not accepted). The relay retries once with
	// formatting stripped, then falls back to a reaction.
	ErrRejected = errors.New("channel: message rejected by platform")
)
