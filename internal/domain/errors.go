package domain

import "errors"

var (
	// ErrConversationNotOngoing is returned by every command handler once the
	// conversation has ended or failed.
	ErrConversationNotOngoing = errors.New("conversation is not ongoing")
	// ErrUnknownCorrelation is returned when an AI response does not match the
	// request currently in flight. Nothing is mutated.
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	// ErrEventOutOfOrder is returned when an event does not carry the next
	// expected event id.
	ErrEventOutOfOrder = errors.New("event applied out of order")
	// ErrInvalidEvent is returned for events that cannot be applied to the
	// current state or decoded.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidCommand is returned for malformed commands.
	ErrInvalidCommand = errors.New("invalid command")
)

// ErrConcurrentModification is returned by event stores when another writer
// appended to the same conversation since it was loaded.
var ErrConcurrentModification = errors.New("conversation modified concurrently")
