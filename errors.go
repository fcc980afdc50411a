package herald

import "errors"

// Publisher error surface (SPEC_FULL.md §6/§7).
var (
	// ErrNoSocket is returned when the publisher could not create/bind the
	// listening socket, or the subscriber could not create/connect its
	// socket to the publisher.
	ErrNoSocket = errors.New("herald: no socket")

	// ErrTooLarge is returned by Publish when the payload exceeds the
	// publisher's configured buffer size.
	ErrTooLarge = errors.New("herald: message exceeds buffer size")

	// ErrNotRunning is returned by Publish when Init has not succeeded.
	ErrNotRunning = errors.New("herald: publisher not running")
)

// Subscriber error surface (SPEC_FULL.md §6/§7).
var (
	// ErrBadResponse is returned when the publisher's handshake line does
	// not match "<region_name> <buffer_size>\n".
	ErrBadResponse = errors.New("herald: bad handshake response")

	// ErrNoSharedMem is returned when the subscriber could not attach to
	// the region named in the handshake.
	ErrNoSharedMem = errors.New("herald: could not attach shared memory")
)
