package player

import "errors"

var (
	// ErrUnknownEntry is returned when selecting a source not in the playlist.
	ErrUnknownEntry = errors.New("unknown playlist entry")

	// ErrResourceFailure is the single failure kind surfaced to clients.
	ErrResourceFailure = errors.New("failed to load video")

	// ErrClosed is returned when using a synchronizer after Close.
	ErrClosed = errors.New("player is closed")
)
