package player

import "context"

// SignalKind identifies an event raised by a media resource.
type SignalKind string

// Signals a media resource raises
const (
	SignalMetadataLoaded  SignalKind = "metadata-loaded"
	SignalDurationChanged SignalKind = "duration-changed"
	SignalCanPlay         SignalKind = "can-play"
	SignalStarted         SignalKind = "playback-started"
	SignalPaused          SignalKind = "playback-paused"
	SignalEnded           SignalKind = "playback-ended"
	SignalError           SignalKind = "error"
)

// Signal is one event from a media resource.
type Signal struct {
	Kind SignalKind
	// Duration is the duration the resource reports with the signal, in seconds.
	// Only meaningful for metadata-loaded and duration-changed.
	Duration float64
	// Err carries the native failure for error signals, if any.
	Err error
}

// Resource is the media playback backend the synchronizer drives.
// All decoding, buffering and output is the resource's business.
//
// Implementations must not deliver signals synchronously from inside a
// command call; the synchronizer never holds its lock while calling out,
// but listeners may call back into the resource.
type Resource interface {
	Attach(source string) error
	Detach() error

	Play() error
	Pause() error

	Position() float64
	SetPosition(seconds float64) error
	Duration() float64

	Volume() float64
	SetVolume(v float64) error
	Muted() bool
	SetMuted(muted bool) error

	// Subscribe registers fn for every signal until unsubscribe is called.
	Subscribe(fn func(Signal)) (unsubscribe func())
}

// DetachAwaiter is implemented by resources that can acknowledge that a
// detached source is fully torn down. When available it replaces the fixed
// rebind delay.
type DetachAwaiter interface {
	AwaitDetached(ctx context.Context) error
}
