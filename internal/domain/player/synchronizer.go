package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

// DefaultRebindDelay is how long the synchronizer waits after detaching a
// source before attaching the next one.
const DefaultRebindDelay = 50 * time.Millisecond

// SkipSeconds is the step of the skip forward/backward controls.
const SkipSeconds = 10.0

// ChangeReason says what caused a state change.
type ChangeReason string

// Reasons reported to change listeners. Signal-driven changes use the
// signal kind as the reason.
const (
	ReasonSelected ChangeReason = "selected"
	ReasonBound    ChangeReason = "bound"
	ReasonPosition ChangeReason = "position"
	ReasonSeek     ChangeReason = "seek"
	ReasonVolume   ChangeReason = "volume"
	ReasonMute     ChangeReason = "mute"
	ReasonClosed   ChangeReason = "closed"
)

// Change is delivered to listeners after every state change.
type Change struct {
	Reason ChangeReason
	State  Snapshot
}

// Options configures a Synchronizer.
type Options struct {
	DurationThreshold float64
	RebindDelay       time.Duration
	FrameInterval     time.Duration
	NewSessionID      func() string
}

// Option mutates Options.
type Option func(*Options)

// WithDurationThreshold sets the duration acceptance threshold in seconds.
func WithDurationThreshold(seconds float64) Option {
	return func(o *Options) { o.DurationThreshold = seconds }
}

// WithRebindDelay sets the delay between detaching and attaching sources.
func WithRebindDelay(d time.Duration) Option {
	return func(o *Options) { o.RebindDelay = d }
}

// WithFrameInterval sets the position polling interval.
func WithFrameInterval(d time.Duration) Option {
	return func(o *Options) { o.FrameInterval = d }
}

// WithSessionIDs overrides session ID generation.
func WithSessionIDs(fn func() string) Option {
	return func(o *Options) { o.NewSessionID = fn }
}

// Synchronizer keeps a State consistent with a Resource.
//
// The resource's own signals are the only source of truth: commands are
// forwarded to the resource and their effect is observed when the
// matching signal arrives. Every entry selection starts a new session with
// a new generation; signals, poll ticks and rebinds carrying an older
// generation are dropped.
type Synchronizer struct {
	resource Resource
	playlist *playlist.Playlist
	state    *State
	gate     DurationGate
	poller   *FramePoller

	rebindDelay  time.Duration
	newSessionID func() string

	mu           sync.Mutex
	bindMu       sync.Mutex // serializes resource Attach with Detach
	generation   uint64
	mounted      bool
	closed       bool
	attached     bool
	unsubscribe  func()
	rebindCancel context.CancelFunc

	listenersMu  sync.RWMutex
	listeners    map[uint64]func(Change)
	nextListener uint64
}

// NewSynchronizer creates a synchronizer over resource for the given playlist.
// Nothing is attached until Mount is called.
func NewSynchronizer(resource Resource, pl *playlist.Playlist, opts ...Option) *Synchronizer {
	o := Options{
		DurationThreshold: DefaultDurationThreshold,
		RebindDelay:       DefaultRebindDelay,
		FrameInterval:     DefaultFrameInterval,
		NewSessionID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Synchronizer{
		resource:     resource,
		playlist:     pl,
		state:        NewState(pl.First()),
		gate:         NewDurationGate(o.DurationThreshold),
		poller:       NewFramePoller(o.FrameInterval),
		rebindDelay:  o.RebindDelay,
		newSessionID: o.NewSessionID,
		listeners:    make(map[uint64]func(Change)),
	}
}

// Playlist returns the playlist the synchronizer serves.
func (s *Synchronizer) Playlist() *playlist.Playlist {
	return s.playlist
}

// Snapshot returns the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// Polling reports whether the position polling loop is active.
func (s *Synchronizer) Polling() bool {
	return s.poller.Running()
}

// Subscribe registers fn for every state change until unsubscribe is called.
// fn is called without any synchronizer lock held and may issue commands.
func (s *Synchronizer) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.listenersMu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// changeLocked captures the state for reason. It must be called in the
// critical section that made the change so the snapshot matches the reason.
func (s *Synchronizer) changeLocked(reason ChangeReason) Change {
	return Change{Reason: reason, State: s.state.Snapshot()}
}

func (s *Synchronizer) notify(change Change) {
	s.listenersMu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// Mount selects the first playlist entry and binds the resource to it.
func (s *Synchronizer) Mount() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	teardown := s.beginSessionLocked(s.playlist.First())
	change := s.changeLocked(ReasonSelected)
	s.mu.Unlock()

	log.Info().Str("source", s.playlist.First().Source).Msg("Player mounted")
	teardown()
	s.notify(change)
	return nil
}

// SelectEntry switches to the entry with the given source. Selecting the
// entry that is already selected does nothing.
func (s *Synchronizer) SelectEntry(source string) error {
	entry, ok := s.playlist.Find(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, source)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mounted && s.state.Entry().Source == source {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	teardown := s.beginSessionLocked(entry)
	change := s.changeLocked(ReasonSelected)
	s.mu.Unlock()

	log.Info().Str("source", source).Str("title", entry.Title).Msg("Entry selected")
	teardown()
	s.notify(change)
	return nil
}

// Reload restarts the bind sequence for the selected entry. It is the
// recovery path out of the failed phase.
func (s *Synchronizer) Reload() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mounted = true
	entry := s.state.Entry()
	teardown := s.beginSessionLocked(entry)
	change := s.changeLocked(ReasonSelected)
	s.mu.Unlock()

	log.Info().Str("source", entry.Source).Msg("Reloading entry")
	teardown()
	s.notify(change)
	return nil
}

// beginSessionLocked invalidates the current session, resets state for entry
// and returns the work that must run without s.mu held: releasing the old
// binding and scheduling the new one.
func (s *Synchronizer) beginSessionLocked(entry playlist.Entry) func() {
	s.generation++
	gen := s.generation

	unsubscribe := s.unsubscribe
	wasAttached := s.attached
	s.unsubscribe = nil
	s.attached = false

	s.poller.Stop()
	if s.rebindCancel != nil {
		s.rebindCancel()
	}

	s.state.Reset(entry, s.newSessionID())

	ctx, cancel := context.WithCancel(context.Background())
	s.rebindCancel = cancel

	return func() {
		if unsubscribe != nil {
			unsubscribe()
		}
		if wasAttached {
			s.bindMu.Lock()
			if err := s.resource.Detach(); err != nil {
				log.Warn().Err(err).Msg("Detach failed")
			}
			s.bindMu.Unlock()
		}
		go s.rebind(ctx, gen, entry.Source)
	}
}

// rebind attaches source once the previous source has settled.
func (s *Synchronizer) rebind(ctx context.Context, gen uint64, source string) {
	if awaiter, ok := s.resource.(DetachAwaiter); ok {
		if err := awaiter.AwaitDetached(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Waiting for detach failed, attaching anyway")
		}
	} else {
		timer := time.NewTimer(s.rebindDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.unsubscribe = s.resource.Subscribe(func(sig Signal) {
		s.handleSignal(gen, sig)
	})
	s.attached = true
	s.state.SetBound(true)
	volume, muted := s.state.Volume()
	change := s.changeLocked(ReasonBound)
	s.mu.Unlock()

	s.notify(change)

	if err := s.attach(gen, source, volume, muted); err != nil {
		log.Error().Err(err).Str("source", source).Msg("Attach failed")
		s.handleSignal(gen, Signal{Kind: SignalError, Err: err})
	}
}

// attach restores the volume and attaches source, unless session gen was
// superseded or closed in the meantime. Teardown detaches under the same
// bindMu, so a superseded session can never attach after its detach.
func (s *Synchronizer) attach(gen uint64, source string, volume float64, muted bool) error {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if !s.current(gen) {
		log.Debug().Str("source", source).Uint64("generation", gen).Msg("Skipping attach of superseded source")
		return nil
	}

	log.Debug().Str("source", source).Uint64("generation", gen).Msg("Attaching source")
	if err := s.resource.SetVolume(volume); err != nil {
		log.Warn().Err(err).Msg("Restoring volume failed")
	}
	if err := s.resource.SetMuted(muted); err != nil {
		log.Warn().Err(err).Msg("Restoring mute failed")
	}
	if !s.current(gen) {
		log.Debug().Str("source", source).Uint64("generation", gen).Msg("Skipping attach of superseded source")
		return nil
	}
	return s.resource.Attach(source)
}

// current reports whether gen is still the live, open session.
func (s *Synchronizer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.generation
}

// handleSignal reconciles one resource signal into the state.
func (s *Synchronizer) handleSignal(gen uint64, sig Signal) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		log.Debug().Str("signal", string(sig.Kind)).Msg("Dropping stale signal")
		return
	}

	changed := true
	switch sig.Kind {
	case SignalMetadataLoaded:
		if s.state.AcceptDuration(s.gate, sig.Duration) {
			s.state.MarkReady()
		} else {
			changed = false
		}
	case SignalDurationChanged:
		changed = s.state.AcceptDuration(s.gate, sig.Duration)
	case SignalCanPlay:
		s.state.MarkReady()
	case SignalStarted:
		s.state.SetPlaying(true)
		s.poller.Start(s.tickFor(gen))
	case SignalPaused:
		s.state.SetPlaying(false)
		s.poller.Stop()
	case SignalEnded:
		s.state.End()
		s.poller.Stop()
	case SignalError:
		s.state.Fail(ErrResourceFailure.Error())
		s.poller.Stop()
	default:
		changed = false
	}
	change := s.changeLocked(ChangeReason(sig.Kind))
	s.mu.Unlock()

	if sig.Kind == SignalError {
		log.Warn().Err(sig.Err).Str("source", change.State.Entry.Source).Msg("Media resource failed")
	}
	if changed {
		s.notify(change)
	}
}

// tickFor returns the per-frame position poll for session gen.
func (s *Synchronizer) tickFor(gen uint64) func() {
	return func() {
		pos := s.resource.Position()

		s.mu.Lock()
		if s.closed || gen != s.generation || !s.state.Playing() {
			s.mu.Unlock()
			return
		}
		s.state.SetPosition(pos)
		change := s.changeLocked(ReasonPosition)
		s.mu.Unlock()

		s.notify(change)
	}
}

// session returns the current generation if a source is attached.
func (s *Synchronizer) session() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.attached && !s.closed
}

// TogglePlayPause asks the resource to pause if playing, play otherwise.
// The playing flag only changes when the resource confirms.
func (s *Synchronizer) TogglePlayPause() error {
	if _, ok := s.session(); !ok {
		log.Debug().Msg("Toggle ignored, no source attached")
		return nil
	}

	if s.state.Playing() {
		if err := s.resource.Pause(); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		return nil
	}
	if err := s.resource.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// SeekBy moves the position by delta seconds, clamped to [0, duration].
func (s *Synchronizer) SeekBy(delta float64) error {
	gen, ok := s.session()
	if !ok {
		log.Debug().Float64("delta", delta).Msg("Seek ignored, no source attached")
		return nil
	}

	target := lo.Clamp(s.resource.Position()+delta, 0, s.state.Duration())
	return s.seek(gen, target)
}

// SkipForward seeks SkipSeconds ahead.
func (s *Synchronizer) SkipForward() error {
	return s.SeekBy(SkipSeconds)
}

// SkipBackward seeks SkipSeconds back.
func (s *Synchronizer) SkipBackward() error {
	return s.SeekBy(-SkipSeconds)
}

// SeekToFraction seeks to the point of a click offsetX pixels into a
// progress track width pixels wide.
func (s *Synchronizer) SeekToFraction(offsetX, width float64) error {
	if width <= 0 {
		return nil
	}
	return s.SeekToFractionValue(offsetX / width)
}

// SeekToFractionValue seeks to fraction of the known duration. Does nothing
// while the duration is unknown.
func (s *Synchronizer) SeekToFractionValue(fraction float64) error {
	gen, ok := s.session()
	if !ok {
		log.Debug().Float64("fraction", fraction).Msg("Seek ignored, no source attached")
		return nil
	}

	duration := s.state.Duration()
	if duration <= 0 {
		return nil
	}
	return s.seek(gen, lo.Clamp(fraction, 0, 1)*duration)
}

func (s *Synchronizer) seek(gen uint64, target float64) error {
	if err := s.resource.SetPosition(target); err != nil {
		return fmt.Errorf("seek to %.2f: %w", target, err)
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.state.SetPosition(target)
	change := s.changeLocked(ReasonSeek)
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// SetVolume sets the volume in [0,1]. Zero also mutes.
func (s *Synchronizer) SetVolume(v float64) error {
	if _, ok := s.session(); !ok {
		log.Debug().Float64("volume", v).Msg("Volume ignored, no source attached")
		return nil
	}

	v = lo.Clamp(v, 0, 1)
	muted := v == 0

	if err := s.resource.SetVolume(v); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	if err := s.resource.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state.SetVolume(v, muted)
	change := s.changeLocked(ReasonVolume)
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// ToggleMute flips the mute flag. Unmuting at zero volume restores
// UnmuteVolume so the change is audible.
func (s *Synchronizer) ToggleMute() error {
	if _, ok := s.session(); !ok {
		log.Debug().Msg("Mute ignored, no source attached")
		return nil
	}

	volume, muted := s.state.Volume()
	muted = !muted

	if err := s.resource.SetMuted(muted); err != nil {
		return fmt.Errorf("set muted: %w", err)
	}
	if !muted && volume == 0 {
		volume = UnmuteVolume
		if err := s.resource.SetVolume(volume); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state.SetVolume(volume, muted)
	change := s.changeLocked(ReasonMute)
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// Close tears the player down: listeners on the resource are released, the
// polling loop and any pending rebind are cancelled, and the source is
// detached. The state is not mutated afterwards.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++

	unsubscribe := s.unsubscribe
	wasAttached := s.attached
	s.unsubscribe = nil
	s.attached = false

	s.poller.Stop()
	if s.rebindCancel != nil {
		s.rebindCancel()
		s.rebindCancel = nil
	}
	s.state.SetBound(false)
	s.state.SetPlaying(false)
	change := s.changeLocked(ReasonClosed)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	var err error
	if wasAttached {
		s.bindMu.Lock()
		err = s.resource.Detach()
		s.bindMu.Unlock()
	}

	log.Info().Msg("Player closed")
	s.notify(change)
	return err
}
