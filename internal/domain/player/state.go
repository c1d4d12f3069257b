// Package player provides the playback state synchronizer: it mirrors a media
// resource's event stream into observable state and turns user intents into
// resource commands.
package player

import (
	"math"
	"sync"

	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

// Phase is the lifecycle phase of one playlist entry's session.
type Phase string

// Phase constants for a session
const (
	PhaseUnbound Phase = "unbound"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// DefaultVolume is the volume a fresh player starts with.
const DefaultVolume = 1.0

// UnmuteVolume is restored when unmuting at zero volume.
const UnmuteVolume = 0.5

// State is the mutable playback state of the player.
// It is safe for concurrent access.
type State struct {
	mu sync.RWMutex

	sessionID string
	entry     playlist.Entry
	bound     bool

	playing  bool
	position float64
	duration float64 // 0 = unknown
	ready    bool
	err      string

	volume float64
	muted  bool
}

// NewState creates a state with entry selected and nothing bound yet.
func NewState(entry playlist.Entry) *State {
	return &State{
		entry:  entry,
		volume: DefaultVolume,
	}
}

// Reset switches to entry and restarts the session state machine.
// Volume and mute are player-level and survive the reset.
func (s *State) Reset(entry playlist.Entry, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entry = entry
	s.sessionID = sessionID
	s.bound = false
	s.playing = false
	s.position = 0
	s.duration = 0
	s.ready = false
	s.err = ""
}

// SetBound records whether a source is currently attached to the resource.
func (s *State) SetBound(bound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = bound
}

// AcceptDuration stores d if gate accepts it over the current duration.
// Returns true if the duration was stored.
func (s *State) AcceptDuration(gate DurationGate, d float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !gate.Accept(d, s.duration) {
		return false
	}
	s.duration = d
	if s.position > d {
		s.position = d
	}
	return true
}

// MarkReady marks the session ready and clears any error.
func (s *State) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.err = ""
}

// Fail records a resource failure.
func (s *State) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = message
	s.ready = false
	s.playing = false
}

// SetPlaying sets the playing flag.
func (s *State) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = playing
}

// End stops playback and snaps the position to the known duration.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.position = s.duration
}

// SetPosition stores a position, clamped to [0, duration] once duration is known.
func (s *State) SetPosition(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = clampPosition(pos, s.duration)
}

// SetVolume stores the volume and mute flag together.
func (s *State) SetVolume(volume float64, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	s.muted = muted
}

// Entry returns the selected entry.
func (s *State) Entry() playlist.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

// Playing reports whether playback is running.
func (s *State) Playing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// Duration returns the accepted duration (0 if unknown).
func (s *State) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// Volume returns volume and mute flag.
func (s *State) Volume() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume, s.muted
}

// Phase derives the session phase from the state flags.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phaseLocked()
}

func (s *State) phaseLocked() Phase {
	switch {
	case s.err != "":
		return PhaseFailed
	case !s.bound:
		return PhaseUnbound
	case s.ready:
		return PhaseReady
	default:
		return PhaseLoading
	}
}

// Snapshot returns an immutable copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		SessionID:     s.sessionID,
		Entry:         s.entry,
		Title:         s.entry.DisplayTitle(),
		Phase:         s.phaseLocked(),
		Playing:       s.playing,
		Position:      s.position,
		Duration:      s.duration,
		Ready:         s.ready,
		Error:         s.err,
		Volume:        s.volume,
		Muted:         s.muted,
		PositionLabel: FormatTime(s.position),
		DurationLabel: FormatTime(s.duration),
		Progress:      ProgressPercent(s.position, s.duration),
	}
}

// Snapshot is a point-in-time copy of the playback state, shaped for clients.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Entry     playlist.Entry `json:"entry"`
	Title     string         `json:"title"`
	Phase     Phase          `json:"phase"`
	Playing   bool           `json:"playing"`
	Position  float64        `json:"position"`
	Duration  float64        `json:"duration"`
	Ready     bool           `json:"ready"`
	Error     string         `json:"error,omitempty"`
	Volume    float64        `json:"volume"`
	Muted     bool           `json:"muted"`

	PositionLabel string  `json:"positionLabel"`
	DurationLabel string  `json:"durationLabel"`
	Progress      float64 `json:"progress"`
}

// HasError reports whether the session is in the failed state.
func (s Snapshot) HasError() bool {
	return s.Error != ""
}

// EffectiveVolume is the volume a listener actually hears.
func (s Snapshot) EffectiveVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

// SameStructure reports whether two snapshots differ only in position.
// Position moves every frame while playing, so transports use this to tell
// ticks apart from real state changes.
func (s Snapshot) SameStructure(o Snapshot) bool {
	return s.SessionID == o.SessionID &&
		s.Entry == o.Entry &&
		s.Phase == o.Phase &&
		s.Playing == o.Playing &&
		s.Duration == o.Duration &&
		s.Ready == o.Ready &&
		s.Error == o.Error &&
		s.Volume == o.Volume &&
		s.Muted == o.Muted
}

func clampPosition(pos, duration float64) float64 {
	if math.IsNaN(pos) || pos < 0 {
		return 0
	}
	if duration > 0 && !math.IsInf(duration, 0) && pos > duration {
		return duration
	}
	return pos
}
