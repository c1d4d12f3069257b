// Package simulated provides a clock-driven media resource. It behaves like a
// native media element (load latency, metadata, play/pause, end of stream)
// without decoding anything, so the player can run without a media backend.
package simulated

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

var (
	// ErrNoSource is returned by commands issued while nothing is attached.
	ErrNoSource = errors.New("no source attached")

	// ErrNotLoaded is returned when playing before metadata is available.
	ErrNotLoaded = errors.New("source not loaded")

	// ErrUnknownSource is reported when attaching a source not in the catalog.
	ErrUnknownSource = errors.New("unknown source")
)

// DefaultDuration is used for catalog entries without a duration.
const DefaultDuration = 90.0

// Config configures a simulated resource.
type Config struct {
	// Catalog maps sources to their durations in seconds.
	Catalog map[string]float64
	// Broken lists sources that fail to load.
	Broken map[string]bool
	// LoadLatency is the time between Attach and the metadata signals.
	LoadLatency time.Duration
	// Provisional, when set, reports a short provisional duration before the
	// real one, the way streamed sources do.
	Provisional float64
}

// ConfigFromPlaylist builds a catalog from the playlist's duration hints.
func ConfigFromPlaylist(pl *playlist.Playlist, fallback float64) Config {
	if fallback <= 0 {
		fallback = DefaultDuration
	}
	catalog := lo.SliceToMap(pl.Entries(), func(e playlist.Entry) (string, float64) {
		if e.Duration > 0 {
			return e.Source, e.Duration
		}
		return e.Source, fallback
	})
	return Config{
		Catalog:     catalog,
		Broken:      map[string]bool{},
		LoadLatency: 150 * time.Millisecond,
	}
}

// Resource is a simulated media element.
type Resource struct {
	cfg Config
	hub *player.SignalHub

	mu        sync.Mutex
	gen       uint64
	source    string
	duration  float64
	loaded    bool
	playing   bool
	basePos   float64
	startedAt time.Time
	loadTimer *time.Timer
	endTimer  *time.Timer
	volume    float64
	muted     bool
	closed    bool
}

// NewResource creates a simulated resource and starts its signal dispatcher.
func NewResource(cfg Config) *Resource {
	if cfg.Catalog == nil {
		cfg.Catalog = map[string]float64{}
	}
	if cfg.Broken == nil {
		cfg.Broken = map[string]bool{}
	}

	return &Resource{
		cfg:    cfg,
		hub:    player.NewSignalHub(64),
		volume: 1,
	}
}

// Subscribe registers fn for every signal.
func (r *Resource) Subscribe(fn func(player.Signal)) func() {
	return r.hub.Subscribe(fn)
}

// Attach loads source. Metadata arrives after the configured latency.
func (r *Resource) Attach(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrNoSource
	}

	r.resetLocked()
	r.source = source
	gen := r.gen

	log.Debug().Str("source", source).Msg("Simulated resource loading")

	r.loadTimer = time.AfterFunc(r.cfg.LoadLatency, func() {
		r.finishLoad(gen, source)
	})
	return nil
}

func (r *Resource) finishLoad(gen uint64, source string) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}

	duration, known := r.cfg.Catalog[source]
	if !known || r.cfg.Broken[source] {
		r.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrUnknownSource, source)
		if known {
			err = fmt.Errorf("cannot decode %s", source)
		}
		r.hub.Emit(player.Signal{Kind: player.SignalError, Err: err})
		return
	}

	r.duration = duration
	r.loaded = true
	r.mu.Unlock()

	var signals []player.Signal
	if p := r.cfg.Provisional; p > 0 && p < duration {
		signals = append(signals, player.Signal{Kind: player.SignalMetadataLoaded, Duration: p})
		signals = append(signals, player.Signal{Kind: player.SignalDurationChanged, Duration: duration})
	} else {
		signals = append(signals, player.Signal{Kind: player.SignalMetadataLoaded, Duration: duration})
	}
	signals = append(signals, player.Signal{Kind: player.SignalCanPlay})
	r.hub.Emit(signals...)
}

// Detach unloads the current source.
func (r *Resource) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	return nil
}

// resetLocked invalidates every pending timer of the current source.
func (r *Resource) resetLocked() {
	r.gen++
	if r.loadTimer != nil {
		r.loadTimer.Stop()
		r.loadTimer = nil
	}
	if r.endTimer != nil {
		r.endTimer.Stop()
		r.endTimer = nil
	}
	r.source = ""
	r.duration = 0
	r.loaded = false
	r.playing = false
	r.basePos = 0
}

// Play starts or resumes playback. Playing at the end restarts from zero.
func (r *Resource) Play() error {
	r.mu.Lock()
	if r.source == "" {
		r.mu.Unlock()
		return ErrNoSource
	}
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotLoaded
	}
	if r.playing {
		r.mu.Unlock()
		return nil
	}

	if r.basePos >= r.duration {
		r.basePos = 0
	}
	r.playing = true
	r.startedAt = time.Now()
	r.scheduleEndLocked()
	r.mu.Unlock()

	r.hub.Emit(player.Signal{Kind: player.SignalStarted})
	return nil
}

// Pause pauses playback.
func (r *Resource) Pause() error {
	r.mu.Lock()
	if r.source == "" {
		r.mu.Unlock()
		return ErrNoSource
	}
	if !r.playing {
		r.mu.Unlock()
		return nil
	}

	r.basePos = r.positionLocked()
	r.playing = false
	if r.endTimer != nil {
		r.endTimer.Stop()
		r.endTimer = nil
	}
	r.mu.Unlock()

	r.hub.Emit(player.Signal{Kind: player.SignalPaused})
	return nil
}

func (r *Resource) scheduleEndLocked() {
	if r.endTimer != nil {
		r.endTimer.Stop()
	}
	gen := r.gen
	remaining := time.Duration((r.duration - r.basePos) * float64(time.Second))
	r.endTimer = time.AfterFunc(remaining, func() {
		r.mu.Lock()
		if r.gen != gen || !r.playing {
			r.mu.Unlock()
			return
		}
		r.playing = false
		r.basePos = r.duration
		r.endTimer = nil
		r.mu.Unlock()

		r.hub.Emit(player.Signal{Kind: player.SignalPaused}, player.Signal{Kind: player.SignalEnded})
	})
}

// Position returns the playback position in seconds.
func (r *Resource) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

func (r *Resource) positionLocked() float64 {
	if !r.playing {
		return r.basePos
	}
	pos := r.basePos + time.Since(r.startedAt).Seconds()
	return lo.Clamp(pos, 0, r.duration)
}

// SetPosition seeks to seconds, clamped to the loaded duration.
func (r *Resource) SetPosition(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.source == "" {
		return ErrNoSource
	}
	if !r.loaded {
		return ErrNotLoaded
	}

	r.basePos = lo.Clamp(seconds, 0, r.duration)
	r.startedAt = time.Now()
	if r.playing {
		r.scheduleEndLocked()
	}
	return nil
}

// Duration returns the loaded duration, 0 when unknown.
func (r *Resource) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

// Volume returns the volume in [0,1].
func (r *Resource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// SetVolume sets the volume.
func (r *Resource) SetVolume(v float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = lo.Clamp(v, 0, 1)
	return nil
}

// Muted reports the mute flag.
func (r *Resource) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

// SetMuted sets the mute flag.
func (r *Resource) SetMuted(muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muted = muted
	return nil
}

// Close stops all timers and the dispatcher.
func (r *Resource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.resetLocked()
	r.mu.Unlock()

	r.hub.Close()
	return nil
}
