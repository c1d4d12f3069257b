package mpd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

// ErrNotAttached is returned by playback commands issued with an empty queue.
var ErrNotAttached = errors.New("no source queued in MPD")

// ErrDetachTimeout is returned when MPD does not report a stopped player in time.
var ErrDetachTimeout = errors.New("MPD did not acknowledge detach")

// endTolerance is how close to the end a stop must happen to count as the end
// of the song rather than an external stop.
const endTolerance = 1.5

// Conn is the subset of MPD commands the resource needs. *Client implements it.
type Conn interface {
	Status() (mpd.Attrs, error)
	PlaylistInfo() ([]mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	SeekCur(seconds float64) error
	SetVolume(vol int) error
}

// Resource is a player.Resource backed by MPD's queue. Only the attached
// source is ever queued. State transitions are read from MPD status after
// each watcher event and translated into player signals.
type Resource struct {
	conn Conn
	hub  *player.SignalHub
	now  func() time.Time

	// SettleTimeout bounds AwaitDetached.
	SettleTimeout time.Duration

	mu            sync.Mutex
	source        string
	attached      bool
	pendingDetach bool
	state         string
	elapsed       float64
	elapsedAt     time.Time
	duration      float64
	pendingSeek   float64
	volume        float64
	muted         bool
	lastErr       string
}

// NewResource creates an MPD resource over conn.
func NewResource(conn Conn) *Resource {
	return &Resource{
		conn:          conn,
		hub:           player.NewSignalHub(64),
		now:           time.Now,
		SettleTimeout: 500 * time.Millisecond,
		state:         "stop",
		volume:        1,
	}
}

// Subscribe registers fn for every signal.
func (r *Resource) Subscribe(fn func(player.Signal)) func() {
	return r.hub.Subscribe(fn)
}

// Attach replaces the MPD queue with source and reports its metadata.
func (r *Resource) Attach(source string) error {
	if err := r.conn.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	if err := r.conn.Add(source); err != nil {
		return fmt.Errorf("add %s: %w", source, err)
	}

	var duration float64
	songs, err := r.conn.PlaylistInfo()
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("Reading queue failed, duration unknown")
	} else if len(songs) > 0 {
		duration = songDuration(songs[0])
	}

	r.mu.Lock()
	r.source = source
	r.attached = true
	r.pendingDetach = false
	r.state = "stop"
	r.elapsed = 0
	r.elapsedAt = r.now()
	r.duration = duration
	r.pendingSeek = 0
	r.lastErr = ""
	r.mu.Unlock()

	log.Debug().Str("source", source).Float64("duration", duration).Msg("MPD source queued")

	r.hub.Emit(
		player.Signal{Kind: player.SignalMetadataLoaded, Duration: duration},
		player.Signal{Kind: player.SignalCanPlay},
	)
	return nil
}

// Detach stops playback and empties the queue.
func (r *Resource) Detach() error {
	r.mu.Lock()
	r.attached = false
	r.pendingDetach = true
	r.source = ""
	r.state = "stop"
	r.elapsed = 0
	r.duration = 0
	r.mu.Unlock()

	if err := r.conn.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := r.conn.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// AwaitDetached blocks until MPD reports a stopped player after a Detach.
// It returns immediately when no detach is pending.
func (r *Resource) AwaitDetached(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pendingDetach
	r.mu.Unlock()
	if !pending {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := r.conn.Status()
		if err == nil && status["state"] == "stop" {
			r.mu.Lock()
			r.pendingDetach = false
			r.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDetachTimeout, err)
			}
			return ErrDetachTimeout
		case <-ticker.C:
		}
	}
}

// Play starts or resumes playback. Signals follow from the watcher.
func (r *Resource) Play() error {
	r.mu.Lock()
	if !r.attached {
		r.mu.Unlock()
		return ErrNotAttached
	}
	state := r.state
	seek := r.pendingSeek
	r.pendingSeek = 0
	r.mu.Unlock()

	if state == "pause" {
		return r.conn.Pause(false)
	}
	if err := r.conn.Play(0); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	if seek > 0 {
		if err := r.conn.SeekCur(seek); err != nil {
			return fmt.Errorf("seek after play: %w", err)
		}
	}
	return nil
}

// Pause pauses playback.
func (r *Resource) Pause() error {
	r.mu.Lock()
	attached := r.attached
	r.mu.Unlock()
	if !attached {
		return ErrNotAttached
	}
	return r.conn.Pause(true)
}

// Position returns the elapsed time, extrapolated while playing.
func (r *Resource) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

func (r *Resource) positionLocked() float64 {
	pos := r.elapsed
	if r.state == "play" {
		pos += r.now().Sub(r.elapsedAt).Seconds()
	}
	if r.duration > 0 {
		pos = lo.Clamp(pos, 0, r.duration)
	}
	return pos
}

// SetPosition seeks the current song. A seek while stopped is applied on the
// next Play, since MPD only seeks a song that is playing or paused.
func (r *Resource) SetPosition(seconds float64) error {
	r.mu.Lock()
	if !r.attached {
		r.mu.Unlock()
		return ErrNotAttached
	}
	if r.duration > 0 {
		seconds = lo.Clamp(seconds, 0, r.duration)
	}
	stopped := r.state == "stop"
	r.elapsed = seconds
	r.elapsedAt = r.now()
	if stopped {
		r.pendingSeek = seconds
	}
	r.mu.Unlock()

	if stopped {
		return nil
	}
	return r.conn.SeekCur(seconds)
}

// Duration returns the song duration, 0 when unknown.
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

// SetVolume sets the mixer volume. While muted the level is only remembered.
func (r *Resource) SetVolume(v float64) error {
	r.mu.Lock()
	r.volume = lo.Clamp(v, 0, 1)
	muted := r.muted
	level := toMixer(r.volume)
	r.mu.Unlock()

	if muted {
		return nil
	}
	return r.conn.SetVolume(level)
}

// Muted reports the emulated mute flag.
func (r *Resource) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

// SetMuted zeroes the mixer or restores the remembered level. MPD has no
// mute of its own.
func (r *Resource) SetMuted(muted bool) error {
	r.mu.Lock()
	if r.muted == muted {
		r.mu.Unlock()
		return nil
	}
	r.muted = muted
	level := toMixer(r.volume)
	r.mu.Unlock()

	if muted {
		level = 0
	}
	return r.conn.SetVolume(level)
}

// Run refreshes the resource on every player or mixer event until events is
// closed or ctx is done.
func (r *Resource) Run(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case subsystem, ok := <-events:
			if !ok {
				return
			}
			if subsystem == "player" || subsystem == "mixer" {
				r.Refresh()
			}
		}
	}
}

// Refresh reads MPD status and emits the signals implied by the change since
// the previous refresh.
func (r *Resource) Refresh() {
	status, err := r.conn.Status()
	if err != nil {
		log.Warn().Err(err).Msg("Reading MPD status failed")
		return
	}

	r.mu.Lock()
	if !r.attached {
		r.mu.Unlock()
		return
	}

	var signals []player.Signal

	if msg := status["error"]; msg != "" && msg != r.lastErr {
		r.lastErr = msg
		signals = append(signals, player.Signal{Kind: player.SignalError, Err: errors.New(msg)})
	}

	if d := parseFloat(status["duration"]); d > 0 && d != r.duration {
		r.duration = d
		signals = append(signals, player.Signal{Kind: player.SignalDurationChanged, Duration: d})
	}

	prevState := r.state
	prevPos := r.positionLocked()
	state := status["state"]
	if state == "" {
		state = "stop"
	}

	switch {
	case state == "play" && prevState != "play":
		signals = append(signals, player.Signal{Kind: player.SignalStarted})
	case state == "pause" && prevState == "play":
		signals = append(signals, player.Signal{Kind: player.SignalPaused})
	case state == "stop" && prevState != "stop":
		if prevState == "play" {
			signals = append(signals, player.Signal{Kind: player.SignalPaused})
		}
		if r.duration > 0 && r.duration-prevPos <= endTolerance {
			signals = append(signals, player.Signal{Kind: player.SignalEnded})
		}
	}

	r.state = state
	if state == "stop" {
		r.elapsed = 0
		if r.duration > 0 && r.duration-prevPos <= endTolerance {
			r.elapsed = r.duration
		}
	} else {
		r.elapsed = parseFloat(status["elapsed"])
	}
	r.elapsedAt = r.now()

	if vol, err := strconv.Atoi(status["volume"]); err == nil && vol >= 0 && !r.muted {
		r.volume = float64(vol) / 100
	}
	r.mu.Unlock()

	if len(signals) > 0 {
		r.hub.Emit(signals...)
	}
}

// Close stops signal delivery.
func (r *Resource) Close() error {
	r.hub.Close()
	return nil
}

// songDuration reads a queue entry's duration, preferring the precise field.
func songDuration(song mpd.Attrs) float64 {
	if d := parseFloat(song["duration"]); d > 0 {
		return d
	}
	return parseFloat(song["Time"])
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func toMixer(v float64) int {
	return int(math.Round(v * 100))
}
