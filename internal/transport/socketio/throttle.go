package socketio

import (
	"sync"
	"time"
)

// Trigger identifies what changed.
type Trigger int

const (
	// TriggerState is a structural state change: phase, entry, play/pause,
	// duration, volume.
	TriggerState Trigger = iota
	// TriggerPosition is a position-only change from the frame poller.
	TriggerPosition
	// TriggerPlaylist means the playlist should be pushed again.
	TriggerPlaylist
)

// BroadcastThrottle collapses change notifications into batched broadcasts.
// A flush is scheduled at the end of the trigger's window and is never
// postponed by later triggers, so the 60 fps position stream yields at most
// one state broadcast per position window while structural changes go out
// within the shorter state window.
type BroadcastThrottle struct {
	stateWindow      time.Duration
	positionWindow   time.Duration
	stateCallback    func()
	playlistCallback func()

	mu              sync.Mutex
	pendingState    bool
	pendingPlaylist bool
	timer           *time.Timer
	timerSeq        uint64 // identifies the live timer; older timers skip their flush
	deadline        time.Time
	stopped         bool
}

// NewBroadcastThrottle creates a throttle. stateCallback is called for state
// and position triggers, playlistCallback for playlist triggers.
func NewBroadcastThrottle(stateWindow, positionWindow time.Duration, stateCallback, playlistCallback func()) *BroadcastThrottle {
	return &BroadcastThrottle{
		stateWindow:      stateWindow,
		positionWindow:   positionWindow,
		stateCallback:    stateCallback,
		playlistCallback: playlistCallback,
	}
}

// Trigger records a change and makes sure a flush is scheduled no later than
// the trigger's window from now.
func (t *BroadcastThrottle) Trigger(kind Trigger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	window := t.stateWindow
	switch kind {
	case TriggerPosition:
		window = t.positionWindow
		t.pendingState = true
	case TriggerPlaylist:
		t.pendingState = true
		t.pendingPlaylist = true
	default:
		t.pendingState = true
	}

	due := time.Now().Add(window)
	if t.timer != nil && !t.deadline.After(due) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.deadline = due
	t.timerSeq++
	seq := t.timerSeq
	t.timer = time.AfterFunc(window, func() { t.flush(seq) })
}

// flush fires callbacks for any pending flags and resets them. A timer that
// fired after being replaced does nothing; its replacement flushes instead.
func (t *BroadcastThrottle) flush(seq uint64) {
	t.mu.Lock()
	if t.stopped || seq != t.timerSeq {
		t.mu.Unlock()
		return
	}
	doState := t.pendingState
	doPlaylist := t.pendingPlaylist
	t.pendingState = false
	t.pendingPlaylist = false
	t.timer = nil
	t.mu.Unlock()

	if doPlaylist && t.playlistCallback != nil {
		t.playlistCallback()
	}
	if doState && t.stateCallback != nil {
		t.stateCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (t *BroadcastThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pendingState = false
	t.pendingPlaylist = false
}
