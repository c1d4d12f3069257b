package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
)

// Store is the persistence the recorder writes to. *DB implements it.
type Store interface {
	Begin(s Session) error
	Finish(id string, outcome Outcome, position, duration float64, at time.Time) error
}

// Recorder turns synchronizer changes into history sessions. Subscribe its
// Handle method to a player.Synchronizer.
type Recorder struct {
	store Store
	now   func() time.Time

	mu       sync.Mutex
	current  string
	position float64
	duration float64
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Handle records one change.
func (r *Recorder) Handle(change player.Change) {
	snap := change.State

	r.mu.Lock()
	defer r.mu.Unlock()

	switch change.Reason {
	case player.ReasonSelected:
		r.finishLocked(player.ReasonSelected, OutcomeAbandoned)
		r.beginLocked(snap)
		return
	case player.ReasonClosed:
		r.trackLocked(snap)
		r.finishLocked(change.Reason, OutcomeAbandoned)
		return
	}

	if snap.SessionID != r.current {
		return
	}
	r.trackLocked(snap)

	switch change.Reason {
	case player.ChangeReason(player.SignalEnded):
		r.finishLocked(change.Reason, OutcomeCompleted)
	case player.ChangeReason(player.SignalError):
		r.finishLocked(change.Reason, OutcomeFailed)
	}
}

func (r *Recorder) beginLocked(snap player.Snapshot) {
	id := snap.SessionID
	if id == "" {
		id = uuid.New().String()
	}

	session := Session{
		ID:        id,
		Source:    snap.Entry.Source,
		Title:     snap.Title,
		StartedAt: r.now(),
		Outcome:   OutcomeOpen,
	}
	if err := r.store.Begin(session); err != nil {
		log.Warn().Err(err).Str("source", session.Source).Msg("Recording session start failed")
	}

	r.current = id
	r.position = 0
	r.duration = 0
}

func (r *Recorder) trackLocked(snap player.Snapshot) {
	if snap.SessionID != r.current {
		return
	}
	r.position = snap.Position
	if snap.Duration > 0 {
		r.duration = snap.Duration
	}
}

func (r *Recorder) finishLocked(reason player.ChangeReason, outcome Outcome) {
	if r.current == "" {
		return
	}

	if err := r.store.Finish(r.current, outcome, r.position, r.duration, r.now()); err != nil {
		log.Warn().Err(err).Str("session", r.current).Msg("Recording session end failed")
	} else {
		log.Debug().
			Str("session", r.current).
			Str("reason", string(reason)).
			Str("outcome", string(outcome)).
			Msg("Session recorded")
	}
	r.current = ""
}
