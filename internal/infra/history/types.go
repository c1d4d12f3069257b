package history

import "time"

// Outcome says how a viewing session ended.
type Outcome string

const (
	OutcomeOpen      Outcome = "open"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
)

// Session is one selection of a playlist entry.
type Session struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Title        string     `json:"title"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Outcome      Outcome    `json:"outcome"`
	LastPosition float64    `json:"lastPosition"`
	Duration     float64    `json:"duration"`
}

// Stats summarises the history database.
type Stats struct {
	SchemaVersion  string  `json:"schemaVersion"`
	Sessions       int     `json:"sessions"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	Abandoned      int     `json:"abandoned"`
	WatchedSeconds float64 `json:"watchedSeconds"`
}
