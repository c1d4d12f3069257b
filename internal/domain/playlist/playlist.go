// Package playlist provides the static, ordered list of videos the player offers.
package playlist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrEmptyPlaylist is returned when a playlist has no entries.
	ErrEmptyPlaylist = errors.New("playlist has no entries")

	// ErrDuplicateEntry is returned when two entries share a source.
	ErrDuplicateEntry = errors.New("duplicate playlist entry")

	// ErrMissingSource is returned when an entry has no source locator.
	ErrMissingSource = errors.New("playlist entry has no source")
)

// Entry is a single video in the playlist.
type Entry struct {
	Source string `json:"source" mapstructure:"source"`
	Title  string `json:"title" mapstructure:"title"`
	Icon   string `json:"icon" mapstructure:"icon"`
	// Duration is a hint in seconds, only used by the simulated backend.
	Duration float64 `json:"duration,omitempty" mapstructure:"duration"`
}

// DisplayTitle returns the title, falling back to the source file name.
func (e Entry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	parts := strings.Split(e.Source, "/")
	return parts[len(parts)-1]
}

// Playlist is an immutable ordered list of entries.
// Insertion order is display order.
type Playlist struct {
	entries []Entry
}

// New validates entries and builds a playlist from them.
func New(entries []Entry) (*Playlist, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyPlaylist
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Source) == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrMissingSource)
		}
		if seen[e.Source] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Source)
		}
		seen[e.Source] = true
	}

	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return &Playlist{entries: copied}, nil
}

// Default returns the built-in playlist used when none is configured.
func Default() *Playlist {
	p, _ := New([]Entry{
		{Source: "pokemon_Abertura.mp4", Title: "Pokenon Inicio", Icon: "pokémon.png"},
		{Source: "pokemon_iniciais.mp4", Title: "Todos os Iniciais", Icon: "pokémon.png"},
		{Source: "pokemon_lendarios.mp4", Title: "Todos os Lendario", Icon: "pokémon.png"},
	})
	return p
}

// First returns the first entry.
func (p *Playlist) First() Entry {
	return p.entries[0]
}

// Find looks up an entry by its source locator.
func (p *Playlist) Find(source string) (Entry, bool) {
	return lo.Find(p.entries, func(e Entry) bool {
		return e.Source == source
	})
}

// IndexOf returns the position of source in the playlist, or -1.
func (p *Playlist) IndexOf(source string) int {
	_, idx, ok := lo.FindIndexOf(p.entries, func(e Entry) bool {
		return e.Source == source
	})
	if !ok {
		return -1
	}
	return idx
}

// At returns the entry at index i.
func (p *Playlist) At(i int) (Entry, bool) {
	if i < 0 || i >= len(p.entries) {
		return Entry{}, false
	}
	return p.entries[i], true
}

// Entries returns a copy of all entries.
func (p *Playlist) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Sources returns the source locators in display order.
func (p *Playlist) Sources() []string {
	return lo.Map(p.entries, func(e Entry, _ int) string {
		return e.Source
	})
}

// Len returns the number of entries.
func (p *Playlist) Len() int {
	return len(p.entries)
}
