package playlist_test

import (
	"errors"
	"testing"

	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

func TestNewRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []playlist.Entry
		wantErr error
	}{
		{"empty", nil, playlist.ErrEmptyPlaylist},
		{"missing source", []playlist.Entry{{Title: "No source"}}, playlist.ErrMissingSource},
		{"blank source", []playlist.Entry{{Source: "  "}}, playlist.ErrMissingSource},
		{"duplicate", []playlist.Entry{{Source: "a.mp4"}, {Source: "a.mp4"}}, playlist.ErrDuplicateEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := playlist.New(tt.entries)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlaylistPreservesOrder(t *testing.T) {
	p, err := playlist.New([]playlist.Entry{
		{Source: "b.mp4", Title: "B"},
		{Source: "a.mp4", Title: "A"},
		{Source: "c.mp4", Title: "C"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := p.Sources()
	want := []string{"b.mp4", "a.mp4", "c.mp4"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if p.First().Source != "b.mp4" {
		t.Errorf("First() = %q, want %q", p.First().Source, "b.mp4")
	}
	if p.IndexOf("c.mp4") != 2 {
		t.Errorf("IndexOf(c.mp4) = %d, want 2", p.IndexOf("c.mp4"))
	}
	if p.IndexOf("missing.mp4") != -1 {
		t.Errorf("IndexOf(missing.mp4) = %d, want -1", p.IndexOf("missing.mp4"))
	}
}

func TestPlaylistFind(t *testing.T) {
	p := playlist.Default()

	entry, ok := p.Find("pokemon_iniciais.mp4")
	if !ok {
		t.Fatal("expected to find pokemon_iniciais.mp4")
	}
	if entry.Title != "Todos os Iniciais" {
		t.Errorf("Title = %q, want %q", entry.Title, "Todos os Iniciais")
	}

	if _, ok := p.Find("nope.mp4"); ok {
		t.Error("Find should not return unknown sources")
	}
}

func TestPlaylistEntriesIsACopy(t *testing.T) {
	p := playlist.Default()

	entries := p.Entries()
	entries[0].Title = "changed"

	if p.First().Title == "changed" {
		t.Error("mutating Entries() must not change the playlist")
	}
}

func TestPlaylistAt(t *testing.T) {
	p := playlist.Default()

	if _, ok := p.At(-1); ok {
		t.Error("At(-1) should be out of range")
	}
	if _, ok := p.At(p.Len()); ok {
		t.Error("At(Len()) should be out of range")
	}
	if e, ok := p.At(1); !ok || e.Source != "pokemon_iniciais.mp4" {
		t.Errorf("At(1) = %+v, %v", e, ok)
	}
}

func TestEntryDisplayTitle(t *testing.T) {
	if got := (playlist.Entry{Source: "videos/clip.mp4"}).DisplayTitle(); got != "clip.mp4" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "clip.mp4")
	}
	if got := (playlist.Entry{Source: "clip.mp4", Title: "Clip"}).DisplayTitle(); got != "Clip" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "Clip")
	}
}
