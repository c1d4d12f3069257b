package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/edumarques81/stellar-video-player/internal/config"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/infra/simulated"
)

func TestRenderPlaylist(t *testing.T) {
	pl, err := playlist.New([]playlist.Entry{
		{Source: "intro.mp4", Title: "Intro", Icon: "intro.png", Duration: 75},
		{Source: "videos/outro.mp4"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	renderPlaylist(&buf, pl)
	out := buf.String()

	for _, want := range []string{"TITLE", "Intro", "intro.mp4", "intro.png", "1:15", "outro.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(strings.ToLower(out), "2 entries") {
		t.Errorf("footer missing entry count:\n%s", out)
	}
}

func TestPlaylistCommand(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"playlist"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "pokemon_Abertura.mp4") {
		t.Errorf("default playlist not printed:\n%s", buf.String())
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"playlist", "--backend", "vlc"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected invalid backend to fail")
	}
}

func TestOpenBackend_Simulated(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendSimulated}
	pl := playlist.Default()

	be, err := openBackend(context.Background(), cfg, pl)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer be.close()

	if _, ok := be.resource.(*simulated.Resource); !ok {
		t.Errorf("resource = %T, want *simulated.Resource", be.resource)
	}
	if err := be.health(); err != nil {
		t.Errorf("health: %v", err)
	}
}

func TestOpenBackend_MPDUnreachable(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendMPD, MPDHost: "127.0.0.1", MPDPort: 16601}
	if _, err := openBackend(context.Background(), cfg, playlist.Default()); err == nil {
		t.Fatal("expected connection error")
	}
}
