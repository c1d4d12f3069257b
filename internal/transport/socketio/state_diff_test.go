package socketio

import (
	"encoding/json"
	"testing"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/transport/command"
)

func baseSnapshot() player.Snapshot {
	return player.Snapshot{
		SessionID: "s1",
		Entry:     playlist.Entry{Source: "a.mp4", Title: "A"},
		Title:     "A",
		Phase:     player.PhaseReady,
		Playing:   true,
		Position:  12,
		Duration:  60,
		Ready:     true,
		Volume:    1,
	}
}

func TestIsStateSame(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*player.Snapshot)
		same   bool
	}{
		{"identical", func(*player.Snapshot) {}, true},
		{"labels only", func(s *player.Snapshot) { s.PositionLabel = "0:12" }, true},
		{"position", func(s *player.Snapshot) { s.Position = 12.5 }, false},
		{"volume", func(s *player.Snapshot) { s.Volume = 0.5 }, false},
		{"paused", func(s *player.Snapshot) { s.Playing = false }, false},
		{"entry", func(s *player.Snapshot) { s.Entry.Source = "b.mp4" }, false},
		{"error", func(s *player.Snapshot) { s.Error = "failed to load video" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{}
			s.saveLastState(baseSnapshot())

			next := baseSnapshot()
			tt.mutate(&next)
			if got := s.isStateSame(next); got != tt.same {
				t.Errorf("isStateSame = %v, want %v", got, tt.same)
			}
		})
	}
}

func TestIsStateSameWithoutPreviousState(t *testing.T) {
	s := &Server{}
	if s.isStateSame(baseSnapshot()) {
		t.Error("the first state must always be broadcast")
	}
}

func TestNormalizePayload(t *testing.T) {
	tests := []struct {
		name string
		arg  any
		want string
	}{
		{command.Toggle, nil, `{}`},
		{command.Volume, 0.3, `{"value":0.3}`},
		{command.SeekBy, -10.0, `{"delta":-10}`},
		{command.SeekToFraction, 0.5, `{"fraction":0.5}`},
		{command.SelectEntry, "b.mp4", `{"source":"b.mp4"}`},
		{command.SeekToFraction, map[string]any{"offsetX": 10.0, "width": 100.0}, `{"offsetX":10,"width":100}`},
		{command.Mute, func() {}, `{}`},
		{command.Toggle, 1.0, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := normalizePayload(tt.name, tt.arg)
			if err != nil {
				t.Fatalf("normalizePayload failed: %v", err)
			}
			if !jsonEqual(t, raw, []byte(tt.want)) {
				t.Errorf("payload = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestErrorPayloadCarriesValidationFields(t *testing.T) {
	err := &command.InvalidError{
		Command: command.Volume,
		Errors:  []command.ValidationError{{Field: "value", Code: "REQUIRED", Message: "value is required"}},
	}

	p := errorPayload(command.Volume, err)
	if p.Command != command.Volume || len(p.Fields) != 1 || p.Fields[0].Field != "value" {
		t.Errorf("unexpected payload: %+v", p)
	}

	p = errorPayload(command.SelectEntry, player.ErrUnknownEntry)
	if len(p.Fields) != 0 || p.Message == "" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		t.Fatalf("invalid JSON %s: %v", a, err)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		t.Fatalf("invalid JSON %s: %v", b, err)
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return string(ja) == string(jb)
}
