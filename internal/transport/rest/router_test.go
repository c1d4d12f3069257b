package rest_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edumarques81/stellar-video-player/internal/domain/device"
	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/infra/history"
	"github.com/edumarques81/stellar-video-player/internal/transport/rest"
)

// fakeController records commands and returns a fixed snapshot.
type fakeController struct {
	pl    *playlist.Playlist
	snap  player.Snapshot
	calls []string
	err   error
}

func newFakeController() *fakeController {
	pl := playlist.Default()
	return &fakeController{
		pl: pl,
		snap: player.Snapshot{
			SessionID: "s1",
			Entry:     pl.First(),
			Title:     pl.First().DisplayTitle(),
			Phase:     player.PhaseReady,
			Duration:  60,
			Ready:     true,
			Volume:    1,
		},
	}
}

func (f *fakeController) call(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) Snapshot() player.Snapshot     { return f.snap }
func (f *fakeController) Playlist() *playlist.Playlist  { return f.pl }
func (f *fakeController) SelectEntry(string) error      { return f.call("select") }
func (f *fakeController) TogglePlayPause() error        { return f.call("toggle") }
func (f *fakeController) SeekBy(float64) error          { return f.call("seekBy") }
func (f *fakeController) SkipForward() error            { return f.call("skipForward") }
func (f *fakeController) SkipBackward() error           { return f.call("skipBackward") }
func (f *fakeController) SeekToFraction(_, _ float64) error {
	return f.call("seekToFraction")
}
func (f *fakeController) SeekToFractionValue(float64) error { return f.call("seekToFractionValue") }
func (f *fakeController) SetVolume(float64) error           { return f.call("volume") }
func (f *fakeController) ToggleMute() error                 { return f.call("mute") }
func (f *fakeController) Reload() error                     { return f.call("reload") }

type fakeHistory struct {
	sessions []history.Session
	limit    int
	err      error
}

func (f *fakeHistory) Recent(limit int) ([]history.Session, error) {
	f.limit = limit
	return f.sessions, f.err
}

func (f *fakeHistory) Stats() (*history.Stats, error) {
	return &history.Stats{Sessions: len(f.sessions)}, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env map[string]json.RawMessage
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		health     func() error
		wantStatus int
	}{
		{"no check", nil, http.StatusOK},
		{"healthy", func() error { return nil }, http.StatusOK},
		{"backend down", func() error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := rest.NewRouter(rest.Config{Controller: newFakeController(), Health: tt.health, Backend: "simulated"})
			rec, env := do(t, h, http.MethodGet, "/health", "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if string(env["backend"]) != `"simulated"` {
				t.Errorf("backend = %s", env["backend"])
			}
		})
	}
}

func TestVersionAndState(t *testing.T) {
	ctrl := newFakeController()
	h := rest.NewRouter(rest.Config{Controller: ctrl})

	rec, env := do(t, h, http.MethodGet, "/api/v1/version", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env["data"]), "Stellar Video") {
		t.Errorf("version response = %d %s", rec.Code, rec.Body.String())
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap player.Snapshot
	if err := json.Unmarshal(env["data"], &snap); err != nil {
		t.Fatalf("state is not a snapshot: %v", err)
	}
	if snap.Entry.Source != ctrl.snap.Entry.Source || snap.Phase != player.PhaseReady {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPlaylist(t *testing.T) {
	h := rest.NewRouter(rest.Config{Controller: newFakeController()})

	rec, env := do(t, h, http.MethodGet, "/api/v1/playlist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Entries  []playlist.Entry `json:"entries"`
		Selected string           `json:"selected"`
	}
	json.Unmarshal(env["data"], &body)
	if len(body.Entries) != playlist.Default().Len() {
		t.Errorf("entries = %d, want %d", len(body.Entries), playlist.Default().Len())
	}
	if body.Selected != playlist.Default().First().Source {
		t.Errorf("selected = %q", body.Selected)
	}
}

func TestPlayerCommands(t *testing.T) {
	tests := []struct {
		action     string
		body       string
		wantStatus int
		wantCall   string
	}{
		{"select", `{"source":"pokemon_iniciais.mp4"}`, http.StatusOK, "select"},
		{"toggle", ``, http.StatusOK, "toggle"},
		{"seek", `{"delta":10}`, http.StatusOK, "seekBy"},
		{"skip-forward", ``, http.StatusOK, "skipForward"},
		{"skip-backward", ``, http.StatusOK, "skipBackward"},
		{"seek-fraction", `{"offsetX":10,"width":100}`, http.StatusOK, "seekToFraction"},
		{"seek-fraction", `{"fraction":0.5}`, http.StatusOK, "seekToFractionValue"},
		{"volume", `{"value":0.4}`, http.StatusOK, "volume"},
		{"mute", ``, http.StatusOK, "mute"},
		{"reload", ``, http.StatusOK, "reload"},
		{"select", `{}`, http.StatusBadRequest, ""},
		{"volume", `{"value":"loud"}`, http.StatusUnprocessableEntity, ""},
		{"rewind", ``, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.action+tt.body, func(t *testing.T) {
			ctrl := newFakeController()
			h := rest.NewRouter(rest.Config{Controller: ctrl})

			rec, _ := do(t, h, http.MethodPost, "/api/v1/player/"+tt.action, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantCall == "" {
				if len(ctrl.calls) != 0 {
					t.Errorf("unexpected calls %v", ctrl.calls)
				}
				return
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%s]", ctrl.calls, tt.wantCall)
			}
		})
	}
}

func TestPlayerCommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown entry", player.ErrUnknownEntry, http.StatusNotFound},
		{"closed", player.ErrClosed, http.StatusServiceUnavailable},
		{"resource", errors.New("mpd: not playing"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			ctrl.err = tt.err
			h := rest.NewRouter(rest.Config{Controller: ctrl})

			rec, env := do(t, h, http.MethodPost, "/api/v1/player/select", `{"source":"x.mp4"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if _, ok := env["error"]; !ok {
				t.Error("error envelope missing")
			}
		})
	}
}

// brokenBody fails mid-read like a reset connection.
type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestBodyReadErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       io.Reader
		wantStatus int
	}{
		{"command body too large", "/api/v1/player/toggle", strings.NewReader(strings.Repeat("x", 1<<16+1)), http.StatusRequestEntityTooLarge},
		{"command body broken", "/api/v1/player/toggle", brokenBody{}, http.StatusBadRequest},
		{"rename body too large", "/api/v1/device", strings.NewReader(strings.Repeat("x", 1<<16+1)), http.StatusRequestEntityTooLarge},
		{"rename body broken", "/api/v1/device", brokenBody{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			identity, err := device.NewService(filepath.Join(t.TempDir(), "device.json"))
			if err != nil {
				t.Fatal(err)
			}
			h := rest.NewRouter(rest.Config{Controller: ctrl, Device: identity})

			method := http.MethodPost
			if tt.path == "/api/v1/device" {
				method = http.MethodPut
			}
			req := httptest.NewRequest(method, tt.path, tt.body)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(ctrl.calls) != 0 {
				t.Errorf("controller called despite unreadable body: %v", ctrl.calls)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := rest.NewRouter(rest.Config{Controller: newFakeController()})
		rec, _ := do(t, h, http.MethodGet, "/api/v1/history", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("limit", func(t *testing.T) {
		hist := &fakeHistory{sessions: []history.Session{{ID: "s1", StartedAt: time.Now()}}}
		h := rest.NewRouter(rest.Config{Controller: newFakeController(), History: hist})

		rec, env := do(t, h, http.MethodGet, "/api/v1/history?limit=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if hist.limit != 5 {
			t.Errorf("limit = %d, want 5", hist.limit)
		}
		if !strings.Contains(string(env["data"]), `"s1"`) {
			t.Errorf("data = %s", env["data"])
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		h := rest.NewRouter(rest.Config{Controller: newFakeController(), History: &fakeHistory{}})
		rec, _ := do(t, h, http.MethodGet, "/api/v1/history?limit=abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		h := rest.NewRouter(rest.Config{Controller: newFakeController(), History: &fakeHistory{err: errors.New("locked")}})
		rec, _ := do(t, h, http.MethodGet, "/api/v1/history", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestIconsServedFromMediaDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "icon.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	h := rest.NewRouter(rest.Config{Controller: newFakeController(), MediaDir: dir})

	rec, _ := do(t, h, http.MethodGet, "/icons/icon.png", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Errorf("icon response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("icons should carry CORS headers")
	}
}

func TestSocketMounted(t *testing.T) {
	called := false
	socket := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := rest.NewRouter(rest.Config{Controller: newFakeController(), Socket: socket})

	do(t, h, http.MethodGet, "/socket.io/?EIO=4&transport=polling", "")
	if !called {
		t.Error("socket handler should serve /socket.io/")
	}
}

func TestDevice(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := rest.NewRouter(rest.Config{Controller: newFakeController()})
		rec, _ := do(t, h, http.MethodGet, "/api/v1/device", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	svc, err := device.NewService(filepath.Join(t.TempDir(), "device.json"))
	if err != nil {
		t.Fatal(err)
	}
	h := rest.NewRouter(rest.Config{Controller: newFakeController(), Device: svc})

	rec, env := do(t, h, http.MethodGet, "/api/v1/device", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(env["data"]), svc.Info().ID) {
		t.Fatalf("GET device = %d %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"rename", `{"name":"Kitchen"}`, http.StatusOK},
		{"missing name", `{}`, http.StatusBadRequest},
		{"too long", `{"name":"` + strings.Repeat("x", 65) + `"}`, http.StatusBadRequest},
		{"blank name", `{"name":"   "}`, http.StatusBadRequest},
		{"malformed", `{"name":`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPut, "/api/v1/device", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	if svc.Info().Name != "Kitchen" {
		t.Errorf("name = %q, want Kitchen", svc.Info().Name)
	}
}
