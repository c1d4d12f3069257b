// Package rest exposes the player over a JSON HTTP API.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-video-player/internal/domain/device"
	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/infra/history"
	"github.com/edumarques81/stellar-video-player/internal/transport/command"
	"github.com/edumarques81/stellar-video-player/internal/version"
)

// commandRoutes maps POST /api/v1/player/{action} to command names.
var commandRoutes = map[string]string{
	"select":        command.SelectEntry,
	"toggle":        command.Toggle,
	"seek":          command.SeekBy,
	"skip-forward":  command.SkipForward,
	"skip-backward": command.SkipBackward,
	"seek-fraction": command.SeekToFraction,
	"volume":        command.Volume,
	"mute":          command.Mute,
	"reload":        command.Reload,
}

// HistoryReader serves the viewing history. *history.DB implements it.
type HistoryReader interface {
	Recent(limit int) ([]history.Session, error)
	Stats() (*history.Stats, error)
}

// DeviceStore reads and renames the player identity. *device.Service
// implements it.
type DeviceStore interface {
	Info() device.Info
	SetName(name string) (device.Info, error)
}

// renameRequest is the body of PUT /api/v1/device.
type renameRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// Config wires the API to its dependencies. History, Health, Socket and
// MediaDir are optional.
type Config struct {
	Controller command.Controller
	History    HistoryReader
	Device     DeviceStore
	// Health reports the media backend's reachability.
	Health func() error
	// Socket is mounted at /socket.io/.
	Socket http.Handler
	// MediaDir serves playlist icons under /icons/.
	MediaDir string
	Backend  string
}

type api struct {
	cfg        Config
	dispatcher *command.Dispatcher
	validator  *command.Validator
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	a := &api{
		cfg:        cfg,
		dispatcher: command.NewDispatcher(cfg.Controller),
		validator:  command.NewValidator(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(corsMiddleware)

	r.Get("/health", a.health)

	if cfg.Socket != nil {
		r.Handle("/socket.io/*", cfg.Socket)
	}
	if cfg.MediaDir != "" {
		r.Handle("/icons/*", http.StripPrefix("/icons/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, envelope{"data": version.GetInfo()})
		})
		r.Get("/state", a.state)
		r.Get("/playlist", a.playlist)
		r.Get("/history", a.history)
		if cfg.Device != nil {
			r.Get("/device", a.device)
			r.Put("/device", a.renameDevice)
		}
		r.Post("/player/{action}", a.command)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	body := envelope{"status": "ok", "backend": a.cfg.Backend}
	if a.cfg.Health != nil {
		if err := a.cfg.Health(); err != nil {
			body["status"] = "error"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"data": a.cfg.Controller.Snapshot()})
}

type playlistResponse struct {
	Entries  []playlist.Entry `json:"entries"`
	Selected string           `json:"selected"`
}

func (a *api) playlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"data": playlistResponse{
		Entries:  a.cfg.Controller.Playlist().Entries(),
		Selected: a.cfg.Controller.Snapshot().Entry.Source,
	}})
}

type historyResponse struct {
	Sessions []history.Session `json:"sessions"`
	Stats    *history.Stats    `json:"stats"`
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	if a.cfg.History == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history is disabled"))
		return
	}

	limit := history.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	sessions, err := a.cfg.History.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Reading history failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := a.cfg.History.Stats()
	if err != nil {
		log.Error().Err(err).Msg("Reading history stats failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []history.Session{}
	}

	writeJSON(w, http.StatusOK, envelope{"data": historyResponse{Sessions: sessions, Stats: stats}})
}

func (a *api) command(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	name, ok := commandRoutes[action]
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown player action: "+action))
		return
	}

	raw, err := readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	if err := a.dispatcher.Execute(name, raw); err != nil {
		var invalid *command.InvalidError
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusBadRequest, envelope{"errors": invalid.Errors})
		case errors.Is(err, command.ErrMalformedPayload):
			writeError(w, http.StatusUnprocessableEntity, err)
		case errors.Is(err, player.ErrUnknownEntry):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, player.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			log.Error().Err(err).Str("command", name).Msg("Command failed")
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope{"data": a.cfg.Controller.Snapshot()})
}

func (a *api) device(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"data": a.cfg.Device.Info()})
}

func (a *api) renameDevice(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	var req renameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, command.ErrMalformedPayload)
		return
	}
	if errs, ok := a.validator.Validate(req); !ok {
		writeJSON(w, http.StatusBadRequest, envelope{"errors": errs})
		return
	}

	info, err := a.cfg.Device.SetName(req.Name)
	if err != nil {
		if errors.Is(err, device.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log.Error().Err(err).Msg("Renaming player failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"data": info})
}
