// Package socketio provides the Socket.io server for player clients.
package socketio

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
	"github.com/edumarques81/stellar-video-player/internal/transport/command"
)

// Default broadcast windows.
const (
	DefaultStateWindow    = 20 * time.Millisecond
	DefaultPositionWindow = 250 * time.Millisecond
	DefaultMaxExternal    = 4
)

// commandEvents are the client events forwarded to the command dispatcher.
var commandEvents = []string{
	command.SelectEntry,
	command.Toggle,
	command.SeekBy,
	command.SkipForward,
	command.SkipBackward,
	command.SeekToFraction,
	command.Volume,
	command.Mute,
	command.Reload,
}

// Options configures the server.
type Options struct {
	StateWindow    time.Duration
	PositionWindow time.Duration
	MaxExternal    int
}

// ErrorPayload is emitted as pushError when a command fails.
type ErrorPayload struct {
	Command string                    `json:"command"`
	Message string                    `json:"message"`
	Fields  []command.ValidationError `json:"fields,omitempty"`
}

// PlaylistPayload is emitted as pushPlaylist.
type PlaylistPayload struct {
	Entries  []playlist.Entry `json:"entries"`
	Selected string           `json:"selected"`
}

// Server handles Socket.io connections and events.
type Server struct {
	io         *socket.Server
	ctrl       command.Controller
	dispatcher *command.Dispatcher
	limiter    *ConnectionLimiter
	throttle   *BroadcastThrottle

	mu      sync.RWMutex
	clients map[string]*socket.Socket

	stateMu   sync.Mutex
	lastState *player.Snapshot
}

// NewServer creates a new Socket.io server driving ctrl.
func NewServer(ctrl command.Controller, opts Options) (*Server, error) {
	if opts.StateWindow <= 0 {
		opts.StateWindow = DefaultStateWindow
	}
	if opts.PositionWindow <= 0 {
		opts.PositionWindow = DefaultPositionWindow
	}

	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetPingTimeout(20 * time.Second)
	ioOpts.SetPingInterval(25 * time.Second)
	ioOpts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:         socket.NewServer(nil, ioOpts),
		ctrl:       ctrl,
		dispatcher: command.NewDispatcher(ctrl),
		limiter:    NewConnectionLimiter(opts.MaxExternal),
		clients:    make(map[string]*socket.Socket),
	}
	s.throttle = NewBroadcastThrottle(opts.StateWindow, opts.PositionWindow, s.BroadcastState, s.BroadcastPlaylist)

	s.setupHandlers()
	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if _, evicted := s.limiter.TryAdd(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushPlaylist(client)
			s.pushState(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("getPlaylist", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getPlaylist")
			s.pushPlaylist(client)
		})

		for _, name := range commandEvents {
			client.On(name, func(args ...any) {
				s.handleCommand(client, name, args)
			})
		}
	})
}

// handleCommand runs one command event and reports failures to the sender.
func (s *Server) handleCommand(client *socket.Socket, name string, args []any) {
	clientID := string(client.Id())

	var arg any
	if len(args) > 0 {
		arg = args[0]
	}
	raw, err := normalizePayload(name, arg)
	if err != nil {
		log.Warn().Err(err).Str("id", clientID).Str("command", name).Msg("Unreadable payload")
		client.Emit("pushError", ErrorPayload{Command: name, Message: err.Error()})
		return
	}

	log.Debug().Str("id", clientID).Str("command", name).RawJSON("payload", raw).Msg("Command received")

	if err := s.dispatcher.Execute(name, raw); err != nil {
		log.Error().Err(err).Str("command", name).Msg("Command failed")
		client.Emit("pushError", errorPayload(name, err))
	}
}

// normalizePayload turns a socket argument into the JSON object the
// dispatcher expects. Bare values are accepted for single-field commands.
func normalizePayload(name string, arg any) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return []byte("{}"), nil
	case float64:
		switch name {
		case command.Volume:
			return json.Marshal(map[string]float64{"value": v})
		case command.SeekBy:
			return json.Marshal(map[string]float64{"delta": v})
		case command.SeekToFraction:
			return json.Marshal(map[string]float64{"fraction": v})
		}
	case string:
		if name == command.SelectEntry {
			return json.Marshal(map[string]string{"source": v})
		}
	case map[string]any:
		return json.Marshal(v)
	}
	// Acknowledgement callbacks and other values carry no payload.
	return []byte("{}"), nil
}

func errorPayload(name string, err error) ErrorPayload {
	p := ErrorPayload{Command: name, Message: err.Error()}
	var invalid *command.InvalidError
	if errors.As(err, &invalid) {
		p.Fields = invalid.Errors
	}
	return p
}

// evict disconnects a client displaced by a newer remote viewer.
func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if !ok {
		return
	}

	log.Info().Str("id", clientID).Msg("Evicting oldest remote client")
	client.Emit("pushError", ErrorPayload{Message: "disconnected: too many remote viewers"})
	client.Disconnect(true)
}

// Handle receives synchronizer changes and schedules broadcasts.
func (s *Server) Handle(change player.Change) {
	switch change.Reason {
	case player.ReasonPosition:
		s.throttle.Trigger(TriggerPosition)
	case player.ReasonSelected:
		s.throttle.Trigger(TriggerPlaylist)
	default:
		s.throttle.Trigger(TriggerState)
	}
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", s.ctrl.Snapshot())
}

// pushPlaylist sends the playlist to a client.
func (s *Server) pushPlaylist(client *socket.Socket) {
	client.Emit("pushPlaylist", s.playlistPayload())
}

func (s *Server) playlistPayload() PlaylistPayload {
	return PlaylistPayload{
		Entries:  s.ctrl.Playlist().Entries(),
		Selected: s.ctrl.Snapshot().Entry.Source,
	}
}

// BroadcastState sends state to all connected clients unless nothing changed
// since the previous broadcast.
func (s *Server) BroadcastState() {
	state := s.ctrl.Snapshot()
	if s.isStateSame(state) {
		return
	}
	s.saveLastState(state)

	s.io.Emit("pushState", state)

	if log.Debug().Enabled() {
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().
			Str("phase", string(state.Phase)).
			Str("position", state.PositionLabel).
			Int("clients", clientCount).
			Msg("Broadcast state")
	}
}

// BroadcastPlaylist sends the playlist to all connected clients.
func (s *Server) BroadcastPlaylist() {
	s.io.Emit("pushPlaylist", s.playlistPayload())
}

func (s *Server) isStateSame(state player.Snapshot) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastState != nil &&
		s.lastState.SameStructure(state) &&
		s.lastState.Position == state.Position
}

func (s *Server) saveLastState(state player.Snapshot) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastState = &state
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops broadcasting and closes the Socket.io server.
func (s *Server) Close() error {
	s.throttle.Stop()
	s.io.Close(nil)
	return nil
}
