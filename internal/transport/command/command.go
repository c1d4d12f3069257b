// Package command maps named player commands with JSON payloads onto the
// player's command interface. The socket.io and REST transports share it so
// both accept the same payloads and report the same validation errors.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edumarques81/stellar-video-player/internal/domain/player"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

// Command names.
const (
	SelectEntry    = "selectEntry"
	Toggle         = "toggle"
	SeekBy         = "seekBy"
	SkipForward    = "skipForward"
	SkipBackward   = "skipBackward"
	SeekToFraction = "seekToFraction"
	Volume         = "volume"
	Mute           = "mute"
	Reload         = "reload"
)

// ErrUnknownCommand is returned for command names the dispatcher does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ErrMalformedPayload is returned when a payload is not valid JSON for the command.
var ErrMalformedPayload = errors.New("malformed payload")

// InvalidError carries the validation failures of a payload.
type InvalidError struct {
	Command string
	Errors  []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Message
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Command, strings.Join(msgs, "; "))
}

// Controller is the player surface commands are applied to.
// *player.Synchronizer implements it.
type Controller interface {
	Snapshot() player.Snapshot
	Playlist() *playlist.Playlist
	SelectEntry(source string) error
	TogglePlayPause() error
	SeekBy(delta float64) error
	SkipForward() error
	SkipBackward() error
	SeekToFraction(offsetX, width float64) error
	SeekToFractionValue(fraction float64) error
	SetVolume(v float64) error
	ToggleMute() error
	Reload() error
}

// SelectRequest selects a playlist entry.
type SelectRequest struct {
	Source string `json:"source" validate:"required"`
}

// SeekRequest seeks relative to the current position.
type SeekRequest struct {
	Delta *float64 `json:"delta" validate:"required"`
}

// FractionRequest seeks to a fraction of the duration, either given directly
// or as a click offset within a bar of the given width.
type FractionRequest struct {
	Fraction *float64 `json:"fraction,omitempty" validate:"omitempty,gte=0,lte=1"`
	OffsetX  *float64 `json:"offsetX,omitempty" validate:"required_without=Fraction"`
	Width    *float64 `json:"width,omitempty" validate:"required_without=Fraction"`
}

// VolumeRequest sets the volume. Out of range values are clamped.
type VolumeRequest struct {
	Value *float64 `json:"value" validate:"required"`
}

// Dispatcher validates payloads and applies commands.
type Dispatcher struct {
	ctrl      Controller
	validator *Validator
}

// NewDispatcher creates a dispatcher for ctrl.
func NewDispatcher(ctrl Controller) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, validator: NewValidator()}
}

// Execute runs the named command with its JSON payload. Commands without a
// payload ignore raw.
func (d *Dispatcher) Execute(name string, raw []byte) error {
	switch name {
	case SelectEntry:
		var req SelectRequest
		if err := d.decode(name, raw, &req); err != nil {
			return err
		}
		return d.ctrl.SelectEntry(req.Source)

	case Toggle:
		return d.ctrl.TogglePlayPause()

	case SeekBy:
		var req SeekRequest
		if err := d.decode(name, raw, &req); err != nil {
			return err
		}
		return d.ctrl.SeekBy(*req.Delta)

	case SkipForward:
		return d.ctrl.SkipForward()

	case SkipBackward:
		return d.ctrl.SkipBackward()

	case SeekToFraction:
		var req FractionRequest
		if err := d.decode(name, raw, &req); err != nil {
			return err
		}
		if req.Fraction != nil {
			return d.ctrl.SeekToFractionValue(*req.Fraction)
		}
		return d.ctrl.SeekToFraction(*req.OffsetX, *req.Width)

	case Volume:
		var req VolumeRequest
		if err := d.decode(name, raw, &req); err != nil {
			return err
		}
		return d.ctrl.SetVolume(*req.Value)

	case Mute:
		return d.ctrl.ToggleMute()

	case Reload:
		return d.ctrl.Reload()
	}

	return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func (d *Dispatcher) decode(name string, raw []byte, dst any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, name, err)
	}
	if errs, ok := d.validator.Validate(dst); !ok {
		return &InvalidError{Command: name, Errors: errs}
	}
	return nil
}
