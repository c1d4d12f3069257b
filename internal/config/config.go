// Package config loads the player configuration from flags, environment,
// an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/edumarques81/stellar-video-player/internal/domain/device"
	"github.com/edumarques81/stellar-video-player/internal/domain/playlist"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "STELLAR_VIDEO_"

// Backend names.
const (
	BackendMPD       = "mpd"
	BackendSimulated = "simulated"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

func newVar[T any](flagKey string, def T, usage string) configVar[T] {
	return configVar[T]{
		envKey:       EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagKey, "-", "_")),
		flagKey:      flagKey,
		defaultValue: def,
		usage:        usage,
	}
}

func (c configVar[T]) bind(v *viper.Viper) error {
	v.SetDefault(c.flagKey, c.defaultValue)
	return v.BindEnv(c.flagKey, c.envKey)
}

var (
	portVar              = newVar("port", 3002, "HTTP/socket.io listen port")
	backendVar           = newVar("backend", BackendSimulated, "playback backend (mpd|simulated)")
	mpdHostVar           = newVar("mpd-host", "localhost", "MPD host")
	mpdPortVar           = newVar("mpd-port", 6600, "MPD port")
	mpdPasswordVar       = newVar("mpd-password", "", "MPD password")
	mediaDirVar          = newVar("media-dir", "media", "directory holding videos and icons")
	historyDBVar         = newVar("history-db", "data/history.db", "sqlite history database path (empty disables)")
	deviceFileVar        = newVar("device-file", device.DefaultPath, "file holding the persisted player identity")
	redisAddrVar         = newVar("redis-addr", "", "redis address for state publishing (empty disables)")
	redisPasswordVar     = newVar("redis-password", "", "redis password")
	durationThresholdVar = newVar("duration-threshold", 10.0, "seconds a reported duration must exceed to be trusted")
	rebindDelayVar       = newVar("rebind-delay", 50*time.Millisecond, "delay between detaching and re-attaching the resource")
	frameIntervalVar     = newVar("frame-interval", 16*time.Millisecond, "position polling interval while playing")
	maxExternalVar       = newVar("max-external", 4, "maximum concurrent non-local socket.io clients (0 = unlimited)")
	debugVar             = newVar("debug", false, "enable debug logging")
)

// Config holds the resolved settings.
type Config struct {
	Port              int              `json:"port" validate:"min=1,max=65535"`
	Backend           string           `json:"backend" validate:"oneof=mpd simulated"`
	MPDHost           string           `json:"mpdHost" validate:"required_if=Backend mpd"`
	MPDPort           int              `json:"mpdPort" validate:"min=1,max=65535"`
	MPDPassword       string           `json:"-"`
	MediaDir          string           `json:"mediaDir"`
	HistoryDB         string           `json:"historyDb"`
	DeviceFile        string           `json:"deviceFile" validate:"required"`
	RedisAddr         string           `json:"redisAddr" validate:"omitempty,hostname_port"`
	RedisPassword     string           `json:"-"`
	DurationThreshold float64          `json:"durationThreshold" validate:"gte=0"`
	RebindDelay       time.Duration    `json:"rebindDelay" validate:"gte=0"`
	FrameInterval     time.Duration    `json:"frameInterval" validate:"gt=0"`
	MaxExternal       int              `json:"maxExternal" validate:"gte=0"`
	Debug             bool             `json:"debug"`
	Entries           []playlist.Entry `json:"playlist" validate:"dive"`
}

// RegisterFlags defines every config flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int(portVar.flagKey, portVar.defaultValue, portVar.usage)
	fs.String(backendVar.flagKey, backendVar.defaultValue, backendVar.usage)
	fs.String(mpdHostVar.flagKey, mpdHostVar.defaultValue, mpdHostVar.usage)
	fs.Int(mpdPortVar.flagKey, mpdPortVar.defaultValue, mpdPortVar.usage)
	fs.String(mpdPasswordVar.flagKey, mpdPasswordVar.defaultValue, mpdPasswordVar.usage)
	fs.String(mediaDirVar.flagKey, mediaDirVar.defaultValue, mediaDirVar.usage)
	fs.String(historyDBVar.flagKey, historyDBVar.defaultValue, historyDBVar.usage)
	fs.String(deviceFileVar.flagKey, deviceFileVar.defaultValue, deviceFileVar.usage)
	fs.String(redisAddrVar.flagKey, redisAddrVar.defaultValue, redisAddrVar.usage)
	fs.String(redisPasswordVar.flagKey, redisPasswordVar.defaultValue, redisPasswordVar.usage)
	fs.Float64(durationThresholdVar.flagKey, durationThresholdVar.defaultValue, durationThresholdVar.usage)
	fs.Duration(rebindDelayVar.flagKey, rebindDelayVar.defaultValue, rebindDelayVar.usage)
	fs.Duration(frameIntervalVar.flagKey, frameIntervalVar.defaultValue, frameIntervalVar.usage)
	fs.Int(maxExternalVar.flagKey, maxExternalVar.defaultValue, maxExternalVar.usage)
	fs.Bool(debugVar.flagKey, debugVar.defaultValue, debugVar.usage)
}

// Load resolves the configuration. Precedence is flag, environment, config
// file, default. fs may be nil; configFile may be empty.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	binds := []error{
		portVar.bind(v),
		backendVar.bind(v),
		mpdHostVar.bind(v),
		mpdPortVar.bind(v),
		mpdPasswordVar.bind(v),
		mediaDirVar.bind(v),
		historyDBVar.bind(v),
		deviceFileVar.bind(v),
		redisAddrVar.bind(v),
		redisPasswordVar.bind(v),
		durationThresholdVar.bind(v),
		rebindDelayVar.bind(v),
		frameIntervalVar.bind(v),
		maxExternalVar.bind(v),
		debugVar.bind(v),
	}
	if err := errors.Join(binds...); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Port:              v.GetInt(portVar.flagKey),
		Backend:           strings.ToLower(v.GetString(backendVar.flagKey)),
		MPDHost:           v.GetString(mpdHostVar.flagKey),
		MPDPort:           v.GetInt(mpdPortVar.flagKey),
		MPDPassword:       v.GetString(mpdPasswordVar.flagKey),
		MediaDir:          v.GetString(mediaDirVar.flagKey),
		HistoryDB:         v.GetString(historyDBVar.flagKey),
		DeviceFile:        v.GetString(deviceFileVar.flagKey),
		RedisAddr:         v.GetString(redisAddrVar.flagKey),
		RedisPassword:     v.GetString(redisPasswordVar.flagKey),
		DurationThreshold: v.GetFloat64(durationThresholdVar.flagKey),
		RebindDelay:       v.GetDuration(rebindDelayVar.flagKey),
		FrameInterval:     v.GetDuration(frameIntervalVar.flagKey),
		MaxExternal:       v.GetInt(maxExternalVar.flagKey),
		Debug:             v.GetBool(debugVar.flagKey),
	}
	if err := v.UnmarshalKey("playlist", &cfg.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

// Validate checks field constraints and that the playlist, if any, is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.Entries) > 0 {
		if _, err := playlist.New(c.Entries); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// Playlist builds the configured playlist, or the default one when none is
// configured.
func (c *Config) Playlist() (*playlist.Playlist, error) {
	if len(c.Entries) == 0 {
		return playlist.Default(), nil
	}
	return playlist.New(c.Entries)
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
