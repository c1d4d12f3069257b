// Package device gives a player instance a stable identity across restarts,
// so clients and the state bus can tell several players apart.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrEmptyName is returned when renaming the player to a blank name.
var ErrEmptyName = errors.New("player name must not be empty")

// DefaultPath is where the identity is persisted when none is configured.
const DefaultPath = "data/device.json"

// Info contains the player identity.
type Info struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Service manages the persisted player identity.
type Service struct {
	mu         sync.RWMutex
	configPath string
	info       Info
}

// NewService loads the identity from configPath, generating and persisting
// a new one if none exists yet.
func NewService(configPath string) (*Service, error) {
	svc := &Service{configPath: configPath}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := svc.loadConfig(); err != nil {
		log.Debug().Err(err).Msg("No existing device config, generating new identity")
		svc.info.ID = uuid.New().String()
		svc.info.Name = defaultName()

		if err := svc.saveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save device config: %w", err)
		}
	}

	log.Info().
		Str("id", svc.info.ID).
		Str("name", svc.info.Name).
		Msg("Player identity initialized")

	return svc, nil
}

func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("invalid config format: %w", err)
	}
	if info.ID == "" {
		return errors.New("config missing id")
	}
	if info.Name == "" {
		info.Name = defaultName()
	}

	s.info = info
	return nil
}

func (s *Service) saveConfig() error {
	data, err := json.MarshalIndent(s.info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configPath, data, 0644)
}

// Info returns the current identity.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// SetName renames the player and persists the change.
func (s *Service) SetName(name string) (Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Info{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.info.Name
	s.info.Name = name
	if err := s.saveConfig(); err != nil {
		s.info.Name = prev
		return Info{}, fmt.Errorf("failed to save device config: %w", err)
	}
	return s.info, nil
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "Stellar Video"
	}
	return hostname
}
