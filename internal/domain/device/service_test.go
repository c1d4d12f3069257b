package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewService_GeneratesID(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "device.json")

	svc, err := NewService(configPath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	info := svc.Info()
	if len(info.ID) != 36 {
		t.Errorf("ID should be a 36 character UUID, got %q", info.ID)
	}
	if info.Name == "" {
		t.Error("Name should not be empty")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file should have been created: %v", err)
	}
}

func TestNewService_PersistsID(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "device.json")

	svc1, err := NewService(configPath)
	if err != nil {
		t.Fatalf("NewService (1) failed: %v", err)
	}
	svc2, err := NewService(configPath)
	if err != nil {
		t.Fatalf("NewService (2) failed: %v", err)
	}

	if svc1.Info().ID != svc2.Info().ID {
		t.Errorf("ID should persist across restarts: %s != %s", svc1.Info().ID, svc2.Info().ID)
	}
}

func TestNewService_LoadsExisting(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantID   string
		wantName string
	}{
		{
			name:     "id and name",
			content:  `{"id":"550e8400-e29b-41d4-a716-446655440000","name":"Living Room"}`,
			wantID:   "550e8400-e29b-41d4-a716-446655440000",
			wantName: "Living Room",
		},
		{
			name:    "missing name gets default",
			content: `{"id":"550e8400-e29b-41d4-a716-446655440000"}`,
			wantID:  "550e8400-e29b-41d4-a716-446655440000",
		},
		{
			name:    "corrupt file regenerates",
			content: `not json`,
		},
		{
			name:    "missing id regenerates",
			content: `{"name":"Orphan"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "device.json")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			svc, err := NewService(configPath)
			if err != nil {
				t.Fatalf("NewService failed: %v", err)
			}
			info := svc.Info()

			if tt.wantID != "" && info.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", info.ID, tt.wantID)
			}
			if tt.wantID == "" && len(info.ID) != 36 {
				t.Errorf("expected a regenerated ID, got %q", info.ID)
			}
			if tt.wantName != "" && info.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tt.wantName)
			}
			if info.Name == "" {
				t.Error("Name should not be empty")
			}
		})
	}
}

func TestSetName(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "device.json")
	svc, err := NewService(configPath)
	if err != nil {
		t.Fatal(err)
	}

	info, err := svc.SetName("  Bedroom  ")
	if err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if info.Name != "Bedroom" {
		t.Errorf("Name = %q, want trimmed Bedroom", info.Name)
	}

	reloaded, err := NewService(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Info().Name != "Bedroom" {
		t.Errorf("name not persisted, got %q", reloaded.Info().Name)
	}

	if _, err := svc.SetName("   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name error = %v, want ErrEmptyName", err)
	}
	if svc.Info().Name != "Bedroom" {
		t.Error("failed rename should keep the previous name")
	}
}
