package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
	"github.com/Fenex/samogonki-srv/game/service"
)

func createValidPreset() *engine.Preset {
	return &engine.Preset{
		Name:        "Test Preset",
		Description: "Test preset",
		WorldID:     2,
		TrackID:     3,
		GameType:    kdlab.Winner,
		Laps:        2,
		Seeds:       200,
		Duration:    60,
		PlayersCnt:  3,
	}
}

func writePresetFile(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal preset: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0644); err != nil {
		t.Fatalf("Failed to write preset file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		def := createValidPreset()
		def.Name = "Default"
		writePresetFile(t, dir, "default", def)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Default" {
			t.Errorf("Expected default preset 'Default', got %q", got)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("first preset becomes default", func(t *testing.T) {
		dir := t.TempDir()
		writePresetFile(t, dir, "b_second", createValidPreset())
		first := createValidPreset()
		first.Name = "First"
		writePresetFile(t, dir, "a_first", first)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "First" {
			t.Errorf("Expected 'First' as default, got %q", got)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed without preset files, got error: %v", err)
		}
		def := manager.GetDefault()
		if def == nil {
			t.Fatal("Expected built-in default preset")
		}
		if err := engine.ValidatePreset(def); err != nil {
			t.Errorf("Built-in default preset is invalid: %v", err)
		}
	})
}

func TestManager_LoadPreset(t *testing.T) {
	dir := t.TempDir()
	writePresetFile(t, dir, "valid", createValidPreset())

	invalid := createValidPreset()
	invalid.Laps = 51
	writePresetFile(t, dir, "too_many_laps", invalid)

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	tests := []struct {
		name    string
		preset  string
		wantErr error
	}{
		{name: "valid preset", preset: "valid"},
		{name: "with json extension", preset: "valid.json"},
		{name: "missing preset", preset: "missing", wantErr: service.ErrPresetNotFound},
		{name: "path traversal", preset: "../valid", wantErr: service.ErrPresetNotFound},
		{name: "invalid values", preset: "too_many_laps", wantErr: ErrInvalidPreset},
		{name: "broken json", preset: "broken", wantErr: ErrInvalidPreset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset, err := manager.LoadPreset(tt.preset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if preset.GameType != kdlab.Winner || preset.PlayersCnt != 3 {
				t.Errorf("Unexpected preset contents: %+v", preset)
			}
		})
	}

	t.Run("invalid game wraps engine error", func(t *testing.T) {
		_, err := manager.LoadPreset("too_many_laps")
		if !errors.Is(err, engine.ErrInvalidGame) {
			t.Errorf("Expected engine.ErrInvalidGame in chain, got %v", err)
		}
	})
}

func TestManager_ListPresets(t *testing.T) {
	dir := t.TempDir()
	writePresetFile(t, dir, "duel", createValidPreset())
	party := createValidPreset()
	party.Name = "Party"
	party.WorldID = 12
	party.TrackID = 4
	writePresetFile(t, dir, "party", party)

	invalid := createValidPreset()
	invalid.PlayersCnt = 9
	writePresetFile(t, dir, "crowd", invalid)

	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	presets, err := manager.ListPresets()
	if err != nil {
		t.Fatalf("ListPresets failed: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("Expected 2 presets, got %d", len(presets))
	}
	if presets[0].PresetID != "duel" || presets[1].PresetID != "party" {
		t.Errorf("Unexpected order: %s, %s", presets[0].PresetID, presets[1].PresetID)
	}
	if presets[1].Location != "mounts/4" {
		t.Errorf("Expected location mounts/4, got %q", presets[1].Location)
	}
	if presets[0].Filename != "duel.json" {
		t.Errorf("Expected filename duel.json, got %q", presets[0].Filename)
	}
}

func TestManager_SavePreset(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	preset := createValidPreset()
	if err := manager.SavePreset("saved", preset); err != nil {
		t.Fatalf("SavePreset failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
		t.Errorf("Expected preset file on disk: %v", err)
	}

	manager.RefreshCache()
	loaded, err := manager.LoadPreset("saved")
	if err != nil {
		t.Fatalf("LoadPreset after save failed: %v", err)
	}
	if loaded.Duration != preset.Duration {
		t.Errorf("Expected duration %d, got %d", preset.Duration, loaded.Duration)
	}

	bad := createValidPreset()
	bad.Description = ""
	if err := manager.SavePreset("bad", bad); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("Expected ErrInvalidPreset, got %v", err)
	}

	if err := manager.SetDefault("saved"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.GetDefault().Name != preset.Name {
		t.Errorf("Default was not switched")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writePresetFile(t, dir, "duel", createValidPreset())
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.LoadPreset("duel"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent load failed: %v", err)
	}
}

func TestRepositoryPresets(t *testing.T) {
	manager, err := NewManager(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Skip("configs directory not available")
	}

	presets, err := manager.ListPresets()
	if err != nil {
		t.Fatalf("ListPresets failed: %v", err)
	}

	entries, _ := filepath.Glob(filepath.Join("..", "..", "configs", "*.json"))
	if len(presets) != len(entries) {
		t.Errorf("Expected every shipped preset to be valid: %d of %d loaded", len(presets), len(entries))
	}
	if manager.GetDefault().Name == "" {
		t.Error("Expected a named default preset")
	}
}
