package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
	"github.com/Fenex/samogonki-srv/game/service"
)

// DefaultPreset is the preset used when a game is created without one.
const DefaultPreset = "default"

var ErrInvalidPreset = errors.New("invalid preset")

// Manager handles game preset loading and caching
type Manager struct {
	presetDir     string
	defaultPreset *engine.Preset
	presets       map[string]*engine.Preset
	mu            sync.RWMutex
}

// NewManager creates a new preset manager
func NewManager(presetDir string) (*Manager, error) {
	if _, err := os.Stat(presetDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*engine.Preset),
	}
	m.loadDefaultPreset()

	return m, nil
}

// LoadPreset loads a preset by name
func (m *Manager) LoadPreset(name string) (*engine.Preset, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%q: %w", name, service.ErrPresetNotFound)
	}

	m.mu.RLock()
	if preset, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return preset, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if preset, exists := m.presets[name]; exists {
		return preset, nil
	}

	preset, err := engine.LoadPreset(m.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", name, service.ErrPresetNotFound)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPreset, err)
	}

	m.presets[name] = preset
	return preset, nil
}

// ListPresets returns information about all available presets, sorted by
// id. Files that fail validation are skipped.
func (m *Manager) ListPresets() ([]*service.PresetInfo, error) {
	entries, err := os.ReadDir(m.presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var presets []*service.PresetInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		preset, err := m.LoadPreset(id)
		if err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("skipping invalid preset")
			continue
		}

		info := &service.PresetInfo{
			Filename:    entry.Name(),
			PresetID:    id,
			Name:        preset.Name,
			Description: preset.Description,
			PlayersCnt:  preset.PlayersCnt,
			IsExpress:   preset.IsExpress,
		}
		if loc, err := engine.ParseWorld(preset.WorldID, preset.TrackID); err == nil {
			info.Location = loc.String()
		}
		presets = append(presets, info)
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].PresetID < presets[j].PresetID })
	return presets, nil
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *engine.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// SetDefault sets the default preset by name
func (m *Manager) SetDefault(name string) error {
	preset, err := m.LoadPreset(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPreset = preset
	return nil
}

// RefreshCache drops cached presets and reloads the default from disk.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*engine.Preset)
	m.mu.Unlock()

	m.loadDefaultPreset()
}

// SavePreset validates a preset and writes it to disk
func (m *Manager) SavePreset(name string, preset *engine.Preset) error {
	if err := engine.ValidatePreset(preset); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPreset, err)
	}
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad file name %q", ErrInvalidPreset, name)
	}

	data, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(m.path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[name] = preset
	m.mu.Unlock()

	return nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.presetDir, name+".json")
}

// loadDefaultPreset picks default.json, then the first valid preset, then
// a built-in two player game.
func (m *Manager) loadDefaultPreset() {
	preset, err := m.LoadPreset(DefaultPreset)
	if err != nil {
		presets, listErr := m.ListPresets()
		if listErr == nil && len(presets) > 0 {
			preset, err = m.LoadPreset(presets[0].PresetID)
		}
	}
	if err != nil || preset == nil {
		log.WithField("dir", m.presetDir).Warn("no usable preset found, using built-in default")
		preset = minimalPreset()
	}

	m.mu.Lock()
	m.defaultPreset = preset
	m.mu.Unlock()
}

func minimalPreset() *engine.Preset {
	return &engine.Preset{
		Name:        "default",
		Description: "Two players, one lap",
		WorldID:     uint8(engine.Town),
		TrackID:     1,
		GameType:    kdlab.All,
		Laps:        1,
		Seeds:       100,
		Duration:    10,
		PlayersCnt:  2,
		IsExpress:   true,
	}
}
