package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

// Limits accepted when a game is created.
const (
	MinLaps     = 1
	MaxLaps     = 50
	MaxSeeds    = 1000
	MinDuration = 10
	MaxDuration = 34000
	MinPlayers  = 2
	MaxPlayers  = 5
)

// ValidateGame checks a game configuration before it is stored.
func ValidateGame(g *Game) error {
	if _, err := ParseWorld(g.WorldID, g.TrackID); err != nil {
		return err
	}
	if !g.GameType.Valid() {
		return fmt.Errorf("%w: game_type must be W or A, got %d", ErrInvalidGame, uint8(g.GameType))
	}
	if g.Laps < MinLaps || g.Laps > MaxLaps {
		return fmt.Errorf("%w: laps must be between %d and %d, got %d", ErrInvalidGame, MinLaps, MaxLaps, g.Laps)
	}
	if g.Seeds > MaxSeeds {
		return fmt.Errorf("%w: seeds must be at most %d, got %d", ErrInvalidGame, MaxSeeds, g.Seeds)
	}
	if g.Duration < MinDuration || g.Duration > MaxDuration {
		return fmt.Errorf("%w: duration must be between %d and %d, got %d", ErrInvalidGame, MinDuration, MaxDuration, g.Duration)
	}
	if g.PlayersCnt < MinPlayers || g.PlayersCnt > MaxPlayers {
		return fmt.Errorf("%w: players_cnt must be between %d and %d, got %d", ErrInvalidGame, MinPlayers, MaxPlayers, g.PlayersCnt)
	}
	return nil
}

// Preset is a named game template loaded from JSON.
type Preset struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	WorldID     uint8          `json:"world_id"`
	TrackID     uint8          `json:"track_id"`
	GameType    kdlab.GameType `json:"game_type"`
	Laps        uint32         `json:"laps"`
	Seeds       uint32         `json:"seeds"`
	Duration    uint32         `json:"duration"`
	PlayersCnt  uint32         `json:"players_cnt"`
	IsExpress   bool           `json:"is_express"`
}

// Apply copies the preset's settings onto g.
func (p *Preset) Apply(g *Game) {
	g.WorldID = p.WorldID
	g.TrackID = p.TrackID
	g.GameType = p.GameType
	g.Laps = p.Laps
	g.Seeds = p.Seeds
	g.Duration = p.Duration
	g.PlayersCnt = p.PlayersCnt
	g.IsExpress = p.IsExpress
}

// ValidatePreset checks that a preset describes a game ValidateGame accepts.
func ValidatePreset(p *Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset validation: name is required")
	}
	if p.Description == "" {
		return fmt.Errorf("preset validation: description is required")
	}
	var g Game
	p.Apply(&g)
	if err := ValidateGame(&g); err != nil {
		return fmt.Errorf("preset validation: %w", err)
	}
	return nil
}

// LoadPreset reads and validates a preset file.
func LoadPreset(filename string) (*Preset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var preset Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset file '%s': %v", filename, err)
	}

	if err := ValidatePreset(&preset); err != nil {
		return nil, err
	}

	return &preset, nil
}
