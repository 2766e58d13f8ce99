package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

func validGame() *Game {
	return &Game{
		WorldID:    0,
		TrackID:    0,
		GameType:   kdlab.All,
		Laps:       3,
		Seeds:      100,
		Duration:   10,
		PlayersCnt: 2,
		IsExpress:  true,
	}
}

func TestValidateGame(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(g *Game)
		wantErr error
	}{
		{"valid", func(g *Game) {}, nil},
		{"upper bounds", func(g *Game) {
			g.WorldID = 12
			g.Laps = MaxLaps
			g.Seeds = MaxSeeds
			g.Duration = MaxDuration
			g.PlayersCnt = MaxPlayers
		}, nil},
		{"world out of range", func(g *Game) { g.WorldID = 13 }, ErrInvalidWorld},
		{"no game type", func(g *Game) { g.GameType = 0 }, ErrInvalidGame},
		{"zero laps", func(g *Game) { g.Laps = 0 }, ErrInvalidGame},
		{"too many laps", func(g *Game) { g.Laps = 51 }, ErrInvalidGame},
		{"too many seeds", func(g *Game) { g.Seeds = 1001 }, ErrInvalidGame},
		{"short duration", func(g *Game) { g.Duration = 9 }, ErrInvalidGame},
		{"long duration", func(g *Game) { g.Duration = 34001 }, ErrInvalidGame},
		{"single player", func(g *Game) { g.PlayersCnt = 1 }, ErrInvalidGame},
		{"six players", func(g *Game) { g.PlayersCnt = 6 }, ErrInvalidGame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGame()
			tt.modify(g)
			err := ValidateGame(g)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidatePreset(t *testing.T) {
	p := &Preset{
		Name:        "duel",
		Description: "Two players, three laps",
		GameType:    kdlab.Winner,
		Laps:        3,
		Seeds:       100,
		Duration:    60,
		PlayersCnt:  2,
	}
	require.NoError(t, ValidatePreset(p))

	noName := *p
	noName.Name = ""
	assert.Error(t, ValidatePreset(&noName))

	badLaps := *p
	badLaps.Laps = 100
	assert.ErrorIs(t, ValidatePreset(&badLaps), ErrInvalidGame)
}

func TestPreset_Apply(t *testing.T) {
	p := &Preset{WorldID: 4, TrackID: 2, GameType: kdlab.Winner, Laps: 5, Seeds: 200, Duration: 30, PlayersCnt: 4, IsExpress: true}
	g := &Game{ID: 9, OwnerID: 3}
	p.Apply(g)

	assert.Equal(t, uint32(9), g.ID)
	assert.Equal(t, uint32(3), g.OwnerID)
	assert.Equal(t, uint8(4), g.WorldID)
	assert.Equal(t, uint8(2), g.TrackID)
	assert.Equal(t, kdlab.Winner, g.GameType)
	assert.Equal(t, uint32(4), g.PlayersCnt)
	assert.True(t, g.IsExpress)
}

func TestLoadPreset(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"name": "good",
		"description": "A valid preset",
		"world_id": 3,
		"track_id": 1,
		"game_type": "a",
		"laps": 2,
		"seeds": 100,
		"duration": 10,
		"players_cnt": 3,
		"is_express": true
	}`), 0644))

	p, err := LoadPreset(good)
	require.NoError(t, err)
	assert.Equal(t, "good", p.Name)
	assert.Equal(t, kdlab.All, p.GameType)
	assert.Equal(t, uint8(3), p.WorldID)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"name":`), 0644))
	_, err = LoadPreset(broken)
	assert.Error(t, err)

	badType := filepath.Join(dir, "bad-type.json")
	require.NoError(t, os.WriteFile(badType, []byte(`{"name":"x","description":"y","game_type":"Q"}`), 0644))
	_, err = LoadPreset(badType)
	assert.Error(t, err)

	_, err = LoadPreset(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))
}
