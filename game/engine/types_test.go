package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_Nickname(t *testing.T) {
	login := "player"
	assert.Equal(t, "player", (&User{SteamID: 111, Login: &login}).Nickname())
	assert.Equal(t, "№76561198000000000", (&User{SteamID: 76561198000000000}).Nickname())
}

func TestNewTurn(t *testing.T) {
	turn := NewTurn(5, 7, 2)
	assert.Equal(t, uint32(5), turn.GameID)
	assert.Equal(t, uint32(7), turn.UserID)
	assert.Equal(t, uint32(2), turn.PlayerNumber)
	assert.Equal(t, uint32(1), turn.StepNumber)
	assert.False(t, turn.HasSeeds())
	assert.Equal(t, []uint32{1, 1, 1, 1}, []uint32{turn.PropPers, turn.PropCar, turn.PropFWheel, turn.PropBWheel})
}

func TestTurn_CloneDetachesSeeds(t *testing.T) {
	seeds := "abc"
	turn := &Turn{ID: 1, Seeds: &seeds}
	c := turn.Clone()
	*c.Seeds = "changed"

	assert.Equal(t, "abc", *turn.Seeds)
}

func TestTurn_TurnInfo(t *testing.T) {
	seeds := "1#2#3#-1"
	turn := &Turn{PlayerNumber: 1, StepNumber: 3, IsFinished: true, Rank: 2, MoveTime: 21, UserSeedsCnt: 1, Seeds: &seeds}
	info := turn.TurnInfo()

	assert.Equal(t, uint32(3), info.StepNumber)
	assert.Equal(t, uint32(1), info.PlayerID)
	assert.True(t, info.IsFinished)
	assert.Equal(t, "1#2#3#-1", info.Seeds)

	turn.Seeds = nil
	assert.Equal(t, "", turn.TurnInfo().Seeds)
}

func TestParseWorld(t *testing.T) {
	loc, err := ParseWorld(12, 4)
	require.NoError(t, err)
	assert.Equal(t, Mounts, loc.World)
	assert.Equal(t, "mounts/4", loc.String())

	w, tr := loc.ID()
	assert.Equal(t, uint8(12), w)
	assert.Equal(t, uint8(4), tr)

	_, err = ParseWorld(13, 0)
	assert.ErrorIs(t, err, ErrInvalidWorld)

	assert.Len(t, Worlds(), 13)
	assert.Equal(t, Mountain, Worlds()[0])
	assert.Equal(t, "World(200)", World(200).String())
}
