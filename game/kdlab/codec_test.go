package kdlab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedsBlob = "661#348#50#-1#1181#291#51#-1#1616#423#51#-1#1879#702#51#-1"

func TestDecode_ControlPacketWithPlayers(t *testing.T) {
	input := "KDLAB;104;2;1;0;0;1;password;0;0;47792;A;3;100;10;0;2;0;Y;;0;;;0;player;1;1;1;1;N;1;player2;1;1;1;1;N;BITRIX"

	p, ok := Decode(input)
	require.True(t, ok)

	assert.Equal(t, uint32(104), p.Version)
	assert.Equal(t, ControlPacket, p.Type)
	assert.Equal(t, uint32(1), p.GameID)
	assert.Equal(t, Ru, p.Language)
	assert.Equal(t, uint32(0), p.OwnerPID)
	assert.Equal(t, uint32(1), p.SenderPID)
	assert.Equal(t, "password", p.Password)
	assert.Equal(t, uint8(0), p.WorldID)
	assert.Equal(t, uint8(0), p.TrackID)
	assert.Equal(t, uint16(47792), p.Rnd)
	assert.Equal(t, All, p.GameType)
	assert.Equal(t, uint32(3), p.Laps)
	assert.Equal(t, uint32(100), p.Seeds)
	assert.Equal(t, uint32(10), p.Duration)
	assert.Equal(t, uint32(0), p.MoveCnt)
	assert.True(t, p.IsExpress)
	assert.Equal(t, URLProperty{}, p.URL)
	assert.Equal(t, []Player{NewPlayer(0, "player"), NewPlayer(1, "player2")}, p.Players)
	assert.Empty(t, p.Steps)

	assert.Equal(t, input, Encode(p))
}

func TestEncode_RefreshAnswerSingleStep(t *testing.T) {
	p := &Packet{
		Version:   ProtocolVersion,
		Type:      RefreshAnswerPacket,
		Language:  Ru,
		Password:  "password",
		GameType:  All,
		Laps:      5,
		Seeds:     200,
		Duration:  10,
		IsExpress: true,
		Steps: []PlayerTurnInfo{
			{StepNumber: 1, UserSeedsCnt: 4, Seeds: seedsBlob},
		},
	}

	want := "KDLAB;104;7;0;0;0;0;password;0;0;0;A;5;200;10;0;0;1;Y;;0;;;1;1;0;N;0;0;0;0;0;0;0;4;" + seedsBlob + ";BITRIX"
	assert.Equal(t, want, Encode(p))
}

func TestEncode_SuppressesRosterByType(t *testing.T) {
	base := &Packet{
		Version:  ProtocolVersion,
		GameType: Winner,
		Players:  []Player{NewPlayer(0, "a"), NewPlayer(1, "b")},
	}

	tests := []struct {
		packetType PacketType
		wantRoster bool
	}{
		{GamePacket, true},
		{ControlPacket, true},
		{SeedsPacket, false},
		{CompletedGamePacket, true},
		{SysPacket, true},
		{RefreshPacket, false},
		{RefreshAnswerPacket, false},
		{ArcadeGamePacket, true},
	}

	for _, tt := range tests {
		t.Run(tt.packetType.String(), func(t *testing.T) {
			p := base.Clone()
			p.Type = tt.packetType
			encoded := Encode(p)

			assert.Equal(t, tt.wantRoster, strings.Contains(encoded, ";0;a;1;1;1;1;N;"))
			fields := strings.Split(encoded, ";")
			if tt.wantRoster {
				assert.Equal(t, "2", fields[16])
			} else {
				assert.Equal(t, "0", fields[16])
			}
		})
	}
}

func TestEncode_EmptyStepsWritesNoBlock(t *testing.T) {
	p := &Packet{Version: ProtocolVersion, Type: GamePacket, GameType: All}
	assert.Equal(t, "KDLAB;104;1;0;0;0;0;;0;0;0;A;0;0;0;0;0;0;N;;0;;;BITRIX", Encode(p))
}

func TestEncode_KeepsOnlyMaxStep(t *testing.T) {
	p := &Packet{
		Version:  ProtocolVersion,
		Type:     GamePacket,
		GameType: All,
		Steps: []PlayerTurnInfo{
			{StepNumber: 1, PlayerID: 0, Seeds: "old"},
			{StepNumber: 2, PlayerID: 0, Seeds: "new0"},
			{StepNumber: 1, PlayerID: 1, Seeds: "old"},
			{StepNumber: 2, PlayerID: 1, Seeds: "new1"},
		},
	}

	encoded := Encode(p)
	assert.NotContains(t, encoded, "old")
	assert.Contains(t, encoded, ";0;1;N;;0;;;2;2;0;N;")

	decoded, ok := Decode(encoded)
	require.True(t, ok)
	require.Len(t, decoded.Steps, 2)
	assert.Equal(t, "new0", decoded.Steps[0].Seeds)
	assert.Equal(t, "new1", decoded.Steps[1].Seeds)
	assert.Equal(t, uint32(2), decoded.Steps[1].StepNumber)
}

func TestRoundTrip(t *testing.T) {
	p := &Packet{
		Version:   ProtocolVersion,
		Type:      GamePacket,
		GameID:    42,
		Language:  En,
		OwnerPID:  1,
		SenderPID: 2,
		Password:  "secret",
		WorldID:   12,
		TrackID:   3,
		Rnd:       65535,
		GameType:  Winner,
		Laps:      50,
		Seeds:     1000,
		Duration:  34000,
		MoveCnt:   7,
		IsExpress: false,
		Players: []Player{
			{UID: 0, Nickname: "№111", Pers: 2, Car: 3, FWheel: 4, BWheel: 5, IsRobot: false},
			{UID: 1, Nickname: "bot", Pers: 1, Car: 1, FWheel: 1, BWheel: 1, IsRobot: true},
			{UID: 2, Nickname: "third", Pers: 9, Car: 8, FWheel: 7, BWheel: 6},
		},
		Steps: []PlayerTurnInfo{
			{StepNumber: 8, PlayerID: 0, IsFinished: true, Rank: 1, MoveTime: 21, MoveSteps: 3, BottlesCnt: 16, TotalSeedsCnt: 14, ArcanesCnt: 2, DestroysCnt: 1, UserSeedsCnt: 2, Seeds: "165#741#51#-1#465#427#51#-1"},
			{StepNumber: 8, PlayerID: 1, Rank: 2, MoveTime: 23, UserSeedsCnt: 0, Seeds: ""},
			{StepNumber: 8, PlayerID: 2, Rank: 3, MoveTime: 30, UserSeedsCnt: 4, Seeds: seedsBlob},
		},
	}

	decoded, ok := Decode(Encode(p))
	require.True(t, ok)

	assert.Equal(t, p.Version, decoded.Version)
	assert.Equal(t, p.Type, decoded.Type)
	assert.Equal(t, p.GameID, decoded.GameID)
	assert.Equal(t, p.Language, decoded.Language)
	assert.Equal(t, p.OwnerPID, decoded.OwnerPID)
	assert.Equal(t, p.SenderPID, decoded.SenderPID)
	assert.Equal(t, p.Password, decoded.Password)
	assert.Equal(t, p.WorldID, decoded.WorldID)
	assert.Equal(t, p.TrackID, decoded.TrackID)
	assert.Equal(t, p.Rnd, decoded.Rnd)
	assert.Equal(t, p.GameType, decoded.GameType)
	assert.Equal(t, p.Laps, decoded.Laps)
	assert.Equal(t, p.Seeds, decoded.Seeds)
	assert.Equal(t, p.Duration, decoded.Duration)
	assert.Equal(t, p.MoveCnt, decoded.MoveCnt)
	assert.Equal(t, p.IsExpress, decoded.IsExpress)
	assert.Equal(t, p.Players, decoded.Players)
	assert.Equal(t, p.Steps, decoded.Steps)
}

func TestRoundTrip_SeedsPacketDropsRoster(t *testing.T) {
	p := &Packet{
		Version:   ProtocolVersion,
		Type:      SeedsPacket,
		GameID:    1,
		SenderPID: 1,
		GameType:  All,
		IsExpress: true,
		Players:   []Player{NewPlayer(1, "player2")},
		Steps:     []PlayerTurnInfo{{StepNumber: 1, PlayerID: 1, Rank: 1, UserSeedsCnt: 4, Seeds: seedsBlob}},
	}

	decoded, ok := Decode(Encode(p))
	require.True(t, ok)
	assert.Empty(t, decoded.Players)
	assert.Equal(t, p.Steps, decoded.Steps)
}

func TestDecode_MultipleStepBlocks(t *testing.T) {
	input := "KDLAB;104;2;1;0;0;0;password;0;0;12711;A;1;100;10;1;0;2;Y;;0;;;" +
		"1;1;0;N;0;0;0;0;0;0;0;1;a;" +
		"2;2;0;N;0;0;0;0;0;0;0;1;b;1;Y;1;0;0;0;0;0;0;1;c;BITRIX"

	p, ok := Decode(input)
	require.True(t, ok)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, uint32(1), p.Steps[0].StepNumber)
	assert.Equal(t, uint32(2), p.Steps[1].StepNumber)
	assert.Equal(t, uint32(2), p.Steps[2].StepNumber)
	assert.True(t, p.Steps[2].IsFinished)
	assert.Equal(t, "c", p.Steps[2].Seeds)
}

func TestDecode_RefreshIgnoresDeclaredPlayers(t *testing.T) {
	input := "KDLAB;104;6;1;0;0;0;password;0;0;12711;A;1;100;10;0;2;0;Y;;0;;;BITRIX;0;0;0;0;0;0;0;14;620#402#51#-1;BITRIX"

	p, ok := Decode(input)
	require.True(t, ok)
	assert.Equal(t, RefreshPacket, p.Type)
	assert.Empty(t, p.Players)
	assert.Empty(t, p.Steps)
}

func TestDecode_LenientTail(t *testing.T) {
	inputs := []string{
		"KDLAB;104;2;1;0;0;0;password;0;0;1;W;1;1;10;0;0;0;N;;0;;;BITRIX",
		"KDLAB;104;2;1;0;0;0;password;0;0;1;W;1;1;10;0;0;0;N;;0;;;BITRIX\n",
		"KDLAB;104;2;1;0;0;0;password;0;0;1;W;1;1;10;0;0;0;N;;0;;;BITRIX;;",
		"KDLAB;104;2;1;0;0;0;password;0;0;1;W;1;1;10;0;0;0;N;;0;;",
		"KDLAB;104;2;1;0;0;0;password;0;0;1;W;1;1;10;0;0;0;N",
	}

	for _, input := range inputs {
		p, ok := Decode(input)
		require.True(t, ok, input)
		assert.Equal(t, Winner, p.GameType)
		assert.False(t, p.IsExpress)
	}
}

func TestDecode_GameTypeIgnoresCase(t *testing.T) {
	p, ok := Decode("KDLAB;104;2;1;0;0;0;password;0;0;1;a;1;1;10;0;0;0;y;;0;;;BITRIX")
	require.True(t, ok)
	assert.Equal(t, All, p.GameType)
	assert.False(t, p.IsExpress, "express flag is case-sensitive")
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong tag", "KDLAX;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"lowercase tag", "kdlab;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"packet type zero", "KDLAB;104;0;1;0;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"packet type nine", "KDLAB;104;9;1;0;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"unknown language", "KDLAB;104;2;1;2;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"negative game id", "KDLAB;104;2;-1;0;0;0;password;0;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"world overflow", "KDLAB;104;2;1;0;0;0;password;256;0;1;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"rnd overflow", "KDLAB;104;2;1;0;0;0;password;0;0;65536;A;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"bad game type", "KDLAB;104;2;1;0;0;0;password;0;0;1;X;1;1;10;0;0;0;Y;;0;;;BITRIX"},
		{"truncated header", "KDLAB;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;0;0"},
		{"missing players", "KDLAB;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;2;0;Y;;0;;;0;player;1;1;1;1;N;BITRIX"},
		{"bad player field", "KDLAB;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;1;0;Y;;0;;;0;player;x;1;1;1;N;BITRIX"},
		{"missing step block", "KDLAB;104;3;1;0;0;0;password;0;0;1;A;1;1;10;0;0;2;Y;;0;;;1;1;0;N;0;0;0;0;0;0;0;1;a;BITRIX"},
		{"short step entry", "KDLAB;104;3;1;0;0;0;password;0;0;1;A;1;1;10;0;0;1;Y;;0;;;1;1;0;N;0;0"},
		{"huge declared count", "KDLAB;104;2;1;0;0;0;password;0;0;1;A;1;1;10;0;4294967295;0;Y;;0;;;BITRIX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Decode(tt.input)
			assert.False(t, ok)
			assert.Nil(t, p)
		})
	}
}

func TestGameType_Text(t *testing.T) {
	var g GameType
	require.NoError(t, g.UnmarshalText([]byte("w")))
	assert.Equal(t, Winner, g)

	text, err := All.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "A", string(text))

	_, err = GameType(0).MarshalText()
	assert.Error(t, err)
	assert.Error(t, g.UnmarshalText([]byte("Z")))
}

func TestPacket_Clone(t *testing.T) {
	p := &Packet{
		Players: []Player{NewPlayer(0, "a")},
		Steps:   []PlayerTurnInfo{{StepNumber: 1}},
	}
	c := p.Clone()
	c.Players[0].Nickname = "changed"
	c.Steps[0].StepNumber = 5

	assert.Equal(t, "a", p.Players[0].Nickname)
	assert.Equal(t, uint32(1), p.Steps[0].StepNumber)
}
