package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) InsertTurn(ctx context.Context, t *Turn) (uint32, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockWriter) UpdateTurn(ctx context.Context, t *Turn) error {
	return m.Called(ctx, t).Error(0)
}

func testGame(players uint32) *Game {
	return &Game{
		ID:         1,
		OwnerID:    1,
		Rnd:        12711,
		GameType:   kdlab.All,
		Laps:       1,
		Seeds:      100,
		Duration:   10,
		PlayersCnt: players,
		IsExpress:  true,
	}
}

func testUser(id uint32) *User {
	login := fmt.Sprintf("login%d", id)
	return &User{ID: id, SteamID: int64(id) * 111, Login: &login}
}

// testTurn builds a record for slot owned by user slot+1. Empty seeds means
// the move has not been submitted.
func testTurn(id, slot, step uint32, seeds string, received bool) PlayerTurn {
	t := NewTurn(1, slot+1, slot)
	t.ID = id
	t.StepNumber = step
	t.IsReceived = received
	if seeds != "" {
		t.Seeds = &seeds
	}
	return PlayerTurn{Turn: t, User: testUser(slot + 1)}
}

func TestGameSession_StatusAndMoveCnt(t *testing.T) {
	tests := []struct {
		name       string
		players    uint32
		turns      []PlayerTurn
		wantStatus Status
		wantMove   uint32
	}{
		{
			name:       "empty open game",
			players:    3,
			wantStatus: Open,
			wantMove:   0,
		},
		{
			name:    "open game with two of three players",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "", false),
				testTurn(2, 1, 1, "", false),
			},
			wantStatus: Open,
			wantMove:   0,
		},
		{
			name:    "open game ignores submitted moves",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", false),
				testTurn(2, 1, 1, "seed2", false),
			},
			wantStatus: Open,
			wantMove:   0,
		},
		{
			name:    "started game with no moves",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "", false),
				testTurn(2, 1, 1, "", false),
				testTurn(3, 2, 1, "", false),
			},
			wantStatus: Started,
			wantMove:   0,
		},
		{
			name:    "started game with a move by the second player",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "", false),
				testTurn(2, 1, 1, "seed", false),
				testTurn(3, 2, 1, "", false),
			},
			wantStatus: Started,
			wantMove:   0,
		},
		{
			name:    "step one moved by all players",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", false),
				testTurn(2, 1, 1, "seed2", false),
				testTurn(3, 2, 1, "seed3", false),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "step one moved by all and received by the second player",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", false),
				testTurn(2, 1, 1, "seed2", true),
				testTurn(3, 2, 1, "seed3", false),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "second player ahead at step two",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", false),
				testTurn(2, 1, 1, "seed2", true),
				testTurn(3, 2, 1, "seed3", false),
				testTurn(4, 1, 2, "seed2-2", false),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "step one received by all",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", true),
				testTurn(2, 1, 1, "seed2", true),
				testTurn(3, 2, 1, "seed3", true),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "step one received by all and step two by the second player",
			players: 3,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "seed1", true),
				testTurn(2, 1, 1, "seed2", true),
				testTurn(3, 2, 1, "seed3", true),
				testTurn(4, 1, 2, "seed2-2", false),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "step two rows created but not all moved",
			players: 2,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "a", true),
				testTurn(2, 1, 1, "b", true),
				testTurn(3, 0, 2, "c", false),
				testTurn(4, 1, 2, "", false),
			},
			wantStatus: Started,
			wantMove:   1,
		},
		{
			name:    "step two moved by all",
			players: 2,
			turns: []PlayerTurn{
				testTurn(1, 0, 1, "a", true),
				testTurn(2, 1, 1, "b", true),
				testTurn(3, 0, 2, "c", false),
				testTurn(4, 1, 2, "d", false),
			},
			wantStatus: Started,
			wantMove:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewGameSession(testGame(tt.players), tt.turns, &mockWriter{})
			assert.Equal(t, tt.wantStatus, s.Status())
			assert.Equal(t, tt.wantMove, s.MoveCnt())
		})
	}
}

func TestGameSession_SetPID(t *testing.T) {
	s := NewGameSession(testGame(2), []PlayerTurn{
		testTurn(1, 0, 1, "", false),
		testTurn(2, 1, 1, "", false),
	}, &mockWriter{})

	_, bound := s.PID()
	assert.False(t, bound)

	err := s.SetPID(2)
	assert.ErrorIs(t, err, ErrIncorrectPlayerID)
	_, bound = s.PID()
	assert.False(t, bound)

	require.NoError(t, s.SetPID(1))
	pid, bound := s.PID()
	assert.True(t, bound)
	assert.Equal(t, uint32(1), pid)
}

func TestGameSession_WithPID(t *testing.T) {
	s := NewGameSession(testGame(2), []PlayerTurn{
		testTurn(1, 0, 1, "", false),
		testTurn(2, 1, 1, "", false),
	}, &mockWriter{})

	bound, err := s.WithPID(0)
	require.NoError(t, err)
	pid, ok := bound.PID()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), pid)

	_, ok = s.PID()
	assert.False(t, ok, "receiver must stay unbound")

	_, err = s.WithPID(7)
	assert.ErrorIs(t, err, ErrIncorrectPlayerID)
}

func TestGameSession_Slots(t *testing.T) {
	s := NewGameSession(testGame(3), []PlayerTurn{
		testTurn(1, 0, 1, "a", false),
		testTurn(2, 1, 1, "b", false),
		testTurn(3, 0, 2, "", false),
	}, &mockWriter{})

	assert.Equal(t, uint32(2), s.JoinedSlots())
	assert.False(t, s.IsFull())
	assert.Equal(t, Open, s.Status())
	assert.True(t, s.HasUser(1))
	assert.True(t, s.HasUser(2))
	assert.False(t, s.HasUser(3))
}
