package engine

import (
	"context"
	"fmt"
)

// Status is the lifecycle stage of a game as seen by the session.
type Status int

const (
	// Open games are still waiting for players to join.
	Open Status = iota
	// Started games have every slot filled.
	Started
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Started:
		return "started"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// TurnWriter persists turn changes made by a session.
type TurnWriter interface {
	InsertTurn(ctx context.Context, t *Turn) (uint32, error)
	UpdateTurn(ctx context.Context, t *Turn) error
}

// GameSession is one loaded game with its full turn history. It is built
// per request from a snapshot and writes through its TurnWriter only where
// an operation changes a record.
//
// Operations that act on behalf of a player require a bound player id; see
// SetPID and WithPID.
type GameSession struct {
	game   *Game
	turns  []PlayerTurn
	writer TurnWriter

	pid   uint32
	bound bool
}

// NewGameSession builds an unbound session. turns must be ordered by id.
func NewGameSession(game *Game, turns []PlayerTurn, writer TurnWriter) *GameSession {
	return &GameSession{
		game:   game,
		turns:  turns,
		writer: writer,
	}
}

// Game returns the game configuration.
func (s *GameSession) Game() *Game {
	return s.game
}

// Turns returns the turn history in load order.
func (s *GameSession) Turns() []PlayerTurn {
	return s.turns
}

// PID returns the bound player id.
func (s *GameSession) PID() (uint32, bool) {
	return s.pid, s.bound
}

// SetPID binds the session to a player slot.
func (s *GameSession) SetPID(pid uint32) error {
	if !s.hasSlot(pid) {
		return fmt.Errorf("pid=`%d`: %w", pid, ErrIncorrectPlayerID)
	}
	s.pid = pid
	s.bound = true
	return nil
}

// WithPID returns a copy of the session bound to pid. The receiver is left
// untouched, and changes made through the copy do not show up in it.
func (s *GameSession) WithPID(pid uint32) (*GameSession, error) {
	c := *s
	c.turns = append([]PlayerTurn(nil), s.turns...)
	if err := c.SetPID(pid); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GameSession) hasSlot(pid uint32) bool {
	for _, pt := range s.turns {
		if pt.Turn.PlayerNumber == pid {
			return true
		}
	}
	return false
}

// JoinedSlots counts the distinct player slots with at least one record.
func (s *GameSession) JoinedSlots() uint32 {
	seen := make(map[uint32]struct{})
	for _, pt := range s.turns {
		seen[pt.Turn.PlayerNumber] = struct{}{}
	}
	return uint32(len(seen))
}

// HasUser reports whether the user already holds a slot in the game.
func (s *GameSession) HasUser(userID uint32) bool {
	for _, pt := range s.turns {
		if pt.Turn.UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether every slot is taken.
func (s *GameSession) IsFull() bool {
	return s.JoinedSlots() >= s.game.PlayersCnt
}

// Status is Open until every slot has joined, then Started.
func (s *GameSession) Status() Status {
	if s.IsFull() {
		return Started
	}
	return Open
}

// MoveCnt returns the number of steps for which every player's move has
// been recorded.
func (s *GameSession) MoveCnt() uint32 {
	if s.Status() == Open {
		return 0
	}

	// Exactly one record per player: everybody is still on step 1.
	if len(s.turns) == int(s.game.PlayersCnt) {
		for _, pt := range s.turns {
			if !pt.Turn.HasSeeds() {
				return 0
			}
		}
		return 1
	}

	maxStep := uint32(1)
	for _, pt := range s.turns {
		if pt.Turn.StepNumber > maxStep {
			maxStep = pt.Turn.StepNumber
		}
	}

	atMax := 0
	for _, pt := range s.turns {
		if pt.Turn.StepNumber == maxStep {
			atMax++
		}
	}
	if atMax < int(s.game.PlayersCnt) {
		return maxStep - 1
	}

	unfinished := maxStep
	for _, pt := range s.turns {
		if !pt.Turn.HasSeeds() && pt.Turn.StepNumber-1 < unfinished {
			unfinished = pt.Turn.StepNumber - 1
		}
	}
	return unfinished
}

// latest returns the index of the player's record with the highest step.
func (s *GameSession) latest(pid uint32) (int, bool) {
	idx := -1
	for i, pt := range s.turns {
		if pt.Turn.PlayerNumber != pid {
			continue
		}
		if idx < 0 || pt.Turn.StepNumber > s.turns[idx].Turn.StepNumber {
			idx = i
		}
	}
	return idx, idx >= 0
}

func (s *GameSession) find(pid, step uint32) (int, bool) {
	for i, pt := range s.turns {
		if pt.Turn.PlayerNumber == pid && pt.Turn.StepNumber == step {
			return i, true
		}
	}
	return -1, false
}

func (s *GameSession) ownerPID() uint32 {
	for _, pt := range s.turns {
		if pt.User.ID == s.game.OwnerID {
			return pt.Turn.PlayerNumber
		}
	}
	return 0
}
