package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Fenex/samogonki-srv/game/engine"
)

// Memory keeps users, games and turns in process memory.
type Memory struct {
	mu sync.RWMutex

	users map[uint32]*engine.User
	games map[uint32]*engine.Game
	turns map[uint32]*engine.Turn

	nextUser uint32
	nextGame uint32
	nextTurn uint32

	now func() time.Time
}

// NewMemory creates an empty store. Ids start at 1.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[uint32]*engine.User),
		games:    make(map[uint32]*engine.Game),
		turns:    make(map[uint32]*engine.Turn),
		nextUser: 1,
		nextGame: 1,
		nextTurn: 1,
		now:      time.Now,
	}
}

// CreateUser stores u and returns its id. Steam ids are unique.
func (m *Memory) CreateUser(ctx context.Context, u *engine.User) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.SteamID == u.SteamID {
			return 0, fmt.Errorf("steam id %d: %w", u.SteamID, engine.ErrUserExists)
		}
	}

	c := cloneUser(u)
	c.ID = m.nextUser
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.users[c.ID] = c
	m.nextUser++
	return c.ID, nil
}

// GetUser returns the user with the given id.
func (m *Memory) GetUser(ctx context.Context, id uint32) (*engine.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user `%d`: %w", id, engine.ErrUserNotFound)
	}
	return cloneUser(u), nil
}

// CreateGame stores g together with the owner's step-1 turn.
func (m *Memory) CreateGame(ctx context.Context, g *engine.Game, owner *engine.Turn) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[owner.UserID]; !ok {
		return 0, fmt.Errorf("user `%d`: %w", owner.UserID, engine.ErrUserNotFound)
	}

	c := *g
	c.ID = m.nextGame
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt

	t := owner.Clone()
	t.GameID = c.ID
	if err := m.insertTurnLocked(t); err != nil {
		return 0, err
	}

	m.games[c.ID] = &c
	m.nextGame++
	return c.ID, nil
}

// ListGames returns every game, newest first.
func (m *Memory) ListGames(ctx context.Context) ([]engine.GameListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slots := make(map[uint32]map[uint32]struct{})
	for _, t := range m.turns {
		if slots[t.GameID] == nil {
			slots[t.GameID] = make(map[uint32]struct{})
		}
		slots[t.GameID][t.PlayerNumber] = struct{}{}
	}

	listings := make([]engine.GameListing, 0, len(m.games))
	for _, g := range m.games {
		c := *g
		listing := engine.GameListing{Game: &c, Joined: uint32(len(slots[g.ID]))}
		if owner, ok := m.users[g.OwnerID]; ok {
			listing.OwnerLogin = owner.Nickname()
		}
		listings = append(listings, listing)
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Game.ID > listings[j].Game.ID
	})
	return listings, nil
}

// LoadGame implements session.Repository.
func (m *Memory) LoadGame(ctx context.Context, id uint32) (*engine.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[id]
	if !ok {
		return nil, engine.GameNotFound(id)
	}
	c := *g
	return &c, nil
}

// LoadTurns implements session.Repository.
func (m *Memory) LoadTurns(ctx context.Context, gameID uint32) ([]engine.PlayerTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var turns []engine.PlayerTurn
	for _, t := range m.turns {
		if t.GameID != gameID {
			continue
		}
		u, ok := m.users[t.UserID]
		if !ok {
			return nil, fmt.Errorf("turn `%d`: user `%d`: %w", t.ID, t.UserID, engine.ErrUserNotFound)
		}
		turns = append(turns, engine.PlayerTurn{Turn: t.Clone(), User: cloneUser(u)})
	}
	sort.Slice(turns, func(i, j int) bool {
		return turns[i].Turn.ID < turns[j].Turn.ID
	})
	return turns, nil
}

// InsertTurn implements session.Repository.
func (m *Memory) InsertTurn(ctx context.Context, t *engine.Turn) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[t.GameID]; !ok {
		return 0, engine.GameNotFound(t.GameID)
	}
	if _, ok := m.users[t.UserID]; !ok {
		return 0, fmt.Errorf("user `%d`: %w", t.UserID, engine.ErrUserNotFound)
	}

	c := t.Clone()
	if err := m.insertTurnLocked(c); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (m *Memory) insertTurnLocked(t *engine.Turn) error {
	for _, existing := range m.turns {
		if existing.GameID == t.GameID && existing.PlayerNumber == t.PlayerNumber && existing.StepNumber == t.StepNumber {
			return fmt.Errorf("game `%d` slot %d step %d: %w", t.GameID, t.PlayerNumber, t.StepNumber, engine.ErrDuplicateTurn)
		}
	}
	t.ID = m.nextTurn
	t.CreatedAt = m.now()
	t.UpdatedAt = t.CreatedAt
	m.turns[t.ID] = t
	m.nextTurn++
	return nil
}

// UpdateTurn implements session.Repository.
func (m *Memory) UpdateTurn(ctx context.Context, t *engine.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.turns[t.ID]
	if !ok {
		return fmt.Errorf("turn `%d`: %w", t.ID, engine.ErrTurnNotFound)
	}

	c := t.Clone()
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = m.now()
	m.turns[c.ID] = c
	return nil
}

// Turn returns a stored turn by id.
func (m *Memory) Turn(ctx context.Context, id uint32) (*engine.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.turns[id]
	if !ok {
		return nil, fmt.Errorf("turn `%d`: %w", id, engine.ErrTurnNotFound)
	}
	return t.Clone(), nil
}

// deleteUser, deleteGame, deleteTurn and putTurn undo a mutation whose
// file write failed.
func (m *Memory) deleteUser(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *Memory) deleteGame(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
	for turnID, t := range m.turns {
		if t.GameID == id {
			delete(m.turns, turnID)
		}
	}
}

func (m *Memory) deleteTurn(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, id)
}

func (m *Memory) putTurn(t *engine.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[t.ID] = t
}

func cloneUser(u *engine.User) *engine.User {
	c := *u
	if u.Login != nil {
		login := *u.Login
		c.Login = &login
	}
	return &c
}
