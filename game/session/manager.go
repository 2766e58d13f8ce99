package session

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
)

// Manager loads a fresh GameSession for every request and serializes the
// requests that may write.
type Manager struct {
	repo   Repository
	locker Locker
}

// NewManager creates a manager. A nil locker means NewLocalLocker.
func NewManager(repo Repository, locker Locker) *Manager {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Manager{repo: repo, locker: locker}
}

// View runs fn on a session bound to pid without taking the game lock.
func (m *Manager) View(ctx context.Context, gameID, pid uint32, fn func(*engine.GameSession) error) error {
	s, err := m.load(ctx, gameID)
	if err != nil {
		return err
	}
	if err := s.SetPID(pid); err != nil {
		return err
	}
	return fn(s)
}

// Update runs fn on a session bound to pid while holding the game lock, so
// the load, the change and its write are not interleaved with another
// writer of the same game.
func (m *Manager) Update(ctx context.Context, gameID, pid uint32, fn func(*engine.GameSession) error) error {
	return m.Exclusive(ctx, gameID, func(s *engine.GameSession) error {
		if err := s.SetPID(pid); err != nil {
			return err
		}
		return fn(s)
	})
}

// Exclusive runs fn on an unbound session while holding the game lock.
func (m *Manager) Exclusive(ctx context.Context, gameID uint32, fn func(*engine.GameSession) error) error {
	unlock, err := m.locker.Lock(ctx, gameID)
	if err != nil {
		return engine.StorageError(err)
	}
	defer unlock()

	s, err := m.load(ctx, gameID)
	if err != nil {
		return err
	}
	return fn(s)
}

// Load returns an unbound session for read-only use.
func (m *Manager) Load(ctx context.Context, gameID uint32) (*engine.GameSession, error) {
	return m.load(ctx, gameID)
}

func (m *Manager) load(ctx context.Context, gameID uint32) (*engine.GameSession, error) {
	game, err := m.repo.LoadGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, engine.ErrGameNotFound) {
			return nil, err
		}
		return nil, engine.StorageError(err)
	}

	turns, err := m.repo.LoadTurns(ctx, gameID)
	if err != nil {
		return nil, engine.StorageError(err)
	}

	log.WithFields(log.Fields{
		"game_id": gameID,
		"turns":   len(turns),
	}).Debug("session loaded")

	return engine.NewGameSession(game, turns, m.repo), nil
}
