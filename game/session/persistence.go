package session

import (
	"context"

	"github.com/Fenex/samogonki-srv/game/engine"
)

// Repository is the storage contract a session is loaded from and written
// through.
type Repository interface {
	// LoadGame returns the game or an error wrapping engine.ErrGameNotFound.
	LoadGame(ctx context.Context, id uint32) (*engine.Game, error)

	// LoadTurns returns every turn of the game joined with its user,
	// ordered by turn id.
	LoadTurns(ctx context.Context, gameID uint32) ([]engine.PlayerTurn, error)

	// InsertTurn stores a new turn and returns its id.
	InsertTurn(ctx context.Context, t *engine.Turn) (uint32, error)

	// UpdateTurn overwrites the turn with the same id.
	UpdateTurn(ctx context.Context, t *engine.Turn) error
}
