package engine

import (
	"errors"
	"fmt"
)

var (
	ErrGameNotFound           = errors.New("game not found")
	ErrGameNotActive          = errors.New("game not active")
	ErrIncorrectPlayerID      = errors.New("player not found at this game")
	ErrIncorrectStepNumber    = errors.New("incorrect step number")
	ErrIncorrectIncomeSteps   = errors.New("incorrect income steps")
	ErrIncorrectIncomePlayers = errors.New("incorrect income players")
	ErrUnexpectedPacketType   = errors.New("unexpected packet type")
	ErrStorage                = errors.New("storage error")

	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrTurnNotFound  = errors.New("turn not found")
	ErrDuplicateTurn = errors.New("turn already exists for this slot and step")
	ErrInvalidWorld  = errors.New("invalid world")
	ErrInvalidGame   = errors.New("invalid game")
)

// GameNotFound returns ErrGameNotFound annotated with the game id.
func GameNotFound(id uint32) error {
	return fmt.Errorf("game `%d`: %w", id, ErrGameNotFound)
}

// StorageError wraps a repository failure so it matches ErrStorage while
// keeping the cause inspectable. Nil stays nil.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
