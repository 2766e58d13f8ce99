package service

import (
	"context"
	"errors"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

var (
	ErrAlreadyJoined  = errors.New("user already joined the game")
	ErrGameFull       = errors.New("game is full")
	ErrPresetNotFound = errors.New("preset not found")
)

// GameService defines all game-related operations
type GameService interface {
	// KDLAB protocol
	Info(ctx context.Context, gameID, pid uint32) (*kdlab.Packet, error)
	Control(ctx context.Context, p *kdlab.Packet) error
	Seeds(ctx context.Context, p *kdlab.Packet) error
	Refresh(ctx context.Context, p *kdlab.Packet) (*kdlab.Packet, error)

	// Users
	CreateUser(ctx context.Context, req CreateUserRequest) (*engine.User, error)
	GetUser(ctx context.Context, userID uint32) (*engine.User, error)

	// Games
	CreateGame(ctx context.Context, req CreateGameRequest) (*GameInfo, error)
	JoinGame(ctx context.Context, gameID, userID uint32) (*GameInfo, error)
	GetGame(ctx context.Context, gameID uint32) (*GameInfo, error)
	ListGames(ctx context.Context) ([]*GameSummary, error)

	// Presets
	ListPresets(ctx context.Context) ([]*PresetInfo, error)
	GetPreset(ctx context.Context, name string) (*engine.Preset, error)
}

// SessionManager loads game sessions and serializes writers.
type SessionManager interface {
	View(ctx context.Context, gameID, pid uint32, fn func(*engine.GameSession) error) error
	Update(ctx context.Context, gameID, pid uint32, fn func(*engine.GameSession) error) error
	Exclusive(ctx context.Context, gameID uint32, fn func(*engine.GameSession) error) error
	Load(ctx context.Context, gameID uint32) (*engine.GameSession, error)
}

// Store holds users and games outside of the per-request session.
type Store interface {
	CreateUser(ctx context.Context, u *engine.User) (uint32, error)
	GetUser(ctx context.Context, id uint32) (*engine.User, error)
	CreateGame(ctx context.Context, g *engine.Game, owner *engine.Turn) (uint32, error)
	ListGames(ctx context.Context) ([]engine.GameListing, error)
	InsertTurn(ctx context.Context, t *engine.Turn) (uint32, error)
}

// PresetManager handles game preset loading
type PresetManager interface {
	LoadPreset(name string) (*engine.Preset, error)
	ListPresets() ([]*PresetInfo, error)
	GetDefault() *engine.Preset
}
