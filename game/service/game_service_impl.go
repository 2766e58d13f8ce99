package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	store    Store
	presets  PresetManager
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, store Store, presets PresetManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		store:    store,
		presets:  presets,
	}
}

// Info returns the control snapshot of a game for one player.
func (s *gameServiceImpl) Info(ctx context.Context, gameID, pid uint32) (*kdlab.Packet, error) {
	var info *kdlab.Packet
	err := s.sessions.View(ctx, gameID, pid, func(gs *engine.GameSession) error {
		info = gs.Info(kdlab.ControlPacket)
		return nil
	})
	return info, err
}

// Control stores the replay results reported by the sender.
func (s *gameServiceImpl) Control(ctx context.Context, p *kdlab.Packet) error {
	return s.sessions.Update(ctx, p.GameID, p.SenderPID, func(gs *engine.GameSession) error {
		return gs.ApplyResults(ctx, p)
	})
}

// Seeds stores the sender's move for the next step.
func (s *gameServiceImpl) Seeds(ctx context.Context, p *kdlab.Packet) error {
	return s.sessions.Update(ctx, p.GameID, p.SenderPID, func(gs *engine.GameSession) error {
		return gs.ApplyStep(ctx, p)
	})
}

// Refresh answers an express-game poll.
func (s *gameServiceImpl) Refresh(ctx context.Context, p *kdlab.Packet) (*kdlab.Packet, error) {
	var answer *kdlab.Packet
	err := s.sessions.Update(ctx, p.GameID, p.SenderPID, func(gs *engine.GameSession) error {
		var err error
		answer, err = gs.RefreshPacket(ctx, p)
		return err
	})
	return answer, err
}

// CreateUser registers a player by steam id.
func (s *gameServiceImpl) CreateUser(ctx context.Context, req CreateUserRequest) (*engine.User, error) {
	u := &engine.User{SteamID: req.SteamID}
	if req.Login != "" {
		login := req.Login
		u.Login = &login
	}

	id, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.store.GetUser(ctx, id)
}

// GetUser returns a user by id.
func (s *gameServiceImpl) GetUser(ctx context.Context, userID uint32) (*engine.User, error) {
	return s.store.GetUser(ctx, userID)
}

// CreateGame creates a game and joins its owner as slot 0.
func (s *gameServiceImpl) CreateGame(ctx context.Context, req CreateGameRequest) (*GameInfo, error) {
	preset, err := s.preset(req.Preset)
	if err != nil {
		return nil, err
	}

	g := &engine.Game{OwnerID: req.OwnerID}
	preset.Apply(g)
	req.apply(g)
	if req.Rnd != nil {
		g.Rnd = *req.Rnd
	} else {
		g.Rnd = uint16(rand.IntN(1 << 16))
	}

	if err := engine.ValidateGame(g); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, req.OwnerID); err != nil {
		return nil, err
	}

	id, err := s.store.CreateGame(ctx, g, engine.NewTurn(0, req.OwnerID, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.WithFields(log.Fields{
		"game_id": id,
		"owner":   req.OwnerID,
		"preset":  preset.Name,
	}).Info("game created")

	return s.GetGame(ctx, id)
}

// JoinGame adds the user to the next free slot.
func (s *gameServiceImpl) JoinGame(ctx context.Context, gameID, userID uint32) (*GameInfo, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	var slot uint32
	err := s.sessions.Exclusive(ctx, gameID, func(gs *engine.GameSession) error {
		if gs.HasUser(userID) {
			return fmt.Errorf("user `%d` in game `%d`: %w", userID, gameID, ErrAlreadyJoined)
		}
		if gs.IsFull() {
			return fmt.Errorf("game `%d`: %w", gameID, ErrGameFull)
		}
		slot = gs.JoinedSlots()
		if _, err := s.store.InsertTurn(ctx, engine.NewTurn(gameID, userID, slot)); err != nil {
			return engine.StorageError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"game_id": gameID,
		"user_id": userID,
		"pid":     slot,
	}).Info("player joined")

	return s.GetGame(ctx, gameID)
}

// GetGame returns the detailed view of a game.
func (s *gameServiceImpl) GetGame(ctx context.Context, gameID uint32) (*GameInfo, error) {
	gs, err := s.sessions.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	g := gs.Game()
	info := &GameInfo{
		Game:     g,
		Location: location(g.WorldID, g.TrackID),
		Status:   gs.Status().String(),
		MoveCnt:  gs.MoveCnt(),
		Joined:   gs.JoinedSlots(),
	}
	for _, pt := range gs.Turns() {
		info.Turns = append(info.Turns, TurnInfo{Turn: pt.Turn, Nickname: pt.User.Nickname()})
	}
	return info, nil
}

// ListGames returns every game, newest first.
func (s *gameServiceImpl) ListGames(ctx context.Context) ([]*GameSummary, error) {
	listings, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, engine.StorageError(err)
	}

	result := make([]*GameSummary, 0, len(listings))
	for _, l := range listings {
		g := l.Game
		result = append(result, &GameSummary{
			ID:         g.ID,
			Owner:      l.OwnerLogin,
			Location:   location(g.WorldID, g.TrackID),
			GameType:   g.GameType.String(),
			Laps:       g.Laps,
			Seeds:      g.Seeds,
			Duration:   g.Duration,
			PlayersCnt: g.PlayersCnt,
			Joined:     l.Joined,
			IsExpress:  g.IsExpress,
			CreatedAt:  g.CreatedAt,
		})
	}
	return result, nil
}

// ListPresets returns the available presets.
func (s *gameServiceImpl) ListPresets(ctx context.Context) ([]*PresetInfo, error) {
	return s.presets.ListPresets()
}

// GetPreset returns a preset by name.
func (s *gameServiceImpl) GetPreset(ctx context.Context, name string) (*engine.Preset, error) {
	return s.preset(name)
}

func (s *gameServiceImpl) preset(name string) (*engine.Preset, error) {
	if name == "" {
		return s.presets.GetDefault(), nil
	}
	p, err := s.presets.LoadPreset(name)
	if err != nil {
		return nil, fmt.Errorf("preset '%s': %w", name, err)
	}
	return p, nil
}

func (r *CreateGameRequest) apply(g *engine.Game) {
	if r.WorldID != nil {
		g.WorldID = *r.WorldID
	}
	if r.TrackID != nil {
		g.TrackID = *r.TrackID
	}
	if r.GameType != nil {
		g.GameType = *r.GameType
	}
	if r.Laps != nil {
		g.Laps = *r.Laps
	}
	if r.Seeds != nil {
		g.Seeds = *r.Seeds
	}
	if r.Duration != nil {
		g.Duration = *r.Duration
	}
	if r.PlayersCnt != nil {
		g.PlayersCnt = *r.PlayersCnt
	}
	if r.IsExpress != nil {
		g.IsExpress = *r.IsExpress
	}
}

func location(worldID, trackID uint8) string {
	loc, err := engine.ParseWorld(worldID, trackID)
	if err != nil {
		return fmt.Sprintf("%s/%d", engine.World(worldID), trackID)
	}
	return loc.String()
}
