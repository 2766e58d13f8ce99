package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Postgres stores users, games and turns in PostgreSQL.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to the database at dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// Migrate creates the tables if they are missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info("database schema is up to date")
	return nil
}

// Ping checks the connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.db.Close()
}

// CreateUser implements service.Store.
func (s *Postgres) CreateUser(ctx context.Context, u *engine.User) (uint32, error) {
	var id uint32
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (steam_id, login, is_blocked) VALUES ($1, $2, $3) RETURNING id`,
		u.SteamID, u.Login, int16(u.IsBlocked),
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("steam id %d: %w", u.SteamID, engine.ErrUserExists)
	}
	return id, err
}

// GetUser implements service.Store.
func (s *Postgres) GetUser(ctx context.Context, id uint32) (*engine.User, error) {
	var u engine.User
	var blocked int16
	err := s.db.QueryRow(ctx,
		`SELECT id, steam_id, login, is_blocked, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.SteamID, &u.Login, &blocked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user `%d`: %w", id, engine.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.IsBlocked = engine.UserBlocked(blocked)
	return &u, nil
}

// CreateGame implements service.Store.
func (s *Postgres) CreateGame(ctx context.Context, g *engine.Game, owner *engine.Turn) (uint32, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id uint32
	err = tx.QueryRow(ctx,
		`INSERT INTO games (owner_id, world_id, track_id, rnd, game_type, laps, seeds, duration, players_cnt, is_express)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		g.OwnerID, int16(g.WorldID), int16(g.TrackID), int32(g.Rnd), int16(g.GameType),
		g.Laps, g.Seeds, g.Duration, int16(g.PlayersCnt), g.IsExpress,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	t := owner.Clone()
	t.GameID = id
	if _, err := insertTurn(ctx, tx, t); err != nil {
		return 0, err
	}

	return id, tx.Commit(ctx)
}

// ListGames implements service.Store.
func (s *Postgres) ListGames(ctx context.Context) ([]engine.GameListing, error) {
	rows, err := s.db.Query(ctx,
		`SELECT g.id, g.owner_id, g.world_id, g.track_id, g.rnd, g.game_type, g.laps, g.seeds, g.duration,
		        g.players_cnt, g.is_express, g.created_at, g.updated_at,
		        u.login, u.steam_id,
		        (SELECT COUNT(DISTINCT t.player_number) FROM turns t WHERE t.game_id = g.id)
		 FROM games g
		 JOIN users u ON u.id = g.owner_id
		 ORDER BY g.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []engine.GameListing
	for rows.Next() {
		var g engine.Game
		var gameType int16
		var owner engine.User
		var joined int64
		if err := rows.Scan(
			&g.ID, &g.OwnerID, &g.WorldID, &g.TrackID, &g.Rnd, &gameType, &g.Laps, &g.Seeds, &g.Duration,
			&g.PlayersCnt, &g.IsExpress, &g.CreatedAt, &g.UpdatedAt,
			&owner.Login, &owner.SteamID, &joined,
		); err != nil {
			return nil, err
		}
		g.GameType = kdlab.GameType(gameType)
		listings = append(listings, engine.GameListing{
			Game:       &g,
			OwnerLogin: owner.Nickname(),
			Joined:     uint32(joined),
		})
	}
	return listings, rows.Err()
}

// LoadGame implements session.Repository.
func (s *Postgres) LoadGame(ctx context.Context, id uint32) (*engine.Game, error) {
	var g engine.Game
	var gameType int16
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, world_id, track_id, rnd, game_type, laps, seeds, duration,
		        players_cnt, is_express, created_at, updated_at
		 FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.OwnerID, &g.WorldID, &g.TrackID, &g.Rnd, &gameType, &g.Laps, &g.Seeds, &g.Duration,
		&g.PlayersCnt, &g.IsExpress, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.GameNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	g.GameType = kdlab.GameType(gameType)
	return &g, nil
}

// LoadTurns implements session.Repository.
func (s *Postgres) LoadTurns(ctx context.Context, gameID uint32) ([]engine.PlayerTurn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.id, t.game_id, t.user_id, t.player_number, t.step_number, t.is_finished, t.rank,
		        t.move_time, t.move_steps, t.bottles_cnt, t.total_seeds_cnt, t.arcanes_cnt, t.destroys_cnt,
		        t.user_seeds_cnt, t.seeds, t.prop_pers, t.prop_car, t.prop_fwheel, t.prop_bwheel,
		        t.is_received, t.created_at, t.updated_at,
		        u.id, u.steam_id, u.login, u.is_blocked, u.created_at, u.updated_at
		 FROM turns t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.game_id = $1
		 ORDER BY t.id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []engine.PlayerTurn
	for rows.Next() {
		var t engine.Turn
		var u engine.User
		var blocked int16
		if err := rows.Scan(
			&t.ID, &t.GameID, &t.UserID, &t.PlayerNumber, &t.StepNumber, &t.IsFinished, &t.Rank,
			&t.MoveTime, &t.MoveSteps, &t.BottlesCnt, &t.TotalSeedsCnt, &t.ArcanesCnt, &t.DestroysCnt,
			&t.UserSeedsCnt, &t.Seeds, &t.PropPers, &t.PropCar, &t.PropFWheel, &t.PropBWheel,
			&t.IsReceived, &t.CreatedAt, &t.UpdatedAt,
			&u.ID, &u.SteamID, &u.Login, &blocked, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.IsBlocked = engine.UserBlocked(blocked)
		turns = append(turns, engine.PlayerTurn{Turn: &t, User: &u})
	}
	return turns, rows.Err()
}

// InsertTurn implements session.Repository.
func (s *Postgres) InsertTurn(ctx context.Context, t *engine.Turn) (uint32, error) {
	return insertTurn(ctx, s.db, t)
}

// UpdateTurn implements session.Repository.
func (s *Postgres) UpdateTurn(ctx context.Context, t *engine.Turn) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE turns SET
		    step_number = $2, is_finished = $3, rank = $4, move_time = $5, move_steps = $6,
		    bottles_cnt = $7, total_seeds_cnt = $8, arcanes_cnt = $9, destroys_cnt = $10,
		    user_seeds_cnt = $11, seeds = $12, prop_pers = $13, prop_car = $14, prop_fwheel = $15,
		    prop_bwheel = $16, is_received = $17, updated_at = now()
		 WHERE id = $1`,
		t.ID, t.StepNumber, t.IsFinished, t.Rank, t.MoveTime, t.MoveSteps,
		t.BottlesCnt, t.TotalSeedsCnt, t.ArcanesCnt, t.DestroysCnt,
		t.UserSeedsCnt, t.Seeds, t.PropPers, t.PropCar, t.PropFWheel,
		t.PropBWheel, t.IsReceived,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("turn `%d`: %w", t.ID, engine.ErrDuplicateTurn)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turn `%d`: %w", t.ID, engine.ErrTurnNotFound)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTurn(ctx context.Context, q queryRower, t *engine.Turn) (uint32, error) {
	var id uint32
	err := q.QueryRow(ctx,
		`INSERT INTO turns (game_id, user_id, player_number, step_number, is_finished, rank, move_time,
		                    move_steps, bottles_cnt, total_seeds_cnt, arcanes_cnt, destroys_cnt,
		                    user_seeds_cnt, seeds, prop_pers, prop_car, prop_fwheel, prop_bwheel, is_received)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 RETURNING id`,
		t.GameID, t.UserID, t.PlayerNumber, t.StepNumber, t.IsFinished, t.Rank, t.MoveTime,
		t.MoveSteps, t.BottlesCnt, t.TotalSeedsCnt, t.ArcanesCnt, t.DestroysCnt,
		t.UserSeedsCnt, t.Seeds, t.PropPers, t.PropCar, t.PropFWheel, t.PropBWheel, t.IsReceived,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("game `%d` slot %d step %d: %w", t.GameID, t.PlayerNumber, t.StepNumber, engine.ErrDuplicateTurn)
	}
	return id, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
