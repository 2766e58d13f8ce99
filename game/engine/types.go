package engine

import (
	"fmt"
	"time"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

// Game is the immutable configuration of one race.
type Game struct {
	ID         uint32         `json:"id"`
	OwnerID    uint32         `json:"owner_id"`
	WorldID    uint8          `json:"world_id"`
	TrackID    uint8          `json:"track_id"`
	Rnd        uint16         `json:"rnd"`
	GameType   kdlab.GameType `json:"game_type"`
	Laps       uint32         `json:"laps"`
	Seeds      uint32         `json:"seeds"`
	Duration   uint32         `json:"duration"`
	PlayersCnt uint32         `json:"players_cnt"`
	IsExpress  bool           `json:"is_express"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Location returns the world and track the race is played on.
func (g *Game) Location() (Location, error) {
	return ParseWorld(g.WorldID, g.TrackID)
}

// Turn is one player's record for one step.
type Turn struct {
	ID            uint32  `json:"id"`
	GameID        uint32  `json:"game_id"`
	UserID        uint32  `json:"user_id"`
	PlayerNumber  uint32  `json:"player_number"`
	StepNumber    uint32  `json:"step_number"`
	IsFinished    bool    `json:"is_finished"`
	Rank          uint32  `json:"rank"`
	MoveTime      uint32  `json:"move_time"`
	MoveSteps     uint32  `json:"move_steps"`
	BottlesCnt    uint32  `json:"bottles_cnt"`
	TotalSeedsCnt uint32  `json:"total_seeds_cnt"`
	ArcanesCnt    uint32  `json:"arcanes_cnt"`
	DestroysCnt   uint32  `json:"destroys_cnt"`
	UserSeedsCnt  uint32  `json:"user_seeds_cnt"`
	Seeds         *string `json:"seeds"` // nil until the move for this step is submitted
	PropPers      uint32  `json:"prop_pers"`
	PropCar       uint32  `json:"prop_car"`
	PropFWheel    uint32  `json:"prop_fwheel"`
	PropBWheel    uint32  `json:"prop_bwheel"`
	// IsReceived is set once the player has been sent the completed step.
	IsReceived bool      `json:"is_received"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewTurn returns the step-1 record created when a user joins a game.
func NewTurn(gameID, userID, slot uint32) *Turn {
	return &Turn{
		GameID:       gameID,
		UserID:       userID,
		PlayerNumber: slot,
		StepNumber:   1,
		PropPers:     1,
		PropCar:      1,
		PropFWheel:   1,
		PropBWheel:   1,
	}
}

// HasSeeds reports whether the move for this step was submitted.
func (t *Turn) HasSeeds() bool {
	return t.Seeds != nil
}

// Clone returns a copy that shares nothing with t.
func (t *Turn) Clone() *Turn {
	c := *t
	if t.Seeds != nil {
		s := *t.Seeds
		c.Seeds = &s
	}
	return &c
}

// TurnInfo converts the record into its wire form.
func (t *Turn) TurnInfo() kdlab.PlayerTurnInfo {
	info := kdlab.PlayerTurnInfo{
		StepNumber:    t.StepNumber,
		PlayerID:      t.PlayerNumber,
		IsFinished:    t.IsFinished,
		Rank:          t.Rank,
		MoveTime:      t.MoveTime,
		MoveSteps:     t.MoveSteps,
		BottlesCnt:    t.BottlesCnt,
		TotalSeedsCnt: t.TotalSeedsCnt,
		ArcanesCnt:    t.ArcanesCnt,
		DestroysCnt:   t.DestroysCnt,
		UserSeedsCnt:  t.UserSeedsCnt,
	}
	if t.Seeds != nil {
		info.Seeds = *t.Seeds
	}
	return info
}

func (t *Turn) setStats(info kdlab.PlayerTurnInfo) {
	t.IsFinished = info.IsFinished
	t.Rank = info.Rank
	t.MoveTime = info.MoveTime
	t.MoveSteps = info.MoveSteps
	t.BottlesCnt = info.BottlesCnt
	t.TotalSeedsCnt = info.TotalSeedsCnt
	t.ArcanesCnt = info.ArcanesCnt
	t.DestroysCnt = info.DestroysCnt
}

func (t *Turn) setProps(p kdlab.Player) {
	t.PropPers = p.Pers
	t.PropCar = p.Car
	t.PropFWheel = p.FWheel
	t.PropBWheel = p.BWheel
}

// UserBlocked records who, if anyone, blocked an account.
type UserBlocked uint8

const (
	NotBlocked UserBlocked = iota
	BlockedByAdmin
	BlockedByModerator
	BlockedBySystem
)

// User is a registered player.
type User struct {
	ID        uint32      `json:"id"`
	SteamID   int64       `json:"steam_id"`
	Login     *string     `json:"login,omitempty"`
	IsBlocked UserBlocked `json:"is_blocked"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Nickname is the login, or "№<steam id>" for users without one.
func (u *User) Nickname() string {
	if u.Login != nil {
		return *u.Login
	}
	return fmt.Sprintf("№%d", u.SteamID)
}

// PlayerTurn is a turn record joined with the user who owns it.
type PlayerTurn struct {
	Turn *Turn `json:"turn"`
	User *User `json:"user"`
}

// Player converts the pair into a roster entry.
func (pt PlayerTurn) Player() kdlab.Player {
	return kdlab.Player{
		UID:      pt.Turn.PlayerNumber,
		Nickname: pt.User.Nickname(),
		Pers:     pt.Turn.PropPers,
		Car:      pt.Turn.PropCar,
		FWheel:   pt.Turn.PropFWheel,
		BWheel:   pt.Turn.PropBWheel,
	}
}

// GameListing is a game together with the summary shown in listings.
type GameListing struct {
	Game       *Game  `json:"game"`
	OwnerLogin string `json:"owner_login"`
	Joined     uint32 `json:"joined"`
}
