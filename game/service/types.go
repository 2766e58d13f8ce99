package service

import (
	"time"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

// CreateUserRequest registers a player.
type CreateUserRequest struct {
	SteamID int64  `json:"steam_id"`
	Login   string `json:"login,omitempty"`
}

// CreateGameRequest describes a new game. Fields left nil come from the
// preset (or the default preset when Preset is empty). Rnd is random when
// nil.
type CreateGameRequest struct {
	OwnerID    uint32          `json:"owner_id"`
	Preset     string          `json:"preset,omitempty"`
	WorldID    *uint8          `json:"world_id,omitempty"`
	TrackID    *uint8          `json:"track_id,omitempty"`
	GameType   *kdlab.GameType `json:"game_type,omitempty"`
	Laps       *uint32         `json:"laps,omitempty"`
	Seeds      *uint32         `json:"seeds,omitempty"`
	Duration   *uint32         `json:"duration,omitempty"`
	PlayersCnt *uint32         `json:"players_cnt,omitempty"`
	IsExpress  *bool           `json:"is_express,omitempty"`
	Rnd        *uint16         `json:"rnd,omitempty"`
}

// GameInfo is the detailed view of one game.
type GameInfo struct {
	Game     *engine.Game `json:"game"`
	Location string       `json:"location"`
	Status   string       `json:"status"`
	MoveCnt  uint32       `json:"move_cnt"`
	Joined   uint32       `json:"joined"`
	Turns    []TurnInfo   `json:"turns"`
}

// TurnInfo is one turn row with its owner's nickname.
type TurnInfo struct {
	*engine.Turn
	Nickname string `json:"nickname"`
}

// GameSummary is a row of the game list.
type GameSummary struct {
	ID         uint32    `json:"id"`
	Owner      string    `json:"owner"`
	Location   string    `json:"location"`
	GameType   string    `json:"game_type"`
	Laps       uint32    `json:"laps"`
	Seeds      uint32    `json:"seeds"`
	Duration   uint32    `json:"duration"`
	PlayersCnt uint32    `json:"players_cnt"`
	Joined     uint32    `json:"joined"`
	IsExpress  bool      `json:"is_express"`
	CreatedAt  time.Time `json:"created_at"`
}

// PresetInfo provides information about a game preset
type PresetInfo struct {
	Filename    string `json:"filename"`
	PresetID    string `json:"preset_id"` // The identifier to use for game creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	PlayersCnt  uint32 `json:"players_cnt"`
	IsExpress   bool   `json:"is_express"`
}
