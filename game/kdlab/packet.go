package kdlab

import (
	"fmt"
	"strings"
)

const (
	// Tag opens every packet.
	Tag = "KDLAB"
	// Terminator closes every packet.
	Terminator = "BITRIX"
	// ProtocolVersion is the version the server speaks.
	ProtocolVersion = 104
)

// PacketType identifies the purpose of a packet.
type PacketType uint8

const (
	// GamePacket carries the header and the moves made so far (server to client).
	GamePacket PacketType = iota + 1
	// ControlPacket acknowledges a game packet and reports replay results.
	ControlPacket
	// SeedsPacket carries a player's own move.
	SeedsPacket
	// CompletedGamePacket describes a finished game.
	CompletedGamePacket
	// SysPacket is an administrative consistency check.
	SysPacket
	// RefreshPacket polls the state of the current step of an express game.
	RefreshPacket
	// RefreshAnswerPacket answers a RefreshPacket while the step is incomplete.
	RefreshAnswerPacket
	// ArcadeGamePacket starts a test build from the server.
	ArcadeGamePacket
)

var packetTypeNames = map[PacketType]string{
	GamePacket:          "OG_GAME_PACKET",
	ControlPacket:       "OG_CONTROL_PACKET",
	SeedsPacket:         "OG_SEEDS_PACKET",
	CompletedGamePacket: "OG_COMPLETED_GAME_PACKET",
	SysPacket:           "OG_SYS_PACKET",
	RefreshPacket:       "OG_REFRESH_PACKET",
	RefreshAnswerPacket: "OG_REFRESH_ANSWER_PACKET",
	ArcadeGamePacket:    "OG_ARCADE_GAME_PACKET",
}

// Valid reports whether t is one of the eight known packet types.
func (t PacketType) Valid() bool {
	return t >= GamePacket && t <= ArcadeGamePacket
}

func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PacketType(%d)", uint8(t))
}

// CarriesRoster reports whether packets of this type may contain a player list.
func (t PacketType) CarriesRoster() bool {
	switch t {
	case SeedsPacket, RefreshPacket, RefreshAnswerPacket:
		return false
	}
	return true
}

// Language of the game client.
type Language uint8

const (
	Ru Language = 0
	En Language = 1
)

// Valid reports whether l is a known language.
func (l Language) Valid() bool {
	return l == Ru || l == En
}

// GameType decides when a race ends.
type GameType uint8

const (
	// Winner ends the race at the first finisher.
	Winner GameType = 1
	// All continues the race until everybody finishes.
	All GameType = 2
)

// ParseGameType parses the single-character wire form, ignoring case.
func ParseGameType(s string) (GameType, error) {
	switch strings.ToUpper(s) {
	case "W":
		return Winner, nil
	case "A":
		return All, nil
	}
	return 0, fmt.Errorf("unknown game type %q", s)
}

// Valid reports whether g is Winner or All.
func (g GameType) Valid() bool {
	return g == Winner || g == All
}

func (g GameType) String() string {
	switch g {
	case Winner:
		return "W"
	case All:
		return "A"
	}
	return "?"
}

func (g GameType) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid game type %d", uint8(g))
	}
	return []byte(g.String()), nil
}

func (g *GameType) UnmarshalText(text []byte) error {
	parsed, err := ParseGameType(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// URLProperty is the server address block of the header. The server never
// reads it back from clients.
type URLProperty struct {
	Post     string `json:"post"`
	PostPort uint16 `json:"post_port"`
	PostPath string `json:"post_path"`
	SReturn  string `json:"sreturn"`
}

// Player describes one roster slot.
type Player struct {
	UID      uint32 `json:"uid"`
	Nickname string `json:"nickname"`
	Pers     uint32 `json:"pers"`
	Car      uint32 `json:"car"`
	FWheel   uint32 `json:"fwheel"`
	BWheel   uint32 `json:"bwheel"`
	IsRobot  bool   `json:"is_robot"`
}

// NewPlayer returns a human player with the stock vehicle.
func NewPlayer(uid uint32, nickname string) Player {
	return Player{
		UID:      uid,
		Nickname: nickname,
		Pers:     1,
		Car:      1,
		FWheel:   1,
		BWheel:   1,
	}
}

// PlayerTurnInfo is one player's move for one step.
type PlayerTurnInfo struct {
	StepNumber    uint32 `json:"step_number"`
	PlayerID      uint32 `json:"player_id"`
	IsFinished    bool   `json:"is_finished"`
	Rank          uint32 `json:"rank"`
	MoveTime      uint32 `json:"move_time"`
	MoveSteps     uint32 `json:"move_steps"`
	BottlesCnt    uint32 `json:"bottles_cnt"`
	TotalSeedsCnt uint32 `json:"total_seeds_cnt"`
	ArcanesCnt    uint32 `json:"arcanes_cnt"`
	DestroysCnt   uint32 `json:"destroys_cnt"`
	UserSeedsCnt  uint32 `json:"user_seeds_cnt"`
	Seeds         string `json:"seeds"`
}

// Packet is a decoded KDLAB message.
type Packet struct {
	Version   uint32      `json:"version"`
	Type      PacketType  `json:"type"`
	GameID    uint32      `json:"game_id"`
	Language  Language    `json:"language"`
	OwnerPID  uint32      `json:"owner_pid"`
	SenderPID uint32      `json:"sender_pid"`
	Password  string      `json:"password"`
	WorldID   uint8       `json:"world_id"`
	TrackID   uint8       `json:"track_id"`
	Rnd       uint16      `json:"rnd"`
	GameType  GameType    `json:"game_type"`
	Laps      uint32      `json:"laps"`
	Seeds     uint32      `json:"seeds"`
	Duration  uint32      `json:"duration"`
	MoveCnt   uint32      `json:"move_cnt"`
	IsExpress bool        `json:"is_express"`
	URL       URLProperty `json:"url"`

	Players []Player         `json:"players"`
	Steps   []PlayerTurnInfo `json:"steps"`
}

// Clone returns a deep copy of p.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Players != nil {
		c.Players = append([]Player(nil), p.Players...)
	}
	if p.Steps != nil {
		c.Steps = append([]PlayerTurnInfo(nil), p.Steps...)
	}
	return &c
}

// MaxStep returns the highest step number among the entries, or 0.
func (p *Packet) MaxStep() uint32 {
	var top uint32
	for _, s := range p.Steps {
		if s.StepNumber > top {
			top = s.StepNumber
		}
	}
	return top
}

// Player returns the roster entry with the given uid.
func (p *Packet) Player(uid uint32) (Player, bool) {
	for _, pl := range p.Players {
		if pl.UID == uid {
			return pl, true
		}
	}
	return Player{}, false
}
