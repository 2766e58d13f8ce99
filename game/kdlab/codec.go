package kdlab

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const separator = ";"

// urlFields is the number of URL-block fields following the express flag.
const urlFields = 4

// Encode renders p in the KDLAB wire format.
//
// Rosters are dropped for packet types that never carry them, and only the
// entries at the highest step number are written, as a single step block.
func Encode(p *Packet) string {
	fields := []string{
		Tag,
		u32(p.Version),
		u32(uint32(p.Type)),
		u32(p.GameID),
		u32(uint32(p.Language)),
		u32(p.OwnerPID),
		u32(p.SenderPID),
		p.Password,
		u32(uint32(p.WorldID)),
		u32(uint32(p.TrackID)),
		u32(uint32(p.Rnd)),
		p.GameType.String(),
		u32(p.Laps),
		u32(p.Seeds),
		u32(p.Duration),
		u32(p.MoveCnt),
	}

	var players []Player
	if p.Type.CarriesRoster() {
		players = p.Players
	}

	maxStep := p.MaxStep()
	var steps []PlayerTurnInfo
	for _, s := range p.Steps {
		if s.StepNumber == maxStep {
			steps = append(steps, s)
		}
	}

	blocks := 0
	if len(steps) > 0 {
		blocks = 1
	}

	fields = append(fields,
		strconv.Itoa(len(players)),
		strconv.Itoa(blocks),
		yesNo(p.IsExpress),
		p.URL.Post,
		u32(uint32(p.URL.PostPort)),
		p.URL.PostPath,
		p.URL.SReturn,
	)

	for _, pl := range players {
		fields = append(fields,
			u32(pl.UID),
			pl.Nickname,
			u32(pl.Pers),
			u32(pl.Car),
			u32(pl.FWheel),
			u32(pl.BWheel),
			yesNo(pl.IsRobot),
		)
	}

	if len(steps) > 0 {
		fields = append(fields, u32(maxStep), strconv.Itoa(len(steps)))
		for _, s := range steps {
			fields = append(fields,
				u32(s.PlayerID),
				yesNo(s.IsFinished),
				u32(s.Rank),
				u32(s.MoveTime),
				u32(s.MoveSteps),
				u32(s.BottlesCnt),
				u32(s.TotalSeedsCnt),
				u32(s.ArcanesCnt),
				u32(s.DestroysCnt),
				u32(s.UserSeedsCnt),
				s.Seeds,
			)
		}
	}

	fields = append(fields, Terminator)
	return strings.Join(fields, separator)
}

// Decode parses a KDLAB packet. It reports false when the input does not
// start with the tag, a field fails its scalar parse, or the input ends
// before the declared players and step blocks are read.
//
// Trailing data after the last step block is tolerated; anything other than
// the terminator is logged.
func Decode(input string) (*Packet, bool) {
	r := &fieldReader{fields: strings.Split(input, separator)}

	if tag, ok := r.next(); !ok || tag != Tag {
		return nil, false
	}

	p := &Packet{}
	var ok bool

	if p.Version, ok = r.uint32(); !ok {
		return nil, false
	}
	t, ok := r.uint8()
	if !ok || !PacketType(t).Valid() {
		return nil, false
	}
	p.Type = PacketType(t)
	if p.GameID, ok = r.uint32(); !ok {
		return nil, false
	}
	lang, ok := r.uint8()
	if !ok || !Language(lang).Valid() {
		return nil, false
	}
	p.Language = Language(lang)
	if p.OwnerPID, ok = r.uint32(); !ok {
		return nil, false
	}
	if p.SenderPID, ok = r.uint32(); !ok {
		return nil, false
	}
	if p.Password, ok = r.next(); !ok {
		return nil, false
	}
	if p.WorldID, ok = r.uint8(); !ok {
		return nil, false
	}
	if p.TrackID, ok = r.uint8(); !ok {
		return nil, false
	}
	if p.Rnd, ok = r.uint16(); !ok {
		return nil, false
	}
	gt, ok := r.next()
	if !ok {
		return nil, false
	}
	gameType, err := ParseGameType(gt)
	if err != nil {
		return nil, false
	}
	p.GameType = gameType
	if p.Laps, ok = r.uint32(); !ok {
		return nil, false
	}
	if p.Seeds, ok = r.uint32(); !ok {
		return nil, false
	}
	if p.Duration, ok = r.uint32(); !ok {
		return nil, false
	}
	if p.MoveCnt, ok = r.uint32(); !ok {
		return nil, false
	}
	playersCnt, ok := r.uint32()
	if !ok {
		return nil, false
	}
	stepsCnt, ok := r.uint32()
	if !ok {
		return nil, false
	}
	express, ok := r.next()
	if !ok {
		return nil, false
	}
	p.IsExpress = express == "Y"

	log.WithFields(log.Fields{
		"packet_type": p.Type,
		"steps_cnt":   stepsCnt,
	}).Debug("kdlab: decoding packet")

	// URL block is consumed and discarded; a short block is not an error.
	r.skip(urlFields)

	if playersCnt > 0 && p.Type.CarriesRoster() {
		p.Players = make([]Player, 0, r.capacity(playersCnt))
		for i := uint32(0); i < playersCnt; i++ {
			pl, ok := r.player()
			if !ok {
				return nil, false
			}
			p.Players = append(p.Players, pl)
		}
	}

	for i := uint32(0); i < stepsCnt; i++ {
		block, ok := r.stepBlock()
		if !ok {
			return nil, false
		}
		p.Steps = append(p.Steps, block...)
	}

	if tail := r.rest(); strings.TrimSpace(tail) != Terminator {
		log.WithField("tail", tail).Warn("kdlab: undecoded tail")
	}

	return p, true
}

type fieldReader struct {
	fields []string
	pos    int
}

func (r *fieldReader) next() (string, bool) {
	if r.pos >= len(r.fields) {
		return "", false
	}
	f := r.fields[r.pos]
	r.pos++
	return f, true
}

func (r *fieldReader) skip(n int) {
	r.pos += n
	if r.pos > len(r.fields) {
		r.pos = len(r.fields)
	}
}

func (r *fieldReader) rest() string {
	if r.pos >= len(r.fields) {
		return ""
	}
	return strings.Join(r.fields[r.pos:], separator)
}

// capacity bounds a declared count by the number of fields left.
func (r *fieldReader) capacity(declared uint32) int {
	left := len(r.fields) - r.pos
	if int64(declared) < int64(left) {
		return int(declared)
	}
	return left
}

func (r *fieldReader) uint(bits int) (uint64, bool) {
	f, ok := r.next()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(f, 10, bits)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r *fieldReader) uint32() (uint32, bool) {
	v, ok := r.uint(32)
	return uint32(v), ok
}

func (r *fieldReader) uint16() (uint16, bool) {
	v, ok := r.uint(16)
	return uint16(v), ok
}

func (r *fieldReader) uint8() (uint8, bool) {
	v, ok := r.uint(8)
	return uint8(v), ok
}

func (r *fieldReader) flag() (bool, bool) {
	f, ok := r.next()
	return f == "Y", ok
}

func (r *fieldReader) player() (Player, bool) {
	var pl Player
	var ok bool
	if pl.UID, ok = r.uint32(); !ok {
		return pl, false
	}
	if pl.Nickname, ok = r.next(); !ok {
		return pl, false
	}
	for _, dst := range []*uint32{&pl.Pers, &pl.Car, &pl.FWheel, &pl.BWheel} {
		if *dst, ok = r.uint32(); !ok {
			return pl, false
		}
	}
	if pl.IsRobot, ok = r.flag(); !ok {
		return pl, false
	}
	return pl, true
}

func (r *fieldReader) stepBlock() ([]PlayerTurnInfo, bool) {
	step, ok := r.uint32()
	if !ok {
		return nil, false
	}
	count, ok := r.uint32()
	if !ok {
		return nil, false
	}

	entries := make([]PlayerTurnInfo, 0, r.capacity(count))
	for i := uint32(0); i < count; i++ {
		e := PlayerTurnInfo{StepNumber: step}
		if e.PlayerID, ok = r.uint32(); !ok {
			return nil, false
		}
		if e.IsFinished, ok = r.flag(); !ok {
			return nil, false
		}
		for _, dst := range []*uint32{
			&e.Rank, &e.MoveTime, &e.MoveSteps, &e.BottlesCnt, &e.TotalSeedsCnt,
			&e.ArcanesCnt, &e.DestroysCnt, &e.UserSeedsCnt,
		} {
			if *dst, ok = r.uint32(); !ok {
				return nil, false
			}
		}
		if e.Seeds, ok = r.next(); !ok {
			return nil, false
		}
		entries = append(entries, e)
	}
	return entries, true
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
