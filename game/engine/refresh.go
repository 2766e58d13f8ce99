package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

// InfoPassword is sent in every snapshot packet. Clients echo it back but
// the server never checks it.
const InfoPassword = "password"

// RefreshPacket answers a poll for step p.MoveCnt+1.
//
// While some players have not moved yet the answer is a refresh-answer
// packet with the moves collected so far. Once the step is complete the
// answer is a game packet with the full roster, and the requester's record
// for that step is marked as received.
func (s *GameSession) RefreshPacket(ctx context.Context, p *kdlab.Packet) (*kdlab.Packet, error) {
	if err := s.require(p, kdlab.RefreshPacket); err != nil {
		return nil, err
	}

	requested := p.MoveCnt + 1

	var done []int
	for i, pt := range s.turns {
		if pt.Turn.StepNumber == requested && pt.Turn.HasSeeds() {
			done = append(done, i)
		}
	}

	answer := p.Clone()
	answer.Players = nil
	answer.Steps = make([]kdlab.PlayerTurnInfo, 0, len(done))
	for _, i := range done {
		answer.Steps = append(answer.Steps, s.turns[i].Turn.TurnInfo())
	}

	if len(done) < int(s.game.PlayersCnt) {
		answer.Type = kdlab.RefreshAnswerPacket
		return answer, nil
	}

	answer.Type = kdlab.GamePacket
	answer.MoveCnt = s.MoveCnt()
	answer.Players = make([]kdlab.Player, 0, len(done))
	for _, i := range done {
		answer.Players = append(answer.Players, s.turns[i].Player())
	}

	if err := s.markReceived(ctx, requested); err != nil {
		return nil, err
	}

	return answer, nil
}

// markReceived flags the bound player's record at step as delivered. It
// writes at most once per record.
func (s *GameSession) markReceived(ctx context.Context, step uint32) error {
	idx, ok := s.find(s.pid, step)
	if !ok {
		log.WithFields(log.Fields{
			"game_id": s.game.ID,
			"pid":     s.pid,
			"step":    step,
		}).Warn("refresh: requester has no record at completed step")
		return nil
	}
	if s.turns[idx].Turn.IsReceived {
		return nil
	}

	t := s.turns[idx].Turn.Clone()
	t.IsReceived = true
	if err := s.writer.UpdateTurn(ctx, t); err != nil {
		return StorageError(err)
	}
	s.turns[idx].Turn = t
	return nil
}

// Info builds the full snapshot sent on a client's first connection.
func (s *GameSession) Info(t kdlab.PacketType) *kdlab.Packet {
	moveCnt := s.MoveCnt()

	var players []kdlab.Player
	for slot := uint32(0); ; slot++ {
		idx, ok := s.latest(slot)
		if !ok {
			break
		}
		players = append(players, s.turns[idx].Player())
	}

	var steps []kdlab.PlayerTurnInfo
	for _, pt := range s.turns {
		if pt.Turn.StepNumber <= moveCnt && pt.Turn.HasSeeds() {
			steps = append(steps, pt.Turn.TurnInfo())
		}
	}

	return &kdlab.Packet{
		Version:   kdlab.ProtocolVersion,
		Type:      t,
		GameID:    s.game.ID,
		Language:  kdlab.Ru,
		OwnerPID:  s.ownerPID(),
		SenderPID: s.pid,
		Password:  InfoPassword,
		WorldID:   s.game.WorldID,
		TrackID:   s.game.TrackID,
		Rnd:       s.game.Rnd,
		GameType:  s.game.GameType,
		Laps:      s.game.Laps,
		Seeds:     s.game.Seeds,
		Duration:  s.game.Duration,
		MoveCnt:   moveCnt,
		IsExpress: s.game.IsExpress,
		Players:   players,
		Steps:     steps,
	}
}
