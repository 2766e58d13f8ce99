package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/kdlab"
)

func (s *GameSession) require(p *kdlab.Packet, want kdlab.PacketType) error {
	if !s.bound {
		return fmt.Errorf("session is not bound to a player: %w", ErrIncorrectPlayerID)
	}
	if p.Type != want {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedPacketType, p.Type, want)
	}
	return nil
}

// ApplyResults records the outcome a client computed for the most recently
// completed step, as reported in a control packet.
func (s *GameSession) ApplyResults(ctx context.Context, p *kdlab.Packet) error {
	if err := s.require(p, kdlab.ControlPacket); err != nil {
		return err
	}
	if s.Status() != Started {
		return fmt.Errorf("game `%d`: %w", s.game.ID, ErrGameNotActive)
	}
	if p.MoveCnt == 0 && len(p.Steps) == 0 {
		return nil
	}

	current := s.MoveCnt() + 1
	step := p.MoveCnt
	if step+1 != current {
		return fmt.Errorf("%w: results for step %d, current step is %d", ErrIncorrectStepNumber, step, current)
	}

	var income []kdlab.PlayerTurnInfo
	for _, e := range p.Steps {
		if e.StepNumber == step {
			income = append(income, e)
		}
	}
	if len(income) != int(s.game.PlayersCnt) {
		return fmt.Errorf("%w: got %d entries for step %d, want %d", ErrIncorrectIncomeSteps, len(income), step, s.game.PlayersCnt)
	}

	type change struct {
		idx    int
		entry  kdlab.PlayerTurnInfo
		player kdlab.Player
	}
	var changes []change

	// Everything is checked before the first write.
	for i, pt := range s.turns {
		if pt.Turn.StepNumber != step {
			continue
		}
		c := change{idx: i}
		found := false
		for _, e := range income {
			if e.PlayerID == pt.Turn.PlayerNumber {
				c.entry, found = e, true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: no entry for pid %d", ErrIncorrectIncomeSteps, pt.Turn.PlayerNumber)
		}
		if c.player, found = p.Player(pt.Turn.PlayerNumber); !found {
			return fmt.Errorf("%w: no player with uid %d", ErrIncorrectIncomePlayers, pt.Turn.PlayerNumber)
		}
		changes = append(changes, c)
	}

	for _, c := range changes {
		t := s.turns[c.idx].Turn.Clone()
		t.setStats(c.entry)
		t.setProps(c.player)
		if err := s.writer.UpdateTurn(ctx, t); err != nil {
			return StorageError(err)
		}
		s.turns[c.idx].Turn = t
	}

	log.WithFields(log.Fields{
		"game_id": s.game.ID,
		"pid":     s.pid,
		"step":    step,
		"turns":   len(changes),
	}).Debug("results applied")

	return nil
}

// ApplyStep records the bound player's own move for the current step.
func (s *GameSession) ApplyStep(ctx context.Context, p *kdlab.Packet) error {
	if err := s.require(p, kdlab.SeedsPacket); err != nil {
		return err
	}
	if s.Status() != Started {
		return fmt.Errorf("game `%d`: %w", s.game.ID, ErrGameNotActive)
	}

	current := s.MoveCnt() + 1

	var entry *kdlab.PlayerTurnInfo
	for i := range p.Steps {
		if p.Steps[i].PlayerID == s.pid && p.Steps[i].StepNumber == current {
			entry = &p.Steps[i]
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("%w: no entry for pid %d at step %d", ErrIncorrectStepNumber, s.pid, current)
	}

	idx, ok := s.latest(s.pid)
	if !ok {
		return fmt.Errorf("pid=`%d`: %w", s.pid, ErrIncorrectPlayerID)
	}

	t := s.turns[idx].Turn.Clone()
	insert := t.StepNumber != current
	if insert {
		t.ID = 0
		t.IsReceived = false
		t.StepNumber = current
		t.UserSeedsCnt = 0
		t.Seeds = nil
	}

	t.setStats(*entry)
	t.UserSeedsCnt = entry.UserSeedsCnt
	t.Seeds = nil
	if entry.Seeds != "" {
		seeds := entry.Seeds
		t.Seeds = &seeds
	}
	if player, ok := p.Player(s.pid); ok {
		t.setProps(player)
	}

	if insert {
		id, err := s.writer.InsertTurn(ctx, t)
		if err != nil {
			return StorageError(err)
		}
		t.ID = id
		s.turns = append(s.turns, PlayerTurn{Turn: t, User: s.turns[idx].User})
	} else {
		if err := s.writer.UpdateTurn(ctx, t); err != nil {
			return StorageError(err)
		}
		s.turns[idx].Turn = t
	}

	log.WithFields(log.Fields{
		"game_id": s.game.ID,
		"pid":     s.pid,
		"step":    current,
		"insert":  insert,
	}).Debug("step applied")

	return nil
}
