// Package engine holds the game model and the turn-synchronization rules of
// the racing server.
//
// A game has a fixed number of player slots. Each slot owns one Turn record
// per step; the step-1 record is created when the player joins, later ones
// when the player submits a move for a new step. A step is complete once
// every slot has submitted its move (the record's Seeds are set).
//
// GameSession is built from a loaded snapshot of a game and its turns and
// implements the server side of the client protocol:
//
//	s := engine.NewGameSession(game, turns, repo)
//	if err := s.SetPID(packet.SenderPID); err != nil {
//		return err
//	}
//	switch packet.Type {
//	case kdlab.ControlPacket:
//		err = s.ApplyResults(ctx, packet)
//	case kdlab.SeedsPacket:
//		err = s.ApplyStep(ctx, packet)
//	case kdlab.RefreshPacket:
//		answer, err = s.RefreshPacket(ctx, packet)
//	}
//
// Sessions are not safe for concurrent use; callers serialize writes per
// game.
package engine
