// Package session loads game sessions from storage and coordinates the
// requests that change them.
//
// Every request gets its own engine.GameSession built from a fresh read of
// the game and its turns. Requests that may write run under a per-game lock:
//
//	manager := session.NewManager(repo, session.NewLocalLocker())
//
//	err := manager.Update(ctx, gameID, pid, func(s *engine.GameSession) error {
//		return s.ApplyStep(ctx, packet)
//	})
//
// LocalLocker is enough for a single process. RedisLocker shares the lock
// between several server instances behind one redis.
package session
