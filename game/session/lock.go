package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Locker serializes writers of the same game. Lock blocks until the game is
// free or ctx is done and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, gameID uint32) (func(), error)
}

// LocalLocker is a Locker for a single server process.
type LocalLocker struct {
	mu    sync.Mutex
	games map[uint32]*gameLock
}

type gameLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{games: make(map[uint32]*gameLock)}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, gameID uint32) (func(), error) {
	l.mu.Lock()
	gl, ok := l.games[gameID]
	if !ok {
		gl = &gameLock{ch: make(chan struct{}, 1)}
		l.games[gameID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	select {
	case gl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(gameID, gl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-gl.ch
			l.release(gameID, gl)
		})
	}, nil
}

func (l *LocalLocker) release(gameID uint32, gl *gameLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	gl.refs--
	if gl.refs == 0 {
		delete(l.games, gameID)
	}
}

const (
	redisLockPrefix = "game-lock:"
	redisRetryDelay = 25 * time.Millisecond
)

// ErrLockLost is logged when a redis lock expired before it was released.
var ErrLockLost = errors.New("game lock expired before release")

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every server instance using the same
// redis. Locks expire after ttl so a crashed holder cannot block a game.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisLocker creates a locker on top of client.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, gameID uint32) (func(), error) {
	key := redisLockPrefix + strconv.FormatUint(uint64(gameID), 10)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(redisRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled here.
			n, err := unlockScript.Run(context.Background(), l.client, []string{key}, token).Int()
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to release game lock")
				return
			}
			if n == 0 {
				log.WithError(ErrLockLost).WithField("key", key).Warn("game lock released late")
			}
		})
	}, nil
}
