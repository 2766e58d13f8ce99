package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
)

const (
	usersFile = "users.json"
	gamesDir  = "games"
)

// persistedGame is the on-disk form of one game.
type persistedGame struct {
	Game  *engine.Game   `json:"game"`
	Turns []*engine.Turn `json:"turns"`
}

// File is a Memory store mirrored to JSON files in a directory: one file
// per game plus a users file. Everything is read back on start.
//
// Every mutation holds writeMu until its file is replaced, so files are
// written in mutation order. A failed write undoes the mutation.
type File struct {
	*Memory
	dir string

	writeMu sync.Mutex
}

// NewFile opens (or creates) a data directory.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(filepath.Join(dir, gamesDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f := &File{Memory: NewMemory(), dir: dir}
	if err := f.restore(); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateUser implements service.Store.
func (f *File) CreateUser(ctx context.Context, u *engine.User) (uint32, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.Memory.CreateUser(ctx, u)
	if err != nil {
		return 0, err
	}
	if err := f.saveUsers(); err != nil {
		f.Memory.deleteUser(id)
		return 0, err
	}
	return id, nil
}

// CreateGame implements service.Store.
func (f *File) CreateGame(ctx context.Context, g *engine.Game, owner *engine.Turn) (uint32, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.Memory.CreateGame(ctx, g, owner)
	if err != nil {
		return 0, err
	}
	if err := f.saveGame(id); err != nil {
		f.Memory.deleteGame(id)
		return 0, err
	}
	return id, nil
}

// InsertTurn implements session.Repository.
func (f *File) InsertTurn(ctx context.Context, t *engine.Turn) (uint32, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.Memory.InsertTurn(ctx, t)
	if err != nil {
		return 0, err
	}
	if err := f.saveGame(t.GameID); err != nil {
		f.Memory.deleteTurn(id)
		return 0, err
	}
	return id, nil
}

// UpdateTurn implements session.Repository.
func (f *File) UpdateTurn(ctx context.Context, t *engine.Turn) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	prev, err := f.Memory.Turn(ctx, t.ID)
	if err != nil {
		return err
	}
	if err := f.Memory.UpdateTurn(ctx, t); err != nil {
		return err
	}
	if err := f.saveGame(prev.GameID); err != nil {
		f.Memory.putTurn(prev)
		return err
	}
	return nil
}

// ListAll returns the ids of the games stored on disk.
func (f *File) ListAll() ([]uint32, error) {
	entries, err := os.ReadDir(filepath.Join(f.dir, gamesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}

	var ids []uint32
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Exists reports whether a game file is present.
func (f *File) Exists(id uint32) bool {
	_, err := os.Stat(f.gamePath(id))
	return err == nil
}

func (f *File) gamePath(id uint32) string {
	return filepath.Join(f.dir, gamesDir, fmt.Sprintf("%d.json", id))
}

func (f *File) saveUsers() error {
	f.mu.RLock()
	users := make([]*engine.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, cloneUser(u))
	}
	f.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return writeJSON(filepath.Join(f.dir, usersFile), users)
}

func (f *File) saveGame(id uint32) error {
	f.mu.RLock()
	g, ok := f.games[id]
	if !ok {
		f.mu.RUnlock()
		return engine.GameNotFound(id)
	}
	c := *g
	data := persistedGame{Game: &c}
	for _, t := range f.turns {
		if t.GameID == id {
			data.Turns = append(data.Turns, t.Clone())
		}
	}
	f.mu.RUnlock()

	sort.Slice(data.Turns, func(i, j int) bool { return data.Turns[i].ID < data.Turns[j].ID })
	return writeJSON(f.gamePath(id), data)
}

// writeJSON replaces path atomically through a temp file in the same
// directory.
func writeJSON(path string, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (f *File) restore() error {
	jsonData, err := os.ReadFile(filepath.Join(f.dir, usersFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read users: %w", err)
	default:
		var users []*engine.User
		if err := json.Unmarshal(jsonData, &users); err != nil {
			return fmt.Errorf("failed to unmarshal users: %w", err)
		}
		for _, u := range users {
			f.users[u.ID] = u
			if u.ID >= f.nextUser {
				f.nextUser = u.ID + 1
			}
		}
	}

	ids, err := f.ListAll()
	if err != nil {
		return err
	}
	for _, id := range ids {
		jsonData, err := os.ReadFile(f.gamePath(id))
		if err != nil {
			return fmt.Errorf("failed to read game %d: %w", id, err)
		}
		var data persistedGame
		if err := json.Unmarshal(jsonData, &data); err != nil {
			return fmt.Errorf("failed to unmarshal game %d: %w", id, err)
		}
		if data.Game == nil || data.Game.ID != id {
			log.WithField("file", f.gamePath(id)).Warn("skipping game file with mismatched id")
			continue
		}

		f.games[id] = data.Game
		if id >= f.nextGame {
			f.nextGame = id + 1
		}
		for _, t := range data.Turns {
			f.turns[t.ID] = t
			if t.ID >= f.nextTurn {
				f.nextTurn = t.ID + 1
			}
		}
	}

	log.WithFields(log.Fields{
		"dir":   f.dir,
		"users": len(f.users),
		"games": len(f.games),
	}).Info("file storage restored")
	return nil
}
