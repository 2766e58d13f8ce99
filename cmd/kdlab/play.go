package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/Fenex/samogonki-srv/api"
	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
	"github.com/Fenex/samogonki-srv/game/service"
)

const (
	replyOK       = "OK:KDLAB"
	replyNextMove = "NEXT_MOVE"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Create a game on a running server and race it with bots over the legacy endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "server base URL",
				Sources: cli.EnvVars("KDLAB_SERVER"),
			},
			&cli.IntFlag{Name: "players", Value: 2, Usage: "number of bots"},
			&cli.IntFlag{Name: "steps", Value: 3, Usage: "steps to race"},
			&cli.StringFlag{Name: "preset", Usage: "preset name (server default otherwise)"},
			&cli.DurationFlag{Name: "poll", Value: 200 * time.Millisecond, Usage: "refresh poll interval"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute, Usage: "give up after this long"},
		},
		Action: playAction,
	}
}

func playAction(ctx context.Context, cmd *cli.Command) error {
	players, steps := cmd.Int("players"), cmd.Int("steps")
	if players < engine.MinPlayers || players > engine.MaxPlayers {
		return fmt.Errorf("players must be between %d and %d", engine.MinPlayers, engine.MaxPlayers)
	}
	if steps < 1 {
		return fmt.Errorf("steps must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	c := newGameClient(cmd.String("server"))
	game, err := c.setup(ctx, players, cmd.String("preset"))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"game_id":  game.Game.ID,
		"location": game.Location,
		"players":  players,
	}).Info("game ready")

	var wg sync.WaitGroup
	errs := make(chan error, players)
	for pid := 0; pid < players; pid++ {
		r := &racer{
			client: c,
			gameID: game.Game.ID,
			pid:    uint32(pid),
			steps:  uint32(steps),
			poll:   cmd.Duration("poll"),
			rng:    rand.New(rand.NewPCG(uint64(game.Game.ID), uint64(pid))),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.race(ctx); err != nil {
				errs <- fmt.Errorf("slot %d: %w", r.pid, err)
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}

	final, err := c.game(ctx, game.Game.ID)
	if err != nil {
		return err
	}
	return printStandings(cmd.Root().Writer, final)
}

// gameClient talks to both the admin API and the legacy endpoint.
type gameClient struct {
	baseURL string
	client  *http.Client
}

func newGameClient(baseURL string) *gameClient {
	return &gameClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *gameClient) postJSON(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, result)
}

func (c *gameClient) doJSON(req *http.Request, result any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parse %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *gameClient) game(ctx context.Context, id uint32) (*service.GameInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/games/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	var info service.GameInfo
	return &info, c.doJSON(req, &info)
}

// setup registers the bots, creates the game with the first one as owner
// and joins the rest.
func (c *gameClient) setup(ctx context.Context, players int, preset string) (*service.GameInfo, error) {
	base := time.Now().UnixNano() / 1000
	users := make([]engine.User, players)
	for i := range users {
		req := service.CreateUserRequest{SteamID: base + int64(i), Login: fmt.Sprintf("bot-%d", i)}
		if err := c.postJSON(ctx, "/api/users", req, &users[i]); err != nil {
			return nil, err
		}
	}

	n := uint32(players)
	var game service.GameInfo
	err := c.postJSON(ctx, "/api/games", service.CreateGameRequest{
		OwnerID:    users[0].ID,
		Preset:     preset,
		PlayersCnt: &n,
	}, &game)
	if err != nil {
		return nil, err
	}

	for _, u := range users[1:] {
		body := map[string]uint32{"user_id": u.ID}
		if err := c.postJSON(ctx, fmt.Sprintf("/api/games/%d/join", game.Game.ID), body, &game); err != nil {
			return nil, err
		}
	}
	return &game, nil
}

// info fetches the opening packet of a slot.
func (c *gameClient) info(ctx context.Context, gameID, pid uint32) (*kdlab.Packet, error) {
	q := url.Values{}
	q.Set("ID", fmt.Sprint(gameID))
	q.Set("USERID", fmt.Sprint(pid))
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+api.LegacyPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.legacy(req)
	if err != nil {
		return nil, err
	}
	p, ok := kdlab.Decode(body)
	if !ok {
		return nil, fmt.Errorf("malformed info packet: %q", body)
	}
	return p, nil
}

// send posts a packet and returns the raw reply.
func (c *gameClient) send(ctx context.Context, p *kdlab.Packet) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+api.LegacyPath, strings.NewReader(kdlab.Encode(p)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	return c.legacy(req)
}

func (c *gameClient) legacy(req *http.Request) (string, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// racer plays one slot the way the game client does: acknowledge the game,
// then per step send the move, poll until every slot has moved, and report
// the replay results.
type racer struct {
	client *gameClient
	gameID uint32
	pid    uint32
	steps  uint32
	poll   time.Duration
	rng    *rand.Rand
}

func (r *racer) race(ctx context.Context) error {
	header, err := r.client.info(ctx, r.gameID, r.pid)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	if err := r.expectOK(ctx, header); err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}

	for step := uint32(1); step <= r.steps; step++ {
		move := r.move(step)

		seeds := r.packet(header, kdlab.SeedsPacket, step-1)
		seeds.Steps = []kdlab.PlayerTurnInfo{move}
		if err := r.expectOK(ctx, seeds); err != nil {
			return fmt.Errorf("step %d move: %w", step, err)
		}

		game, err := r.waitForStep(ctx, header, move)
		if err != nil {
			return fmt.Errorf("step %d refresh: %w", step, err)
		}

		results := r.packet(header, kdlab.ControlPacket, game.MoveCnt)
		results.Players = game.Players
		results.Steps = r.results(game.Steps, step == r.steps)
		if err := r.expectOK(ctx, results); err != nil {
			return fmt.Errorf("step %d results: %w", step, err)
		}

		log.WithFields(log.Fields{
			"game_id": r.gameID,
			"pid":     r.pid,
			"step":    step,
		}).Debug("step done")
	}
	return nil
}

func (r *racer) packet(header *kdlab.Packet, t kdlab.PacketType, moveCnt uint32) *kdlab.Packet {
	p := header.Clone()
	p.Type = t
	p.SenderPID = r.pid
	p.MoveCnt = moveCnt
	p.Players = nil
	p.Steps = nil
	return p
}

func (r *racer) expectOK(ctx context.Context, p *kdlab.Packet) error {
	reply, err := r.client.send(ctx, p)
	if err != nil {
		return err
	}
	if reply != replyOK && reply != replyNextMove {
		return fmt.Errorf("unexpected reply %q", reply)
	}
	return nil
}

func (r *racer) waitForStep(ctx context.Context, header *kdlab.Packet, move kdlab.PlayerTurnInfo) (*kdlab.Packet, error) {
	refresh := r.packet(header, kdlab.RefreshPacket, move.StepNumber-1)
	refresh.Steps = []kdlab.PlayerTurnInfo{move}

	for {
		reply, err := r.client.send(ctx, refresh)
		if err != nil {
			return nil, err
		}
		p, ok := kdlab.Decode(reply)
		if !ok {
			return nil, fmt.Errorf("malformed refresh reply: %q", reply)
		}
		if p.Type == kdlab.GamePacket {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

// move draws a random path of seed points for one step.
func (r *racer) move(step uint32) kdlab.PlayerTurnInfo {
	n := 2 + r.rng.IntN(12)
	points := make([]string, n)
	for i := range points {
		points[i] = fmt.Sprintf("%d#%d#%d#-1", r.rng.IntN(2048), r.rng.IntN(2048), 48+r.rng.IntN(60))
	}
	return kdlab.PlayerTurnInfo{
		StepNumber:   step,
		PlayerID:     r.pid,
		UserSeedsCnt: uint32(n),
		Seeds:        strings.Join(points, "#"),
	}
}

// results turns the moves of a completed step into replay statistics. Every
// racer computes the same ranks, so the report does not depend on who
// sends it first.
func (r *racer) results(moves []kdlab.PlayerTurnInfo, last bool) []kdlab.PlayerTurnInfo {
	out := make([]kdlab.PlayerTurnInfo, len(moves))
	for i, m := range moves {
		out[i] = kdlab.PlayerTurnInfo{
			StepNumber:    m.StepNumber,
			PlayerID:      m.PlayerID,
			IsFinished:    last,
			Rank:          uint32(i + 1),
			MoveTime:      10 * m.StepNumber,
			MoveSteps:     m.UserSeedsCnt,
			BottlesCnt:    m.UserSeedsCnt + m.PlayerID,
			TotalSeedsCnt: m.UserSeedsCnt,
		}
	}
	return out
}

func printStandings(w io.Writer, info *service.GameInfo) error {
	latest := map[uint32]service.TurnInfo{}
	for _, t := range info.Turns {
		if cur, ok := latest[t.PlayerNumber]; !ok || t.StepNumber >= cur.StepNumber {
			latest[t.PlayerNumber] = t
		}
	}

	fmt.Fprintf(w, "Game #%d at %s: %s, move %d\n", info.Game.ID, info.Location, info.Status, info.MoveCnt)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tPLAYER\tSTEP\tRANK\tBOTTLES\tFINISHED")
	for slot := uint32(0); slot < uint32(len(latest)); slot++ {
		t, ok := latest[slot]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%t\n", slot, t.Nickname, t.StepNumber, t.Rank, t.BottlesCnt, t.IsFinished)
	}
	return tw.Flush()
}
