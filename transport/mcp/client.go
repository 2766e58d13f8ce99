package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
	"github.com/Fenex/samogonki-srv/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Samogonki Game Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Samogonki Game Server - MCP Interface

Administrative access to a KDLAB race server. All requests are proxied to the REST API.

Players are registered users (keyed by Steam id). A game is created by its owner, who
takes slot 0; other users join into the next free slot until players_cnt is reached.
The racing itself happens in the game client over the legacy KDLAB protocol.

AVAILABLE TOOLS:
- create_user / get_user: Register or look up a user
- list_games / get_game: Browse games with their turn records
- create_game: Create a game from a preset, with optional overrides
- join_game: Put a user into the next free slot of a game
- list_presets / get_preset: Inspect game presets
- decode_packet: Decode a raw KDLAB packet into readable fields`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	// Users
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_user",
		Description: "Register a user by Steam id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"steam_id": map[string]interface{}{
					"type":        "number",
					"description": "Steam id of the player",
				},
				"login": map[string]interface{}{
					"type":        "string",
					"description": "Display name (optional)",
				},
			},
			Required: []string{"steam_id"},
		},
	}, c.handleCreateUser)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_user",
		Description: "Get a registered user",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "number",
					"description": "User id",
				},
			},
			Required: []string{"user_id"},
		},
	}, c.handleGetUser)

	// Games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List all games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get a game with its status, current move and turn records",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "number",
					"description": "Game id",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGetGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a game owned by a user. Settings come from the preset and may be overridden.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": map[string]interface{}{
					"type":        "number",
					"description": "User id of the owner",
				},
				"preset": map[string]interface{}{
					"type":        "string",
					"description": "Preset name (optional, server default otherwise)",
				},
				"world_id": map[string]interface{}{
					"type":        "number",
					"description": "World id override",
				},
				"track_id": map[string]interface{}{
					"type":        "number",
					"description": "Track id override",
				},
				"game_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"W", "A"},
					"description": "W ends at the first finisher, A when everybody finishes",
				},
				"laps": map[string]interface{}{
					"type":        "number",
					"description": "Lap count override",
				},
				"seeds": map[string]interface{}{
					"type":        "number",
					"description": "Seed budget override",
				},
				"duration": map[string]interface{}{
					"type":        "number",
					"description": "Move duration override",
				},
				"players_cnt": map[string]interface{}{
					"type":        "number",
					"description": "Number of player slots",
				},
				"is_express": map[string]interface{}{
					"type":        "boolean",
					"description": "Express game flag",
				},
			},
			Required: []string{"owner_id"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Put a user into the next free slot of a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "number",
					"description": "Game id",
				},
				"user_id": map[string]interface{}{
					"type":        "number",
					"description": "User id",
				},
			},
			Required: []string{"game_id", "user_id"},
		},
	}, c.handleJoinGame)

	// Presets
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List available game presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_preset",
		Description: "Get the settings of one preset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Preset name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetPreset)

	// Protocol
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "decode_packet",
		Description: "Decode a raw KDLAB packet (the semicolon separated text the game client sends)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"packet": map[string]interface{}{
					"type":        "string",
					"description": "Raw packet starting with KDLAB;",
				},
			},
			Required: []string{"packet"},
		},
	}, c.handleDecodePacket)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
		contentType = "text/plain"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Argument helpers. JSON numbers arrive as float64.

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func uintArg(args map[string]interface{}, key string) (uint32, bool) {
	v, ok := args[key].(float64)
	if !ok || v < 0 || v > float64(^uint32(0)) {
		return 0, false
	}
	return uint32(v), true
}

func requireID(args map[string]interface{}, key string) (uint32, error) {
	id, ok := uintArg(args, key)
	if !ok || id == 0 {
		return 0, fmt.Errorf("%s is required", key)
	}
	return id, nil
}

// Tool handlers

func (c *Client) handleCreateUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	steamID, ok := args["steam_id"].(float64)
	if !ok || steamID <= 0 {
		return mcp.NewToolResultError("steam_id is required"), nil
	}
	login, _ := args["login"].(string)

	var user engine.User
	err := c.apiCall(ctx, "POST", "/api/users", service.CreateUserRequest{SteamID: int64(steamID), Login: login}, &user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatUser(&user)), nil
}

func (c *Client) handleGetUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(arguments(request), "user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var user engine.User
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/users/%d", id), nil, &user); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatUser(&user)), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Total int                    `json:"total"`
		Games []*service.GameSummary `json:"games"`
	}

	if err := c.apiCall(ctx, "GET", "/api/games", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameList(response.Total, response.Games)), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(arguments(request), "game_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var game service.GameInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/games/%d", id), nil, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameInfo(&game)), nil
}

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	ownerID, err := requireID(args, "owner_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := service.CreateGameRequest{OwnerID: ownerID}
	req.Preset, _ = args["preset"].(string)
	if v, ok := uintArg(args, "world_id"); ok {
		w := uint8(v)
		req.WorldID = &w
	}
	if v, ok := uintArg(args, "track_id"); ok {
		t := uint8(v)
		req.TrackID = &t
	}
	if s, ok := args["game_type"].(string); ok && s != "" {
		gt, err := kdlab.ParseGameType(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.GameType = &gt
	}
	if v, ok := uintArg(args, "laps"); ok {
		req.Laps = &v
	}
	if v, ok := uintArg(args, "seeds"); ok {
		req.Seeds = &v
	}
	if v, ok := uintArg(args, "duration"); ok {
		req.Duration = &v
	}
	if v, ok := uintArg(args, "players_cnt"); ok {
		req.PlayersCnt = &v
	}
	if v, ok := args["is_express"].(bool); ok {
		req.IsExpress = &v
	}

	var game service.GameInfo
	if err := c.apiCall(ctx, "POST", "/api/games", req, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created " + formatGameInfo(&game)), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	gameID, err := requireID(args, "game_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := requireID(args, "user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]uint32{"user_id": userID}
	var game service.GameInfo
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/games/%d/join", gameID), body, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("User %d joined.\n\n%s", userID, formatGameInfo(&game))), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []*service.PresetInfo
	if err := c.apiCall(ctx, "GET", "/api/presets", nil, &presets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Presets (%d):\n\n", len(presets))
	for _, p := range presets {
		express := ""
		if p.IsExpress {
			express = ", express"
		}
		fmt.Fprintf(&sb, "- %s: %s (%s, %d players%s)\n", p.PresetID, p.Name, p.Location, p.PlayersCnt, express)
		if p.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", p.Description)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetPreset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	var preset engine.Preset
	if err := c.apiCall(ctx, "GET", "/api/presets/"+url.PathEscape(name), nil, &preset); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Preset %s: %s\n", name, preset.Name)
	if preset.Description != "" {
		fmt.Fprintf(&sb, "%s\n", preset.Description)
	}
	fmt.Fprintf(&sb, "Location: %s\n", location(preset.WorldID, preset.TrackID))
	fmt.Fprintf(&sb, "Type: %s, Laps: %d, Seeds: %d, Duration: %d\n", preset.GameType, preset.Laps, preset.Seeds, preset.Duration)
	fmt.Fprintf(&sb, "Players: %d, Express: %t\n", preset.PlayersCnt, preset.IsExpress)
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleDecodePacket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := arguments(request)["packet"].(string)
	if raw == "" {
		return mcp.NewToolResultError("packet is required"), nil
	}

	var p kdlab.Packet
	if err := c.apiCall(ctx, "POST", "/api/packets/decode", raw, &p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPacket(&p)), nil
}

func location(worldID, trackID uint8) string {
	loc, err := engine.ParseWorld(worldID, trackID)
	if err != nil {
		return fmt.Sprintf("World(%d)/%d", worldID, trackID)
	}
	return loc.String()
}

func formatUser(u *engine.User) string {
	return fmt.Sprintf("User %d: %s (steam %d)\n", u.ID, u.Nickname(), u.SteamID)
}

func formatGameList(total int, games []*service.GameSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Games (%d):\n\n", total)
	for _, g := range games {
		fmt.Fprintf(&sb, "- #%d by %s at %s, type %s, %d/%d joined (created %s)\n",
			g.ID, g.Owner, g.Location, g.GameType, g.Joined, g.PlayersCnt, g.CreatedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}

func formatGameInfo(info *service.GameInfo) string {
	var sb strings.Builder
	g := info.Game
	if g == nil {
		return "game: <empty response>\n"
	}
	fmt.Fprintf(&sb, "Game #%d (%s)\n", g.ID, info.Status)
	fmt.Fprintf(&sb, "Location: %s, Type: %s, Laps: %d, Seeds: %d, Duration: %d\n",
		info.Location, g.GameType, g.Laps, g.Seeds, g.Duration)
	fmt.Fprintf(&sb, "Players: %d/%d, Move: %d\n", info.Joined, g.PlayersCnt, info.MoveCnt)

	if len(info.Turns) > 0 {
		sb.WriteString("\nTurns:\n")
		for _, t := range info.Turns {
			seeds := "waiting"
			if t.HasSeeds() {
				seeds = fmt.Sprintf("%d seeds", t.UserSeedsCnt)
			}
			fmt.Fprintf(&sb, "  slot %d %-16s step %d: %s, rank %d", t.PlayerNumber, t.Nickname, t.StepNumber, seeds, t.Rank)
			if t.IsFinished {
				sb.WriteString(", finished")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatPacket(p *kdlab.Packet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Packet type %d (%s), version %d\n", p.Type, p.Type, p.Version)
	fmt.Fprintf(&sb, "Game %d, owner %d, sender %d\n", p.GameID, p.OwnerPID, p.SenderPID)
	fmt.Fprintf(&sb, "Location: %s, Rnd: %d, Type: %s\n", location(p.WorldID, p.TrackID), p.Rnd, p.GameType)
	fmt.Fprintf(&sb, "Laps: %d, Seeds: %d, Duration: %d, Move: %d, Express: %t\n",
		p.Laps, p.Seeds, p.Duration, p.MoveCnt, p.IsExpress)

	if len(p.Players) > 0 {
		fmt.Fprintf(&sb, "\nPlayers (%d):\n", len(p.Players))
		for _, pl := range p.Players {
			fmt.Fprintf(&sb, "  %d %s (vehicle %d/%d/%d/%d)\n", pl.UID, pl.Nickname, pl.Pers, pl.Car, pl.FWheel, pl.BWheel)
		}
	}
	if len(p.Steps) > 0 {
		fmt.Fprintf(&sb, "\nSteps (%d):\n", len(p.Steps))
		for _, s := range p.Steps {
			fmt.Fprintf(&sb, "  step %d player %d: rank %d, %d seeds", s.StepNumber, s.PlayerID, s.Rank, s.UserSeedsCnt)
			if s.IsFinished {
				sb.WriteString(", finished")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
