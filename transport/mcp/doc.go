// Package mcp exposes the server's admin REST API as Model Context Protocol
// tools.
//
// The Client holds no game state. Every tool call becomes one request against
// the REST API at the configured base URL, and the JSON reply is rendered as
// plain text for the agent.
//
// Tools:
//   - create_user, get_user
//   - list_games, get_game, create_game, join_game
//   - list_presets, get_preset
//   - decode_packet: render a raw KDLAB packet field by field
//
// The same server is served over stdio (the "stdio-mcp" mode of the binary)
// and over HTTP at /mcp.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
