// Package api provides the HTTP handlers of the KDLAB server.
//
// Endpoints:
//
// Game clients:
//   - GET /game-on-line/default.asp?ID=<game>&USERID=<pid> - Control snapshot
//   - POST /game-on-line/default.asp - KDLAB packet (control, seeds, refresh)
//
// Posted packets are answered with OK:KDLAB, NEXT_MOVE or an encoded
// packet. Failures are returned as "Error occurred: <message>" with the
// status code of the error kind (404 unknown game, 406 protocol violation,
// 503 storage failure).
//
// Administration (JSON):
//   - GET /api/health - Liveness check
//   - POST /api/users - Register a user
//   - GET /api/users/{id} - Get a user
//   - GET /api/games - List games
//   - POST /api/games - Create a game from a preset
//   - GET /api/games/{id} - Game status, move count and turns
//   - POST /api/games/{id}/join - Join a game
//   - GET /api/presets - List presets
//   - GET /api/presets/{name} - Get a preset
//   - POST /api/packets/decode - Decode a KDLAB packet to JSON
//   - POST /api/packets/encode - Encode a JSON packet
//
// Every request gets an X-Request-ID header and one log line.
package api
