// Package config loads game presets for the KDLAB server.
//
// A preset is a JSON file in the preset directory describing a game
// template:
//
//	{
//	  "name": "Duel",
//	  "description": "Two players, one lap on the town track",
//	  "world_id": 3,
//	  "track_id": 1,
//	  "game_type": "A",
//	  "laps": 1,
//	  "seeds": 100,
//	  "duration": 10,
//	  "players_cnt": 2,
//	  "is_express": true
//	}
//
// The file name without extension is the preset id used when creating a
// game. Presets are validated with the same rules as game creation and
// cached after the first load.
//
// The default preset is default.json, or the first valid preset in the
// directory, or a built-in two player game when the directory has none.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	duel, err := manager.LoadPreset("duel")
package config
