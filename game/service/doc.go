// Package service is the application layer of the KDLAB server.
//
// GameService exposes two groups of operations. The protocol operations
// (Info, Control, Seeds, Refresh) load a GameSession through the
// SessionManager, bind it to the sender's player slot and run one engine
// operation under the game's write lock. The admin operations create users
// and games, join players into free slots and list games and presets.
//
// Usage:
//
//	store := storage.NewMemory()
//	presets, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc := service.NewGameService(session.NewManager(store, nil), store, presets)
//
//	user, err := svc.CreateUser(ctx, service.CreateUserRequest{SteamID: 76561198000000000})
//	game, err := svc.CreateGame(ctx, service.CreateGameRequest{OwnerID: user.ID, Preset: "duel"})
//
// Errors from the engine package pass through unchanged so transports can
// map them with errors.Is.
package service
