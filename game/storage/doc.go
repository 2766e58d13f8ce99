// Package storage implements the game repository on three backends:
// process memory, JSON files in a data directory, and PostgreSQL.
//
// All of them enforce one turn per (game, player slot, step) and return
// the engine package's sentinel errors for missing or duplicate rows.
package storage
