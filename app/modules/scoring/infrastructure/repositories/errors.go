package scoringdb

import "errors"

// Sentinel errors for the repository layer.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoRowsAffected indicates an UPDATE/DELETE matched no rows.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrDuplicateSolve indicates the (player, task) pair already has a solve.
	ErrDuplicateSolve = errors.New("solve already exists for player and task")

	// ErrDuplicatePlayer indicates a player with the same id already exists.
	ErrDuplicatePlayer = errors.New("player already exists")
)
