package scoringservice

import "errors"

// Domain failures. Callers distinguish them with errors.Is.
var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerExists        = errors.New("player already exists")
	ErrValidation          = errors.New("validation failed")
)

// Faults. Consumers should treat these as "try again later".
var (
	ErrStorage            = errors.New("storage error")
	ErrConcurrencyTimeout = errors.New("submission lock not acquired in time")
)
