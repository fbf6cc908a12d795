package services

import "errors"

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrGameNotMatched = errors.New("game is still waiting for an opponent")
	ErrWrongPhase     = errors.New("game is not in the right phase for this action")
	ErrConflict       = errors.New("game was modified concurrently, retry")
	ErrNotInGame      = errors.New("user is not a player in this game")
)
