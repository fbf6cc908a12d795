package models

// GameStatus is the lifecycle phase of a game. Phases only move forward.
type GameStatus string

const (
	StatusWaiting  GameStatus = "WAITING"
	StatusPlaying  GameStatus = "PLAYING"
	StatusGuessing GameStatus = "GUESSING"
	StatusFinished GameStatus = "FINISHED"
)

// CanTransitionTo reports whether moving from s to next is allowed.
// A status may transition to itself (round bumps update the row without
// changing phase) or to the next phase in order.
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusWaiting:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusGuessing
	case StatusGuessing:
		return next == StatusFinished
	default:
		return false
	}
}
