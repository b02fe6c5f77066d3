package apperror

import "errors"

var (
	ErrInvalidMove          = errors.New("invalid move")
	ErrProviderFailure      = errors.New("move provider failure")
	ErrNoLegalMoveAvailable = errors.New("no legal move available")
	ErrGameFinished         = errors.New("game is already finished")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAlreadyRunning  = errors.New("match is already running")
)
