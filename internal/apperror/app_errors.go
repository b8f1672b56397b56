package apperror

import "errors"

var (
	ErrGameNotInProgress = errors.New("Game is not in progress")
	ErrNotYourTurn       = errors.New("Not your turn")
	ErrCellOutOfRange    = errors.New("Cell is out of range")
	ErrCellOccupied      = errors.New("Cell is already occupied")
	ErrGameNotFound      = errors.New("Game not found")
	ErrNotAuthenticated  = errors.New("Not authenticated")
)
