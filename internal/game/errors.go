package game

import "errors"

// Engine errors. Validation and conflict errors are reported back to the
// originating connection only and never mutate state.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInsufficientCoins  = errors.New("insufficient coins for stake")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrCellOccupied       = errors.New("cell already occupied")
	ErrInvalidCell        = errors.New("cell is outside the board")
	ErrSessionNotActive   = errors.New("session is not active")
	ErrRoundNotStarted    = errors.New("round has not started yet")
	ErrSessionNotWaiting  = errors.New("session is not waiting for players")
	ErrRoomFull           = errors.New("room already has two players")
	ErrOwnRoom            = errors.New("cannot join your own room")
	ErrNotInSession       = errors.New("player is not in this session")
	ErrNotCreator         = errors.New("only the room creator can do that")
	ErrNotLiveRoom        = errors.New("not a live room")
	ErrInvalidStake       = errors.New("invalid stake amount")
	ErrInvalidMode        = errors.New("invalid game mode")
	ErrInvalidSeries      = errors.New("invalid series length")
	ErrNoRematchPending   = errors.New("no rematch request pending")
	ErrAlreadySettled     = errors.New("session already settled")
	ErrOpponentNotPresent = errors.New("opponent is not connected")
)

// Error codes sent with the error event so clients can branch without
// string-matching messages.
const (
	CodeValidation     = "VALIDATION"
	CodeConflict       = "CONFLICT"
	CodeInfrastructure = "INFRASTRUCTURE"
)

// ErrorCode classifies an engine error for the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrOwnRoom),
		errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrNoRematchPending):
		return CodeConflict
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrInsufficientCoins),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrCellOccupied),
		errors.Is(err, ErrInvalidCell),
		errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrRoundNotStarted),
		errors.Is(err, ErrSessionNotWaiting),
		errors.Is(err, ErrNotInSession),
		errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotLiveRoom),
		errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrInvalidMode),
		errors.Is(err, ErrInvalidSeries),
		errors.Is(err, ErrOpponentNotPresent):
		return CodeValidation
	default:
		return CodeInfrastructure
	}
}
