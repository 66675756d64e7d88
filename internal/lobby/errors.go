package lobby

import "errors"

// Command error kinds. Every command reports failure synchronously through
// one of these (board placement violations come from the board package);
// the transport layer maps them onto wire error payloads.
var (
	ErrNotFound        = errors.New("lobby does not exist")
	ErrUnauthorized    = errors.New("not authorized for this action")
	ErrInvalidState    = errors.New("action not allowed in current lobby state")
	ErrOutOfTurn       = errors.New("it is not your turn")
	ErrLobbyFull       = errors.New("lobby is already full")
	ErrAlreadyJoined   = errors.New("already in this lobby")
	ErrAlreadyStarted  = errors.New("game already started, try stopping the game first")
	ErrNotMember       = errors.New("player is not in this lobby")
	ErrInvalidSettings = errors.New("invalid settings")
)
