package handlers

import (
	"errors"

	"github.com/fwilhelm/connectk/internal/board"
	"github.com/fwilhelm/connectk/internal/lobby"
)

// errKind maps a command error onto its wire kind.
func errKind(err error) string {
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		return KindNotFound
	case errors.Is(err, lobby.ErrUnauthorized), errors.Is(err, lobby.ErrNotMember):
		return KindUnauthorized
	case errors.Is(err, lobby.ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, lobby.ErrOutOfTurn):
		return KindOutOfTurn
	case errors.Is(err, lobby.ErrLobbyFull):
		return KindLobbyFull
	case errors.Is(err, lobby.ErrAlreadyJoined):
		return KindAlreadyJoined
	case errors.Is(err, lobby.ErrAlreadyStarted):
		return KindAlreadyStarted
	case errors.Is(err, lobby.ErrInvalidSettings):
		return KindInvalidSettings
	case errors.Is(err, board.ErrOutOfBounds):
		return KindOutOfBounds
	case errors.Is(err, board.ErrColumnFull):
		return KindColumnFull
	default:
		return KindInternal
	}
}
