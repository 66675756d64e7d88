package handlers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fwilhelm/connectk/internal/board"
	"github.com/fwilhelm/connectk/internal/lobby"
)

func TestErrKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{lobby.ErrNotFound, KindNotFound},
		{lobby.ErrUnauthorized, KindUnauthorized},
		{lobby.ErrNotMember, KindUnauthorized},
		{lobby.ErrInvalidState, KindInvalidState},
		{lobby.ErrOutOfTurn, KindOutOfTurn},
		{lobby.ErrLobbyFull, KindLobbyFull},
		{lobby.ErrAlreadyJoined, KindAlreadyJoined},
		{lobby.ErrAlreadyStarted, KindAlreadyStarted},
		{lobby.ErrInvalidSettings, KindInvalidSettings},
		{fmt.Errorf("%w: rows out of range", lobby.ErrInvalidSettings), KindInvalidSettings},
		{board.ErrOutOfBounds, KindOutOfBounds},
		{board.ErrColumnFull, KindColumnFull},
		{assert.AnError, KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errKind(tc.err), "error %v", tc.err)
	}
}
