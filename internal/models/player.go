package models

import "github.com/google/uuid"

// MaxNicknameLen bounds display names; longer input is truncated, not rejected.
const MaxNicknameLen = 15

// Player identifies one participant of a lobby. Immutable for the duration
// of a lobby tenure.
type Player struct {
	UID      uuid.UUID `json:"uid"`
	Nickname string    `json:"nickname"`
}

// NewPlayer builds a Player, truncating the nickname to MaxNicknameLen.
func NewPlayer(uid uuid.UUID, nickname string) Player {
	if runes := []rune(nickname); len(runes) > MaxNicknameLen {
		nickname = string(runes[:MaxNicknameLen])
	}
	return Player{UID: uid, Nickname: nickname}
}
