// Package events carries the typed state-change events a lobby publishes and
// the per-lobby fan-out that delivers them to subscribed connections.
package events

import (
	"github.com/google/uuid"

	"github.com/fwilhelm/connectk/internal/models"
)

// GameState labels game-channel events. The values are the wire strings
// clients key on.
type GameState string

const (
	StateLobby     GameState = "LOBBY"      // game discarded, back to open lobby
	StateGameStart GameState = "GAME_START" // a fresh board is live
	StateTurn      GameState = "TURN"       // announces whose move it is
	StatePlace     GameState = "PLACE"      // a piece landed, board attached
	StateGameEnd   GameState = "GAME_END"   // winning placement, player is the winner
)

// LobbyState labels lobby-channel events.
type LobbyState string

const (
	StateSettingsUpdate LobbyState = "SETTINGS_UPDATE"
	StatePlayerJoin     LobbyState = "PLAYER_JOIN"
	StatePlayerLeave    LobbyState = "PLAYER_LEAVE"
	StatePlayerKick     LobbyState = "PLAYER_KICK"
	StateLobbyGameStart LobbyState = "GAME_START"
)

// Event is anything the broadcaster can fan out. Scope returns the lobby the
// event belongs to; delivery is restricted to that lobby's subscribers.
type Event interface {
	Scope() uuid.UUID
}

// GameUpdate is a game-channel event: turn announcements, placements, wins
// and resets. Player and Board are optional depending on State.
type GameUpdate struct {
	LobbyID uuid.UUID         `json:"lobbyId"`
	State   GameState         `json:"state"`
	Player  *models.Player    `json:"player,omitempty"`
	Board   [][]models.Player `json:"board,omitempty"`
}

// LobbyUpdate is a lobby-channel event: roster and settings changes, carrying
// a full lobby snapshot so clients never need a follow-up query.
type LobbyUpdate struct {
	LobbyID uuid.UUID         `json:"lobbyId"`
	State   LobbyState        `json:"state"`
	Lobby   *models.LobbyInfo `json:"lobby,omitempty"`
}

// ChatMessage is a chat-channel event. Message is already sanitized.
type ChatMessage struct {
	LobbyID uuid.UUID     `json:"lobbyId"`
	Player  models.Player `json:"player"`
	Message string        `json:"message"`
}

func (e GameUpdate) Scope() uuid.UUID  { return e.LobbyID }
func (e LobbyUpdate) Scope() uuid.UUID { return e.LobbyID }
func (e ChatMessage) Scope() uuid.UUID { return e.LobbyID }
