package models

import "github.com/google/uuid"

// LobbyInfo is the read-only snapshot of a lobby that goes out to clients,
// both as a query result and inside lobby-state events.
type LobbyInfo struct {
	LobbyID     uuid.UUID `json:"lobbyId"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Connect     int       `json:"connect"`
	MaxPlayers  int       `json:"maxPlayers"`
	Admin       uuid.UUID `json:"admin"`
	State       string    `json:"state"`
	PlayerCount int       `json:"playerCount"`
	Players     []Player  `json:"players"`
}
