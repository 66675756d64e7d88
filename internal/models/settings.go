package models

import "fmt"

// Settings are the per-lobby game parameters. Mutable by the admin only,
// and only while no game is running; a board snapshots them at start.
type Settings struct {
	Rows       int `json:"rows"`
	Cols       int `json:"cols"`
	Connect    int `json:"connect"`
	MaxPlayers int `json:"maxPlayers"`
}

// DefaultSettings returns the settings a freshly created lobby starts with.
func DefaultSettings() Settings {
	return Settings{
		Rows:       15,
		Cols:       15,
		Connect:    4,
		MaxPlayers: 4,
	}
}

// Validate checks the documented parameter ranges.
func (s Settings) Validate() error {
	if s.Rows < 5 || s.Rows > 30 {
		return fmt.Errorf("rows must be within [5,30], got %d", s.Rows)
	}
	if s.Cols < 5 || s.Cols > 30 {
		return fmt.Errorf("cols must be within [5,30], got %d", s.Cols)
	}
	if s.Connect < 2 || s.Connect > 10 {
		return fmt.Errorf("connect must be within [2,10], got %d", s.Connect)
	}
	if s.MaxPlayers < 2 || s.MaxPlayers > 10 {
		return fmt.Errorf("maxPlayers must be within [2,10], got %d", s.MaxPlayers)
	}
	return nil
}
