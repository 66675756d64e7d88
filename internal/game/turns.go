// Package game computes turn order for a lobby roster.
package game

import (
	"github.com/google/uuid"

	"github.com/fwilhelm/connectk/internal/models"
)

// NextPlayer returns who acts after last, rotating through the roster in
// join order and wrapping past the end. A zero last (first turn of a game)
// or a last that already left the roster both resolve to index -1, so the
// rotation lands on the first player. Callers guarantee a non-empty roster.
func NextPlayer(roster []models.Player, last uuid.UUID) models.Player {
	idx := -1
	for i, p := range roster {
		if p.UID == last {
			idx = i
			break
		}
	}
	return roster[(idx+1)%len(roster)]
}
