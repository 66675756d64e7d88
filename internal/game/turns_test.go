package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fwilhelm/connectk/internal/models"
)

func TestNextPlayerRotation(t *testing.T) {
	a := models.Player{UID: uuid.New(), Nickname: "A"}
	b := models.Player{UID: uuid.New(), Nickname: "B"}
	c := models.Player{UID: uuid.New(), Nickname: "C"}
	roster := []models.Player{a, b, c}

	assert.Equal(t, b, NextPlayer(roster, a.UID))
	assert.Equal(t, c, NextPlayer(roster, b.UID))
	assert.Equal(t, a, NextPlayer(roster, c.UID), "rotation wraps to the first player")
}

func TestNextPlayerFirstTurn(t *testing.T) {
	a := models.Player{UID: uuid.New(), Nickname: "A"}
	b := models.Player{UID: uuid.New(), Nickname: "B"}
	roster := []models.Player{a, b}

	assert.Equal(t, a, NextPlayer(roster, uuid.Nil), "no previous actor yields the first player")
}

func TestNextPlayerDepartedActor(t *testing.T) {
	a := models.Player{UID: uuid.New(), Nickname: "A"}
	b := models.Player{UID: uuid.New(), Nickname: "B"}
	roster := []models.Player{a, b}

	// The last actor already left the roster; rotation restarts at the front.
	gone := uuid.New()
	assert.Equal(t, a, NextPlayer(roster, gone))
}

func TestNextPlayerSinglePlayer(t *testing.T) {
	a := models.Player{UID: uuid.New(), Nickname: "A"}
	roster := []models.Player{a}

	assert.Equal(t, a, NextPlayer(roster, a.UID), "single player keeps the turn")
}
