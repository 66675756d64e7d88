package board

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwilhelm/connectk/internal/models"
)

func testPlayer(name string) models.Player {
	return models.Player{UID: uuid.New(), Nickname: name}
}

// mustPlace places and fails the test on any placement error.
func mustPlace(t *testing.T, b *Board, p models.Player, col int) (row int, won bool) {
	t.Helper()
	row, won, err := b.Place(p, col)
	require.NoError(t, err)
	return row, won
}

func TestPlaceOutOfBounds(t *testing.T) {
	b := New(6, 7, 4)
	p := testPlayer("A")

	_, _, err := b.Place(p, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, _, err = b.Place(p, 7)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// Last valid column must still work.
	_, _, err = b.Place(p, 6)
	assert.NoError(t, err)
}

func TestPlaceColumnFull(t *testing.T) {
	b := New(3, 5, 4)
	p := testPlayer("A")

	for i := 0; i < 3; i++ {
		row, _ := mustPlace(t, b, p, 2)
		assert.Equal(t, i, row)
	}
	_, _, err := b.Place(p, 2)
	assert.ErrorIs(t, err, ErrColumnFull)
	assert.Equal(t, 3, b.Height(2))
}

func TestVerticalWinOnFourthPiece(t *testing.T) {
	b := New(6, 7, 4)
	p := testPlayer("A")

	for i := 0; i < 3; i++ {
		_, won := mustPlace(t, b, p, 0)
		assert.False(t, won, "no win before the 4th piece")
	}
	_, won := mustPlace(t, b, p, 0)
	assert.True(t, won, "4th stacked piece completes the vertical line")
}

func TestHorizontalWinRegardlessOfOrder(t *testing.T) {
	// The line 0..3 on row 0 must win no matter which piece lands last.
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{0, 1, 3, 2},
		{1, 3, 0, 2},
	}
	for _, order := range orders {
		b := New(6, 7, 4)
		p := testPlayer("A")
		for i, col := range order {
			_, won := mustPlace(t, b, p, col)
			if i < len(order)-1 {
				assert.False(t, won, "order %v: premature win at step %d", order, i)
			} else {
				assert.True(t, won, "order %v: final piece must win", order)
			}
		}
	}
}

func TestDiagonalUpRightWin(t *testing.T) {
	b := New(6, 7, 4)
	a := testPlayer("A")
	z := testPlayer("Z")

	// Staircase: filler pieces by Z lift A's pieces onto the diagonal.
	mustPlace(t, b, a, 0) // (0,0)
	mustPlace(t, b, z, 1)
	mustPlace(t, b, a, 1) // (1,1)
	mustPlace(t, b, z, 2)
	mustPlace(t, b, z, 2)
	mustPlace(t, b, a, 2) // (2,2)
	mustPlace(t, b, z, 3)
	mustPlace(t, b, z, 3)
	mustPlace(t, b, z, 3)
	_, won := mustPlace(t, b, a, 3) // (3,3)
	assert.True(t, won)
}

func TestDiagonalDownRightWin(t *testing.T) {
	b := New(6, 7, 4)
	a := testPlayer("A")
	z := testPlayer("Z")

	// A's pieces at (0,3), (1,2), (2,1), (3,0).
	mustPlace(t, b, z, 0)
	mustPlace(t, b, z, 0)
	mustPlace(t, b, z, 0)
	mustPlace(t, b, a, 0) // (0,3)
	mustPlace(t, b, z, 1)
	mustPlace(t, b, z, 1)
	mustPlace(t, b, a, 1) // (1,2)
	mustPlace(t, b, z, 2)
	mustPlace(t, b, a, 2) // (2,1)
	_, won := mustPlace(t, b, a, 3) // (3,0)
	assert.True(t, won)
}

func TestNoWinAcrossDifferentOwners(t *testing.T) {
	b := New(6, 7, 4)
	a := testPlayer("A")
	z := testPlayer("Z")

	mustPlace(t, b, a, 0)
	mustPlace(t, b, a, 1)
	mustPlace(t, b, z, 2) // breaks the line
	mustPlace(t, b, a, 3)
	_, won := mustPlace(t, b, a, 4)
	assert.False(t, won, "a foreign piece interrupts the line")
}

func TestWalksStopAtBoardEdges(t *testing.T) {
	// Minimal board with the win length equal to the full side: every count
	// walk from a corner piece runs straight into an edge.
	b := New(5, 5, 5)
	p := testPlayer("A")

	for i := 0; i < 5; i++ {
		_, won, err := b.Place(p, 0)
		require.NoError(t, err)
		if i < 4 {
			assert.False(t, won)
		} else {
			assert.True(t, won, "full-height column of 5 wins with connect=5")
		}
	}

	// Corner placements on a fresh board never win nor read out of range.
	b2 := New(5, 5, 5)
	for _, col := range []int{0, 4} {
		_, won, err := b2.Place(p, col)
		require.NoError(t, err)
		assert.False(t, won)
	}
}

func TestConnectTwoWinsImmediately(t *testing.T) {
	b := New(5, 5, 2)
	p := testPlayer("A")

	mustPlace(t, b, p, 3)
	_, won := mustPlace(t, b, p, 4)
	assert.True(t, won, "two adjacent pieces suffice with connect=2")
}

func TestCellsSnapshotIsDetached(t *testing.T) {
	b := New(5, 5, 4)
	a := testPlayer("A")
	mustPlace(t, b, a, 1)

	cells := b.Cells()
	require.Len(t, cells, 5)
	require.Len(t, cells[1], 1)
	assert.Equal(t, a.UID, cells[1][0].UID)

	// Mutating the snapshot must not leak into the board.
	cells[1][0] = testPlayer("Z")
	again := b.Cells()
	assert.Equal(t, a.UID, again[1][0].UID)
}
