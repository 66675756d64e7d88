// Package board holds the pure connect-K grid: piece placement and win
// detection, no I/O and no locking. A lobby owns exactly one Board while a
// game is running and discards it on reset.
package board

import (
	"errors"

	"github.com/google/uuid"

	"github.com/fwilhelm/connectk/internal/models"
)

var (
	// ErrOutOfBounds is returned when the target column does not exist.
	ErrOutOfBounds = errors.New("column out of bounds")
	// ErrColumnFull is returned when the target column already holds `rows` pieces.
	ErrColumnFull = errors.New("column is full")
)

// Board is a column-major grid. Each column grows bottom-up, append-only,
// up to rows pieces. Cells keep the full Player so pieces stay attributed
// even after their owner leaves the lobby.
type Board struct {
	rows    int
	cols    int
	connect int

	columns [][]models.Player
}

// New creates an empty board for the given dimensions and win length.
func New(rows, cols, connect int) *Board {
	return &Board{
		rows:    rows,
		cols:    cols,
		connect: connect,
		columns: make([][]models.Player, cols),
	}
}

// Place drops a piece for p into col. It returns the row the piece landed on
// and whether the placement completed a winning line.
func (b *Board) Place(p models.Player, col int) (row int, won bool, err error) {
	if col < 0 || col >= b.cols {
		return 0, false, ErrOutOfBounds
	}
	if len(b.columns[col]) >= b.rows {
		return 0, false, ErrColumnFull
	}

	row = len(b.columns[col])
	b.columns[col] = append(b.columns[col], p)

	return row, b.wonByLine(p.UID, col, row), nil
}

// wonByLine checks the four line directions through the just-placed piece at
// (col,row). Placement is always topmost in its column, so the vertical check
// only needs to walk downward.
func (b *Board) wonByLine(uid uuid.UUID, col, row int) bool {
	horizontal := 1 +
		b.count(uid, col-1, row, -1, 0) +
		b.count(uid, col+1, row, 1, 0)
	if horizontal >= b.connect {
		return true
	}

	vertical := 1 + b.count(uid, col, row-1, 0, -1)
	if vertical >= b.connect {
		return true
	}

	diagDown := 1 +
		b.count(uid, col-1, row+1, -1, 1) +
		b.count(uid, col+1, row-1, 1, -1)
	if diagDown >= b.connect {
		return true
	}

	diagUp := 1 +
		b.count(uid, col-1, row-1, -1, -1) +
		b.count(uid, col+1, row+1, 1, 1)
	return diagUp >= b.connect
}

// count walks from (col,row) in direction (dc,dr), counting contiguous cells
// owned by uid. The walk stops at a board edge, an empty cell, or a piece
// owned by someone else.
func (b *Board) count(uid uuid.UUID, col, row, dc, dr int) int {
	n := 0
	for col >= 0 && col < b.cols && row >= 0 && row < b.rows {
		if row >= len(b.columns[col]) || b.columns[col][row].UID != uid {
			break
		}
		n++
		col += dc
		row += dr
	}
	return n
}

// Cells returns a copy of the board contents, column-major, each column
// ordered bottom-to-top. Empty columns come back as empty slices so clients
// always receive cols entries.
func (b *Board) Cells() [][]models.Player {
	out := make([][]models.Player, b.cols)
	for c, column := range b.columns {
		out[c] = make([]models.Player, len(column))
		copy(out[c], column)
	}
	return out
}

// Height reports how many pieces column col currently holds.
func (b *Board) Height(col int) int {
	if col < 0 || col >= b.cols {
		return 0
	}
	return len(b.columns[col])
}
