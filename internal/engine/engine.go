package engine

import (
	"fmt"
	"time"

	"github.com/pairplay/tictactoe-node/internal/apperror"
	"github.com/pairplay/tictactoe-node/internal/entity"
)

// MoveResult describes an accepted move.
type MoveResult struct {
	GameOver    bool
	Winner      string
	WinningLine []entity.Cell
}

// NewBoard - returns a grid with every cell empty.
func NewBoard() entity.Board {
	return entity.Board{}
}

// MakeMove validates and applies a single move on the given game record.
// On rejection the record is left untouched. On acceptance the cell is
// marked, the winner/draw check runs and, if the game did not end, the turn
// flips to the other symbol.
func MakeMove(game *entity.Game, row, col int, playerID string) (*MoveResult, error) {
	if !game.IsPlaying() {
		return nil, apperror.ErrGameNotInProgress
	}

	current := game.Players[game.Turn]
	if current == nil || current.ID != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	if row < 0 || row >= entity.BoardSize || col < 0 || col >= entity.BoardSize {
		return nil, fmt.Errorf("%w: row %d, col %d", apperror.ErrCellOutOfRange, row, col)
	}

	if game.Board[row][col] != entity.EmptyCell {
		return nil, apperror.ErrCellOccupied
	}

	symbol := game.Turn
	game.Board[row][col] = symbol
	game.UpdatedAt = time.Now()

	if winner, line, ok := CheckWinner(game.Board); ok {
		game.Winner = winner
		game.WinningLine = line

		return &MoveResult{GameOver: true, Winner: winner, WinningLine: line}, nil
	}

	if IsBoardFull(game.Board) {
		game.Winner = entity.WinnerDraw

		return &MoveResult{GameOver: true, Winner: entity.WinnerDraw}, nil
	}

	game.Turn = entity.OtherSymbol(symbol)

	return &MoveResult{}, nil
}

// CheckWinner scans the 3 rows, then the 3 columns, then the two diagonals,
// and reports the first uniform non-empty line. The scan order is fixed so
// the reported line is deterministic even on malformed boards.
func CheckWinner(board entity.Board) (string, []entity.Cell, bool) {
	lines := make([][3]entity.Cell, 0, 8)

	for row := 0; row < entity.BoardSize; row++ {
		lines = append(lines, [3]entity.Cell{{Row: row, Col: 0}, {Row: row, Col: 1}, {Row: row, Col: 2}})
	}

	for col := 0; col < entity.BoardSize; col++ {
		lines = append(lines, [3]entity.Cell{{Row: 0, Col: col}, {Row: 1, Col: col}, {Row: 2, Col: col}})
	}

	lines = append(lines,
		[3]entity.Cell{{Row: 0, Col: 0}, {Row: 1, Col: 1}, {Row: 2, Col: 2}},
		[3]entity.Cell{{Row: 0, Col: 2}, {Row: 1, Col: 1}, {Row: 2, Col: 0}},
	)

	for _, line := range lines {
		a := board[line[0].Row][line[0].Col]
		b := board[line[1].Row][line[1].Col]
		c := board[line[2].Row][line[2].Col]

		if a != entity.EmptyCell && a == b && b == c {
			return a, line[:], true
		}
	}

	return "", nil, false
}

// IsBoardFull - reports whether no cell is empty.
func IsBoardFull(board entity.Board) bool {
	for _, row := range board {
		for _, cell := range row {
			if cell == entity.EmptyCell {
				return false
			}
		}
	}

	return true
}
