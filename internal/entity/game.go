package entity

import "time"

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	SymbolX = "X"
	SymbolO = "O"

	WinnerDraw = "DRAW"

	EmptyCell = ""

	BoardSize = 3
)

// Board is the fixed 3x3 grid of cell marks, row-major.
type Board [BoardSize][BoardSize]string

// Cell addresses one grid position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Game struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Board       Board              `json:"board"`
	Players     map[string]*Player `json:"players"`
	Turn        string             `json:"turn"`
	Winner      string             `json:"winner,omitempty"`
	WinningLine []Cell             `json:"winning_line,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewGame - creates a waiting game with an empty board. X always moves first.
func NewGame(id string) *Game {
	now := time.Now()

	return &Game{
		ID:        id,
		Status:    StatusWaiting,
		Board:     Board{},
		Players:   make(map[string]*Player),
		Turn:      SymbolX,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

// FreeSymbol - returns the symbol whose player slot is still empty, or "".
func (that *Game) FreeSymbol() string {
	for _, symbol := range []string{SymbolX, SymbolO} {
		if that.Players[symbol] == nil {
			return symbol
		}
	}

	return ""
}

// LocalPlayer - returns the player owned by the given node identity.
// The pairing protocol guarantees at most one such player per game.
func (that *Game) LocalPlayer(nodeID string) *Player {
	for _, player := range that.Players {
		if player != nil && player.NodeID == nodeID {
			return player
		}
	}

	return nil
}

func (that *Game) PlayerByID(playerID string) *Player {
	for _, player := range that.Players {
		if player != nil && player.ID == playerID {
			return player
		}
	}

	return nil
}

// OtherSymbol - maps each symbol to its opponent's symbol.
func OtherSymbol(symbol string) string {
	if symbol == SymbolX {
		return SymbolO
	}

	return SymbolX
}
