// Package protocol defines the client-facing message contracts.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pairplay/tictactoe-node/internal/entity"
)

// Client to server.
const (
	TypeJoinGame = "JOIN_GAME"
	TypeMakeMove = "MAKE_MOVE"
)

// Server to client.
const (
	TypeGameJoined   = "GAME_JOINED"
	TypeGameState    = "GAME_STATE"
	TypeMoveAccepted = "MOVE_ACCEPTED"
	TypeMoveRejected = "MOVE_REJECTED"
	TypeOpponentMove = "OPPONENT_MOVE"
	TypeGameOver     = "GAME_OVER"
	TypeError        = "ERROR"
)

// Message is the wire envelope for client traffic in both directions.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New - wraps a payload in a timestamped envelope.
func New(kind string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	return &Message{
		Type:      kind,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

type JoinGame struct {
	PlayerName string `json:"playerName"`
}

type MakeMove struct {
	GameID string `json:"gameId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type GameJoined struct {
	GameID             string `json:"gameId"`
	PlayerID           string `json:"playerId"`
	PlayerSymbol       string `json:"playerSymbol"`
	WaitingForOpponent bool   `json:"waitingForOpponent"`
}

type GameState struct {
	GameID      string       `json:"gameId"`
	Board       entity.Board `json:"board"`
	CurrentTurn string       `json:"currentTurn"`
	YourTurn    bool         `json:"yourTurn"`
	YourSymbol  string       `json:"yourSymbol"`
}

type MoveAccepted struct {
	GameID   string       `json:"gameId"`
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	Board    entity.Board `json:"board"`
	NextTurn string       `json:"nextTurn"`
}

type MoveRejected struct {
	Reason string `json:"reason"`
}

type OpponentMove struct {
	GameID   string       `json:"gameId"`
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	Board    entity.Board `json:"board"`
	YourTurn bool         `json:"yourTurn"`
}

type GameOver struct {
	GameID      string        `json:"gameId"`
	Winner      string        `json:"winner"`
	WinningLine []entity.Cell `json:"winningLine,omitempty"`
	Board       entity.Board  `json:"board"`
}

type Error struct {
	Message string `json:"message"`
}
