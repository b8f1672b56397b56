// Package federation relays directed game events between the two paired
// nodes over one shared publish/subscribe topic.
package federation

import (
	"encoding/json"
	"time"

	"github.com/pairplay/tictactoe-node/internal/entity"
)

const (
	EventPlayerWaiting = "player-waiting"
	EventPlayerJoined  = "player-joined"
	EventPlayerLeft    = "player-left"
	EventMoveMade      = "move-made"
	EventGameEnded     = "game-ended"
)

// Envelope wraps every federation event with explicit sender and recipient
// node identities. The recipient identity is what turns the shared topic
// into two directed channels.
type Envelope struct {
	Kind       string          `json:"kind"`
	FromNodeID string          `json:"fromNodeId"`
	ToNodeID   string          `json:"toNodeId"`
	GameID     string          `json:"gameId"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// PlayerEvent is the payload for player-waiting, player-joined and
// player-left.
type PlayerEvent struct {
	GameID       string `json:"gameId"`
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	PlayerSymbol string `json:"playerSymbol"`
}

// MoveEvent carries the full board and next turn so the receiving node can
// replace its mirror without re-deriving state.
type MoveEvent struct {
	GameID   string       `json:"gameId"`
	PlayerID string       `json:"playerId"`
	Row      int          `json:"row"`
	Col      int          `json:"col"`
	Board    entity.Board `json:"board"`
	NextTurn string       `json:"nextTurn"`
}

type EndEvent struct {
	GameID      string        `json:"gameId"`
	Winner      string        `json:"winner"`
	WinningLine []entity.Cell `json:"winningLine,omitempty"`
	Board       entity.Board  `json:"board"`
}
