package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairplay/tictactoe-node/internal/entity"
	"github.com/pairplay/tictactoe-node/internal/federation"
	"github.com/pairplay/tictactoe-node/internal/protocol"
)

type fakeChannel struct {
	waiting []federation.PlayerEvent
	joined  []federation.PlayerEvent
	left    []federation.PlayerEvent
	moves   []federation.MoveEvent
	ended   []federation.EndEvent
}

func (that *fakeChannel) NotifyWaiting(_ context.Context, event federation.PlayerEvent) error {
	that.waiting = append(that.waiting, event)
	return nil
}

func (that *fakeChannel) NotifyJoined(_ context.Context, event federation.PlayerEvent) error {
	that.joined = append(that.joined, event)
	return nil
}

func (that *fakeChannel) NotifyLeft(_ context.Context, event federation.PlayerEvent) error {
	that.left = append(that.left, event)
	return nil
}

func (that *fakeChannel) NotifyMove(_ context.Context, event federation.MoveEvent) error {
	that.moves = append(that.moves, event)
	return nil
}

func (that *fakeChannel) NotifyEnded(_ context.Context, event federation.EndEvent) error {
	that.ended = append(that.ended, event)
	return nil
}

type fakeConn struct {
	id   string
	sent []*protocol.Message
}

func (that *fakeConn) ID() string {
	return that.id
}

func (that *fakeConn) Send(message any) error {
	that.sent = append(that.sent, message.(*protocol.Message))
	return nil
}

func (that *fakeConn) byType(kind string) []*protocol.Message {
	var matched []*protocol.Message
	for _, message := range that.sent {
		if message.Type == kind {
			matched = append(matched, message)
		}
	}

	return matched
}

func decodePayload(t *testing.T, message *protocol.Message, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(message.Payload, out))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNodeA(channel *fakeChannel) *Orchestrator {
	return New(testLogger(), channel, Identity{SelfID: "node-a", PartnerID: "node-b", Symbol: entity.SymbolX})
}

func newNodeB(channel *fakeChannel) *Orchestrator {
	return New(testLogger(), channel, Identity{SelfID: "node-b", PartnerID: "node-a", Symbol: entity.SymbolO})
}

// joinLocal registers a socket, joins a game and returns the socket together
// with the game id the node assigned.
func joinLocal(t *testing.T, orch *Orchestrator, name string) (*fakeConn, string) {
	t.Helper()

	conn := &fakeConn{id: "conn-" + name}
	orch.Register(conn)
	require.NoError(t, orch.JoinGame(context.Background(), conn, name))

	joined := conn.byType(protocol.TypeGameJoined)
	require.Len(t, joined, 1)

	var payload protocol.GameJoined
	decodePayload(t, joined[0], &payload)

	return conn, payload.GameID
}

// startedGameOnA builds a playing game on node A: Alice joins locally, then
// the partner's join event arrives.
func startedGameOnA(t *testing.T, orch *Orchestrator) (*fakeConn, string) {
	t.Helper()

	conn, gameID := joinLocal(t, orch, "Alice")

	orch.HandlePlayerJoined(context.Background(), federation.PlayerEvent{
		GameID:       gameID,
		PlayerID:     "bob",
		PlayerName:   "Bob",
		PlayerSymbol: entity.SymbolO,
	})

	return conn, gameID
}

func TestOrchestrator_JoinGame_CreatesWaitingGame(t *testing.T) {
	channel := &fakeChannel{}
	orch := newNodeA(channel)

	// When: Alice joins with no pending game on the node
	conn, gameID := joinLocal(t, orch, "Alice")

	// Then: she gets symbol X and waits for an opponent
	var joined protocol.GameJoined
	decodePayload(t, conn.byType(protocol.TypeGameJoined)[0], &joined)
	assert.Equal(t, entity.SymbolX, joined.PlayerSymbol)
	assert.True(t, joined.WaitingForOpponent)

	// Then: a player-waiting event went to the partner
	require.Len(t, channel.waiting, 1)
	assert.Equal(t, gameID, channel.waiting[0].GameID)
	assert.Equal(t, "Alice", channel.waiting[0].PlayerName)
	assert.Equal(t, entity.SymbolX, channel.waiting[0].PlayerSymbol)
}

func TestOrchestrator_JoinGame_CompletesPartnerGame(t *testing.T) {
	channel := &fakeChannel{}
	orch := newNodeB(channel)

	// Given: node A announced a waiting game for Alice/X
	orch.HandlePlayerWaiting(context.Background(), federation.PlayerEvent{
		GameID:       "game-1",
		PlayerID:     "alice",
		PlayerName:   "Alice",
		PlayerSymbol: entity.SymbolX,
	})

	// When: Bob joins locally
	conn, gameID := joinLocal(t, orch, "Bob")

	// Then: he completes the pending game with the free symbol
	require.Equal(t, "game-1", gameID)

	var joined protocol.GameJoined
	decodePayload(t, conn.byType(protocol.TypeGameJoined)[0], &joined)
	assert.Equal(t, entity.SymbolO, joined.PlayerSymbol)
	assert.False(t, joined.WaitingForOpponent)

	// Then: he receives the full game state with X to move
	states := conn.byType(protocol.TypeGameState)
	require.Len(t, states, 1)

	var state protocol.GameState
	decodePayload(t, states[0], &state)
	assert.Equal(t, entity.SymbolX, state.CurrentTurn)
	assert.False(t, state.YourTurn)
	assert.Equal(t, entity.SymbolO, state.YourSymbol)

	// Then: a player-joined event went back to node A
	require.Len(t, channel.joined, 1)
	assert.Equal(t, "game-1", channel.joined[0].GameID)
	assert.Equal(t, entity.SymbolO, channel.joined[0].PlayerSymbol)
}

func TestOrchestrator_HandlePlayerJoined_NotifiesLocalPlayer(t *testing.T) {
	channel := &fakeChannel{}
	orch := newNodeA(channel)

	// Given: Alice waits on node A
	conn, gameID := joinLocal(t, orch, "Alice")

	// When: Bob's join arrives from the partner
	orch.HandlePlayerJoined(context.Background(), federation.PlayerEvent{
		GameID:       gameID,
		PlayerID:     "bob",
		PlayerName:   "Bob",
		PlayerSymbol: entity.SymbolO,
	})

	// Then: Alice is told the game is starting and that she moves first
	states := conn.byType(protocol.TypeGameState)
	require.Len(t, states, 1)

	var state protocol.GameState
	decodePayload(t, states[0], &state)
	assert.True(t, state.YourTurn)
	assert.Equal(t, entity.SymbolX, state.YourSymbol)
}

func TestOrchestrator_MakeMove(t *testing.T) {
	t.Run("Accepted move is acknowledged and replicated", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, gameID := startedGameOnA(t, orch)

		// When: Alice plays the center
		require.NoError(t, orch.MakeMove(context.Background(), conn, gameID, 1, 1))

		// Then: she gets MOVE_ACCEPTED with the new board and next turn
		accepted := conn.byType(protocol.TypeMoveAccepted)
		require.Len(t, accepted, 1)

		var ack protocol.MoveAccepted
		decodePayload(t, accepted[0], &ack)
		assert.Equal(t, entity.SymbolX, ack.Board[1][1])
		assert.Equal(t, entity.SymbolO, ack.NextTurn)

		// Then: a move-made event with the full board went to the partner
		require.Len(t, channel.moves, 1)
		assert.Equal(t, entity.SymbolX, channel.moves[0].Board[1][1])
		assert.Equal(t, entity.SymbolO, channel.moves[0].NextTurn)
	})

	t.Run("Rejected move is reported and not replicated", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, gameID := startedGameOnA(t, orch)

		require.NoError(t, orch.MakeMove(context.Background(), conn, gameID, 1, 1))

		// When: Alice moves again out of turn
		require.NoError(t, orch.MakeMove(context.Background(), conn, gameID, 0, 0))

		// Then: the move is rejected with the validation reason
		rejected := conn.byType(protocol.TypeMoveRejected)
		require.Len(t, rejected, 1)

		var rejection protocol.MoveRejected
		decodePayload(t, rejected[0], &rejection)
		assert.Equal(t, "Not your turn", rejection.Reason)

		// Then: no extra federation event was published
		assert.Len(t, channel.moves, 1)
	})

	t.Run("Unknown game", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, _ := startedGameOnA(t, orch)

		require.NoError(t, orch.MakeMove(context.Background(), conn, "no-such-game", 0, 0))

		errors := conn.byType(protocol.TypeError)
		require.Len(t, errors, 1)

		var failure protocol.Error
		decodePayload(t, errors[0], &failure)
		assert.Equal(t, "Game not found", failure.Message)
	})

	t.Run("Unauthenticated connection", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		_, gameID := startedGameOnA(t, orch)

		// Given: a second socket that never joined
		stranger := &fakeConn{id: "conn-stranger"}
		orch.Register(stranger)

		require.NoError(t, orch.MakeMove(context.Background(), stranger, gameID, 0, 0))

		errors := stranger.byType(protocol.TypeError)
		require.Len(t, errors, 1)

		var failure protocol.Error
		decodePayload(t, errors[0], &failure)
		assert.Equal(t, "Not authenticated", failure.Message)
	})

	t.Run("Winning move finishes the game on both sides", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, gameID := startedGameOnA(t, orch)

		// Given: X one move away from the top row
		game := orch.games[gameID]
		game.Board = entity.Board{
			{entity.SymbolX, entity.SymbolX, entity.EmptyCell},
			{entity.SymbolO, entity.SymbolO, entity.EmptyCell},
			{},
		}

		// When: Alice completes the row
		require.NoError(t, orch.MakeMove(context.Background(), conn, gameID, 0, 2))

		// Then: the local player gets GAME_OVER with the winning line
		overs := conn.byType(protocol.TypeGameOver)
		require.Len(t, overs, 1)

		var over protocol.GameOver
		decodePayload(t, overs[0], &over)
		assert.Equal(t, entity.SymbolX, over.Winner)
		assert.Equal(t, []entity.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}, over.WinningLine)

		// Then: move-made and game-ended both reached the partner
		require.Len(t, channel.moves, 1)
		require.Len(t, channel.ended, 1)
		assert.Equal(t, entity.SymbolX, channel.ended[0].Winner)
		assert.Equal(t, entity.StatusFinished, game.Status)
	})
}

func TestOrchestrator_HandleMoveMade(t *testing.T) {
	t.Run("Mirror is overwritten and the local player notified", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeB(channel)

		orch.HandlePlayerWaiting(context.Background(), federation.PlayerEvent{
			GameID: "game-1", PlayerID: "alice", PlayerName: "Alice", PlayerSymbol: entity.SymbolX,
		})
		conn, _ := joinLocal(t, orch, "Bob")

		board := entity.Board{}
		board[0][0] = entity.SymbolX

		// When: Alice's move arrives from node A
		orch.HandleMoveMade(context.Background(), federation.MoveEvent{
			GameID: "game-1", PlayerID: "alice", Row: 0, Col: 0, Board: board, NextTurn: entity.SymbolO,
		})

		// Then: the mirror carries the partner's board verbatim
		game := orch.games["game-1"]
		assert.Equal(t, board, game.Board)
		assert.Equal(t, entity.SymbolO, game.Turn)

		// Then: Bob is told it is his turn now
		moves := conn.byType(protocol.TypeOpponentMove)
		require.Len(t, moves, 1)

		var move protocol.OpponentMove
		decodePayload(t, moves[0], &move)
		assert.True(t, move.YourTurn)
		assert.Equal(t, entity.SymbolX, move.Board[0][0])
	})

	t.Run("Replayed event is re-applied with no duplicate detection", func(t *testing.T) {
		// There is no sequence numbering or dedup on the federation channel,
		// so an identical event delivered twice goes through twice.
		channel := &fakeChannel{}
		orch := newNodeB(channel)

		orch.HandlePlayerWaiting(context.Background(), federation.PlayerEvent{
			GameID: "game-1", PlayerID: "alice", PlayerName: "Alice", PlayerSymbol: entity.SymbolX,
		})
		conn, _ := joinLocal(t, orch, "Bob")

		board := entity.Board{}
		board[0][0] = entity.SymbolX
		event := federation.MoveEvent{
			GameID: "game-1", PlayerID: "alice", Row: 0, Col: 0, Board: board, NextTurn: entity.SymbolO,
		}

		// When: the same event is delivered twice
		orch.HandleMoveMade(context.Background(), event)
		orch.HandleMoveMade(context.Background(), event)

		// Then: the client was notified twice
		assert.Len(t, conn.byType(protocol.TypeOpponentMove), 2)
	})

	t.Run("Unknown game is ignored", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeB(channel)

		orch.HandleMoveMade(context.Background(), federation.MoveEvent{GameID: "no-such-game"})

		assert.Empty(t, orch.games)
	})
}

func TestOrchestrator_HandleGameEnded(t *testing.T) {
	channel := &fakeChannel{}
	orch := newNodeB(channel)

	orch.HandlePlayerWaiting(context.Background(), federation.PlayerEvent{
		GameID: "game-1", PlayerID: "alice", PlayerName: "Alice", PlayerSymbol: entity.SymbolX,
	})
	conn, _ := joinLocal(t, orch, "Bob")

	board := entity.Board{}
	board[0][0], board[0][1], board[0][2] = entity.SymbolX, entity.SymbolX, entity.SymbolX

	// When: node A reports the game finished
	orch.HandleGameEnded(context.Background(), federation.EndEvent{
		GameID:      "game-1",
		Winner:      entity.SymbolX,
		WinningLine: []entity.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}},
		Board:       board,
	})

	// Then: the mirror is finished and Bob sees the result
	game := orch.games["game-1"]
	require.Equal(t, entity.StatusFinished, game.Status)
	assert.Equal(t, entity.SymbolX, game.Winner)

	overs := conn.byType(protocol.TypeGameOver)
	require.Len(t, overs, 1)

	var over protocol.GameOver
	decodePayload(t, overs[0], &over)
	assert.Equal(t, entity.SymbolX, over.Winner)
	assert.Len(t, over.WinningLine, 3)
}

func TestOrchestrator_Disconnect(t *testing.T) {
	t.Run("Waiting game is deleted", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, gameID := joinLocal(t, orch, "Alice")

		// When: Alice disconnects before anyone joins
		orch.Disconnect(context.Background(), conn)

		// Then: the game and pending slot are gone and the partner is told
		assert.Empty(t, orch.games)
		assert.Nil(t, orch.pending)
		require.Len(t, channel.left, 1)
		assert.Equal(t, gameID, channel.left[0].GameID)
	})

	t.Run("Playing game becomes a technical loss", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)
		conn, gameID := startedGameOnA(t, orch)

		// When: Alice (X) disconnects mid-game
		orch.Disconnect(context.Background(), conn)

		// Then: the record is removed and O wins by forfeit, no winning line
		assert.Empty(t, orch.games)
		require.Len(t, channel.ended, 1)
		assert.Equal(t, gameID, channel.ended[0].GameID)
		assert.Equal(t, entity.SymbolO, channel.ended[0].Winner)
		assert.Nil(t, channel.ended[0].WinningLine)
	})

	t.Run("Idle connection just goes away", func(t *testing.T) {
		channel := &fakeChannel{}
		orch := newNodeA(channel)

		conn := &fakeConn{id: "conn-idle"}
		orch.Register(conn)

		orch.Disconnect(context.Background(), conn)

		assert.Empty(t, orch.conns)
		assert.Empty(t, channel.left)
		assert.Empty(t, channel.ended)
	})
}

func TestOrchestrator_HandlePlayerLeft(t *testing.T) {
	channel := &fakeChannel{}
	orch := newNodeB(channel)

	// Given: a mirrored waiting game from the partner
	orch.HandlePlayerWaiting(context.Background(), federation.PlayerEvent{
		GameID: "game-1", PlayerID: "alice", PlayerName: "Alice", PlayerSymbol: entity.SymbolX,
	})
	require.NotNil(t, orch.pending)

	// When: the waiting player leaves before anyone joined here
	orch.HandlePlayerLeft(context.Background(), federation.PlayerEvent{GameID: "game-1", PlayerID: "alice"})

	// Then: the mirror and pending slot are cleared
	assert.Empty(t, orch.games)
	assert.Nil(t, orch.pending)
}
