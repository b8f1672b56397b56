// Package orchestrator owns this node's half of every game: local
// connections, the pairing handshake, turn enforcement and the federation
// event exchange with the partner node.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pairplay/tictactoe-node/internal/apperror"
	"github.com/pairplay/tictactoe-node/internal/engine"
	"github.com/pairplay/tictactoe-node/internal/entity"
	"github.com/pairplay/tictactoe-node/internal/federation"
	"github.com/pairplay/tictactoe-node/internal/protocol"
	"github.com/pairplay/tictactoe-node/pkg/ident"
)

// Identity is the static pairing configuration: this node, its partner and
// the symbol this node assigns to locally created games. The two paired
// configs carry the two distinct symbols, so assignment never collides.
type Identity struct {
	SelfID    string
	PartnerID string
	Symbol    string
}

type channel interface {
	NotifyWaiting(ctx context.Context, event federation.PlayerEvent) error
	NotifyJoined(ctx context.Context, event federation.PlayerEvent) error
	NotifyLeft(ctx context.Context, event federation.PlayerEvent) error
	NotifyMove(ctx context.Context, event federation.MoveEvent) error
	NotifyEnded(ctx context.Context, event federation.EndEvent) error
}

// pendingGame is the single outstanding game awaiting its second player.
// fromPartner distinguishes a game the partner announced (player-waiting)
// from one created by a local join.
type pendingGame struct {
	game        *entity.Game
	fromPartner bool
}

type Orchestrator struct {
	logger   *slog.Logger
	channel  channel
	identity Identity

	// One lock serializes client-socket and federation callbacks, so the
	// tables below never see concurrent mutation.
	mu      sync.Mutex
	games   map[string]*entity.Game
	conns   map[string]*entity.Connection
	pending *pendingGame
}

func New(logger *slog.Logger, channel channel, identity Identity) *Orchestrator {
	return &Orchestrator{
		logger:   logger.With("component", "orchestrator"),
		channel:  channel,
		identity: identity,

		games: make(map[string]*entity.Game),
		conns: make(map[string]*entity.Connection),
	}
}

// Register - records a freshly accepted client socket.
func (that *Orchestrator) Register(socket entity.ClientConn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[socket.ID()] = &entity.Connection{
		Socket:      socket,
		ConnectedAt: time.Now(),
	}
}

// JoinGame - handles a local client's join request. If the partner already
// announced a waiting game, the local player completes it; otherwise a new
// waiting game is created and announced to the partner.
func (that *Orchestrator) JoinGame(ctx context.Context, socket entity.ClientConn, playerName string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "JoinGame")

	conn, ok := that.conns[socket.ID()]
	if !ok {
		return that.sendError(socket, "connection is not registered")
	}

	if that.pending != nil && that.pending.fromPartner {
		return that.joinPendingGame(ctx, conn, socket, playerName)
	}

	game := entity.NewGame(ident.NewGameID())
	player := &entity.Player{
		ID:     ident.NewPlayerID(),
		Name:   playerName,
		Symbol: that.identity.Symbol,
		NodeID: that.identity.SelfID,
		Conn:   socket,
	}

	game.Players[player.Symbol] = player
	that.games[game.ID] = game
	that.pending = &pendingGame{game: game}

	conn.PlayerID = player.ID
	conn.GameID = game.ID

	joined := protocol.GameJoined{
		GameID:             game.ID,
		PlayerID:           player.ID,
		PlayerSymbol:       player.Symbol,
		WaitingForOpponent: true,
	}
	if err := that.send(socket, protocol.TypeGameJoined, joined); err != nil {
		return err
	}

	event := federation.PlayerEvent{
		GameID:       game.ID,
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		PlayerSymbol: player.Symbol,
	}
	if err := that.channel.NotifyWaiting(ctx, event); err != nil {
		log.Error("failed to announce waiting game", "gameID", game.ID, "error", err)
	}

	log.Info("created waiting game", "gameID", game.ID, "playerID", player.ID)

	return nil
}

// joinPendingGame completes a game the partner announced. Caller holds the
// lock.
func (that *Orchestrator) joinPendingGame(ctx context.Context, conn *entity.Connection, socket entity.ClientConn, playerName string) error {
	log := that.logger.With("method", "joinPendingGame")

	game := that.pending.game

	player := &entity.Player{
		ID:     ident.NewPlayerID(),
		Name:   playerName,
		Symbol: game.FreeSymbol(),
		NodeID: that.identity.SelfID,
		Conn:   socket,
	}

	game.Players[player.Symbol] = player
	game.Status = entity.StatusPlaying
	game.UpdatedAt = time.Now()
	that.pending = nil

	conn.PlayerID = player.ID
	conn.GameID = game.ID

	event := federation.PlayerEvent{
		GameID:       game.ID,
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		PlayerSymbol: player.Symbol,
	}
	if err := that.channel.NotifyJoined(ctx, event); err != nil {
		log.Error("failed to announce join", "gameID", game.ID, "error", err)
	}

	joined := protocol.GameJoined{
		GameID:             game.ID,
		PlayerID:           player.ID,
		PlayerSymbol:       player.Symbol,
		WaitingForOpponent: false,
	}
	if err := that.send(socket, protocol.TypeGameJoined, joined); err != nil {
		return err
	}

	if err := that.sendGameState(socket, game, player); err != nil {
		return err
	}

	log.Info("joined partner game", "gameID", game.ID, "playerID", player.ID)

	return nil
}

// MakeMove - validates a local move, applies it, acknowledges the mover and
// replicates the new state to the partner.
func (that *Orchestrator) MakeMove(ctx context.Context, socket entity.ClientConn, gameID string, row, col int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "MakeMove", "gameID", gameID)

	game, ok := that.games[gameID]
	if !ok {
		return that.sendError(socket, apperror.ErrGameNotFound.Error())
	}

	conn, ok := that.conns[socket.ID()]
	if !ok || conn.PlayerID == "" {
		return that.sendError(socket, apperror.ErrNotAuthenticated.Error())
	}

	result, err := engine.MakeMove(game, row, col, conn.PlayerID)
	if err != nil {
		return that.send(socket, protocol.TypeMoveRejected, protocol.MoveRejected{Reason: err.Error()})
	}

	accepted := protocol.MoveAccepted{
		GameID:   game.ID,
		Row:      row,
		Col:      col,
		Board:    game.Board,
		NextTurn: game.Turn,
	}
	if err = that.send(socket, protocol.TypeMoveAccepted, accepted); err != nil {
		log.Error("failed to acknowledge move", "error", err)
	}

	move := federation.MoveEvent{
		GameID:   game.ID,
		PlayerID: conn.PlayerID,
		Row:      row,
		Col:      col,
		Board:    game.Board,
		NextTurn: game.Turn,
	}
	if err = that.channel.NotifyMove(ctx, move); err != nil {
		log.Error("failed to replicate move", "error", err)
	}

	if result.GameOver {
		that.finishGame(ctx, game, socket)
	}

	return nil
}

// finishGame transitions the game to finished and runs the game-over
// notification and federation paths. Caller holds the lock.
func (that *Orchestrator) finishGame(ctx context.Context, game *entity.Game, socket entity.ClientConn) {
	log := that.logger.With("method", "finishGame", "gameID", game.ID)

	game.Status = entity.StatusFinished
	game.UpdatedAt = time.Now()

	end := federation.EndEvent{
		GameID:      game.ID,
		Winner:      game.Winner,
		WinningLine: game.WinningLine,
		Board:       game.Board,
	}
	if err := that.channel.NotifyEnded(ctx, end); err != nil {
		log.Error("failed to replicate game end", "error", err)
	}

	over := protocol.GameOver{
		GameID:      game.ID,
		Winner:      game.Winner,
		WinningLine: game.WinningLine,
		Board:       game.Board,
	}
	if err := that.send(socket, protocol.TypeGameOver, over); err != nil {
		log.Error("failed to notify game over", "error", err)
	}

	log.Info("game finished", "winner", game.Winner)
}

// Disconnect - handles a local socket closing. A waiting game is deleted; a
// playing game becomes a technical loss for the leaver.
func (that *Orchestrator) Disconnect(ctx context.Context, socket entity.ClientConn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "Disconnect")

	conn, ok := that.conns[socket.ID()]
	if !ok {
		return
	}

	delete(that.conns, socket.ID())

	if conn.GameID == "" {
		return
	}

	game, ok := that.games[conn.GameID]
	if !ok {
		return
	}

	player := game.PlayerByID(conn.PlayerID)

	switch {
	case game.IsWaiting() && that.pending != nil && that.pending.game.ID == game.ID:
		delete(that.games, game.ID)
		that.pending = nil

		if player != nil {
			event := federation.PlayerEvent{
				GameID:       game.ID,
				PlayerID:     player.ID,
				PlayerName:   player.Name,
				PlayerSymbol: player.Symbol,
			}
			if err := that.channel.NotifyLeft(ctx, event); err != nil {
				log.Error("failed to announce leave", "gameID", game.ID, "error", err)
			}
		}

		log.Info("deleted waiting game after disconnect", "gameID", game.ID)
	case game.IsPlaying() && player != nil:
		delete(that.games, game.ID)

		// The remaining player wins by forfeit; there is no winning line.
		end := federation.EndEvent{
			GameID: game.ID,
			Winner: entity.OtherSymbol(player.Symbol),
			Board:  game.Board,
		}
		if err := that.channel.NotifyEnded(ctx, end); err != nil {
			log.Error("failed to replicate forfeit", "gameID", game.ID, "error", err)
		}

		log.Info("player forfeited by disconnect", "gameID", game.ID, "winner", end.Winner)
	}
}

// HandlePlayerWaiting - mirrors a game the partner just created and marks it
// as the game awaiting a local join.
func (that *Orchestrator) HandlePlayerWaiting(_ context.Context, event federation.PlayerEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "HandlePlayerWaiting", "gameID", event.GameID)

	if _, ok := that.games[event.GameID]; ok {
		log.Info("game already known, ignoring")
		return
	}

	game := entity.NewGame(event.GameID)
	game.Players[event.PlayerSymbol] = &entity.Player{
		ID:     event.PlayerID,
		Name:   event.PlayerName,
		Symbol: event.PlayerSymbol,
		NodeID: that.identity.PartnerID,
	}

	that.games[game.ID] = game
	that.pending = &pendingGame{game: game, fromPartner: true}

	log.Info("mirrored waiting game from partner")
}

// HandlePlayerJoined - fills the partner's slot in a locally created game
// and tells the local player the game is starting.
func (that *Orchestrator) HandlePlayerJoined(_ context.Context, event federation.PlayerEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "HandlePlayerJoined", "gameID", event.GameID)

	game, ok := that.games[event.GameID]
	if !ok {
		log.Error("unknown game, ignoring")
		return
	}

	game.Players[event.PlayerSymbol] = &entity.Player{
		ID:     event.PlayerID,
		Name:   event.PlayerName,
		Symbol: event.PlayerSymbol,
		NodeID: that.identity.PartnerID,
	}
	game.Status = entity.StatusPlaying
	game.UpdatedAt = time.Now()

	if that.pending != nil && that.pending.game.ID == game.ID {
		that.pending = nil
	}

	local := game.LocalPlayer(that.identity.SelfID)
	if local == nil || local.Conn == nil {
		return
	}

	if err := that.sendGameState(local.Conn, game, local); err != nil {
		log.Error("failed to notify game start", "error", err)
	}
}

// HandlePlayerLeft - drops a mirrored waiting game whose owner disconnected
// before the local player joined.
func (that *Orchestrator) HandlePlayerLeft(_ context.Context, event federation.PlayerEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "HandlePlayerLeft", "gameID", event.GameID)

	if that.pending == nil || !that.pending.fromPartner || that.pending.game.ID != event.GameID {
		log.Info("no matching pending game, ignoring")
		return
	}

	delete(that.games, event.GameID)
	that.pending = nil

	log.Info("dropped mirrored waiting game")
}

// HandleMoveMade - overwrites the local mirror with the partner's board and
// turn. The partner is trusted; no re-validation happens here.
func (that *Orchestrator) HandleMoveMade(_ context.Context, event federation.MoveEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "HandleMoveMade", "gameID", event.GameID)

	game, ok := that.games[event.GameID]
	if !ok {
		log.Error("unknown game, ignoring")
		return
	}

	game.Board = event.Board
	game.Turn = event.NextTurn
	game.UpdatedAt = time.Now()

	local := game.LocalPlayer(that.identity.SelfID)
	if local == nil || local.Conn == nil {
		return
	}

	move := protocol.OpponentMove{
		GameID:   game.ID,
		Row:      event.Row,
		Col:      event.Col,
		Board:    game.Board,
		YourTurn: game.Turn == local.Symbol,
	}
	if err := that.send(local.Conn, protocol.TypeOpponentMove, move); err != nil {
		log.Error("failed to notify opponent move", "error", err)
	}
}

// HandleGameEnded - overwrites the mirror with the final state and notifies
// the local player.
func (that *Orchestrator) HandleGameEnded(_ context.Context, event federation.EndEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "HandleGameEnded", "gameID", event.GameID)

	game, ok := that.games[event.GameID]
	if !ok {
		log.Error("unknown game, ignoring")
		return
	}

	game.Status = entity.StatusFinished
	game.Winner = event.Winner
	game.WinningLine = event.WinningLine
	game.Board = event.Board
	game.UpdatedAt = time.Now()

	if that.pending != nil && that.pending.game.ID == game.ID {
		that.pending = nil
	}

	local := game.LocalPlayer(that.identity.SelfID)
	if local == nil || local.Conn == nil {
		return
	}

	over := protocol.GameOver{
		GameID:      game.ID,
		Winner:      game.Winner,
		WinningLine: game.WinningLine,
		Board:       game.Board,
	}
	if err := that.send(local.Conn, protocol.TypeGameOver, over); err != nil {
		log.Error("failed to notify game over", "error", err)
	}
}

func (that *Orchestrator) sendGameState(socket entity.ClientConn, game *entity.Game, player *entity.Player) error {
	state := protocol.GameState{
		GameID:      game.ID,
		Board:       game.Board,
		CurrentTurn: game.Turn,
		YourTurn:    game.Turn == player.Symbol,
		YourSymbol:  player.Symbol,
	}

	return that.send(socket, protocol.TypeGameState, state)
}

func (that *Orchestrator) sendError(socket entity.ClientConn, message string) error {
	return that.send(socket, protocol.TypeError, protocol.Error{Message: message})
}

func (that *Orchestrator) send(socket entity.ClientConn, kind string, payload any) error {
	message, err := protocol.New(kind, payload)
	if err != nil {
		return err
	}

	if err = socket.Send(message); err != nil {
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}

	return nil
}
