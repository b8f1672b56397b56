// Package websocket serves the client-facing message socket.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairplay/tictactoe-node/internal/entity"
	"github.com/pairplay/tictactoe-node/internal/protocol"
	"github.com/pairplay/tictactoe-node/pkg/ident"
)

type orchestrator interface {
	Register(socket entity.ClientConn)
	JoinGame(ctx context.Context, socket entity.ClientConn, playerName string) error
	MakeMove(ctx context.Context, socket entity.ClientConn, gameID string, row, col int) error
	Disconnect(ctx context.Context, socket entity.ClientConn)
}

type Server struct {
	logger   *slog.Logger
	orch     orchestrator
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, orch orchestrator) *Server {
	return &Server{
		logger: logger.With("component", "websocket"),
		orch:   orch,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start - serves the /ws endpoint until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) handleSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "handleSocket")

	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConn(ident.NewConnectionID(), ws)
	that.orch.Register(conn)

	log.Info("client connected", "connID", conn.ID())

	defer func() {
		that.orch.Disconnect(ctx, conn)

		if err = ws.Close(); err != nil {
			log.Error("failed to close connection", "error", err)
		}

		log.Info("client disconnected", "connID", conn.ID())
	}()

	that.readMessages(ctx, ws, conn)
}

// readMessages - decodes client messages and dispatches them until the
// socket closes. Malformed or unrecognized messages get a generic error
// response; the connection stays open.
func (that *Server) readMessages(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	log := that.logger.With("method", "readMessages", "connID", conn.ID())

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("unexpected close", "error", err)
			}

			return
		}

		var message protocol.Message
		if err = json.Unmarshal(raw, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendError(conn, "malformed message")

			continue
		}

		if err = that.handleMessage(ctx, conn, &message); err != nil {
			log.Error("failed to handle message", "type", message.Type, "error", err)
		}
	}
}

func (that *Server) handleMessage(ctx context.Context, conn *Conn, message *protocol.Message) error {
	switch message.Type {
	case protocol.TypeJoinGame:
		var payload protocol.JoinGame
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			that.sendError(conn, "malformed JOIN_GAME payload")
			return nil
		}

		return that.orch.JoinGame(ctx, conn, payload.PlayerName)
	case protocol.TypeMakeMove:
		var payload protocol.MakeMove
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			that.sendError(conn, "malformed MAKE_MOVE payload")
			return nil
		}

		return that.orch.MakeMove(ctx, conn, payload.GameID, payload.Row, payload.Col)
	default:
		that.sendError(conn, fmt.Sprintf("unknown message type: %s", message.Type))
		return nil
	}
}

func (that *Server) sendError(conn *Conn, text string) {
	message, err := protocol.New(protocol.TypeError, protocol.Error{Message: text})
	if err != nil {
		that.logger.Error("failed to build error message", "error", err)
		return
	}

	if err = conn.Send(message); err != nil {
		that.logger.Error("failed to send error message", "error", err)
	}
}
