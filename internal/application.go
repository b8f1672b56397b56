package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pairplay/tictactoe-node/internal/config"
	"github.com/pairplay/tictactoe-node/internal/federation"
	"github.com/pairplay/tictactoe-node/internal/orchestrator"
	redistransport "github.com/pairplay/tictactoe-node/internal/transport/redis"
	"github.com/pairplay/tictactoe-node/internal/transport/websocket"
)

var (
	ErrAddrNotFound    = errors.New("redis address string is empty")
	ErrNodeIDNotSet    = errors.New("node id is not configured")
	ErrPartnerIDNotSet = errors.New("partner node id is not configured")
)

// RunApp - runs one federated node.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	if conf.Node.ID == "" {
		return ErrNodeIDNotSet
	}

	if conf.Node.PartnerID == "" {
		return ErrPartnerIDNotSet
	}

	bus, err := redistransport.New(ctx, logger, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis bus: %w", err)
	}

	defer func() {
		if err = bus.Close(); err != nil {
			log.Error("could not close redis bus", "error", err)
		}
	}()

	channel := federation.New(logger, bus, conf.Node.Topic, conf.Node.ID, conf.Node.PartnerID)

	orch := orchestrator.New(logger, channel, orchestrator.Identity{
		SelfID:    conf.Node.ID,
		PartnerID: conf.Node.PartnerID,
		Symbol:    conf.Node.Symbol,
	})

	if err = channel.Listen(ctx, orch); err != nil {
		return fmt.Errorf("could not listen on federation topic: %w", err)
	}

	log.Info("Federation channel ready", "nodeID", conf.Node.ID, "partnerID", conf.Node.PartnerID)

	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, orch)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
