package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/liarsdeck/liars-server-go/internal/broadcast"
	"github.com/liarsdeck/liars-server-go/internal/config"
	"github.com/liarsdeck/liars-server-go/internal/game"
	"github.com/liarsdeck/liars-server-go/internal/lobby"
	"github.com/liarsdeck/liars-server-go/internal/repository"
	"github.com/liarsdeck/liars-server-go/internal/server"
	"github.com/liarsdeck/liars-server-go/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting liars server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// The profile store is optional; without it avatars are empty and
	// everything else works.
	var db *repository.DB
	if cfg.Database.Enabled {
		db, err = repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("profile store connected",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
	} else {
		logger.Info("profile store disabled")
	}
	profiles := repository.NewProfileRepository(db)

	sessionMgr := session.NewManager(cfg.Server.SessionLease, logger)
	logger.Info("session manager initialized",
		zap.Duration("session_lease", cfg.Server.SessionLease),
	)
	go sessionMgr.CleanupExpiredSessions(ctx)

	bc := broadcast.New(logger)

	lobbyMgr := lobby.NewManager(bc, logger)
	logger.Info("lobby presence initialized")

	roomMgr := game.NewManager(cfg.Game, bc, lobbyMgr, logger)
	lobbyMgr.SetRoomLister(roomMgr)
	logger.Info("room manager initialized",
		zap.Int("room_capacity", cfg.Game.RoomCapacity),
		zap.Int("hand_size", cfg.Game.HandSize),
		zap.Duration("turn_time_limit", cfg.Game.TurnTimeLimit),
		zap.Duration("disconnect_grace", cfg.Game.DisconnectGrace),
	)

	srv := server.New(cfg, roomMgr, lobbyMgr, sessionMgr, profiles, logger)

	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil {
			logger.Error("websocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("liars server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	roomMgr.CloseAll()
	sessionMgr.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("liars server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
