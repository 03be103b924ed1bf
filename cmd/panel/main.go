package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockedby/tg-panel/internal/bridge"
	"github.com/blockedby/tg-panel/internal/config"
	"github.com/blockedby/tg-panel/internal/history"
	"github.com/blockedby/tg-panel/internal/logger"
	"github.com/blockedby/tg-panel/internal/panel"
	"github.com/blockedby/tg-panel/internal/publisher"
	"github.com/blockedby/tg-panel/internal/queue"
	"github.com/blockedby/tg-panel/internal/web"

	"github.com/nats-io/nats.go"
)

func main() {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting panel service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	if cfg.AccountID == "" {
		log.Fatal().Msg("ACCOUNT_ID is required")
	}

	// history store (local sqlite)
	var store *history.Store
	store, err = history.Open(cfg.HistoryPath)
	if err != nil {
		log.Warn().Err(err).Msg("history store unavailable, recording disabled")
		store = nil
	}

	// optional NATS publishing
	var pub panel.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	bridgeClient := bridge.NewClient(cfg.BridgeURL, cfg.AccountID)
	consumer := bridge.NewConsumer()

	actionQueue := queue.New(queue.Options{
		InviteDelay:      cfg.InviteDelay,
		UsernameDelay:    cfg.UsernameDelay,
		FloodWaitBackoff: cfg.FloodWaitBackoff,
		ActionTimeout:    cfg.ActionTimeout,
	})

	var recorder panel.Recorder
	if store != nil {
		recorder = store
	}

	controller := panel.NewController(panel.Options{
		AccountID:         cfg.AccountID,
		SearchResultLimit: cfg.SearchResultLimit,
	}, bridgeClient, actionQueue, consumer, pub, recorder)

	hub := web.NewHub()
	go hub.Run()

	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, controller, store, hub)

	log.Info().Int("port", cfg.HTTPPort).Str("bridge", cfg.BridgeURL).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	controller.Close()
	actionQueue.Clear()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Stop(shutdownCtx)

	log.Info().Msg("shutdown complete")
}
