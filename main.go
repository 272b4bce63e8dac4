package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/config"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/registry"
	store "github.com/xiaot623/gogo/coordinator/internal/repository"
	"github.com/xiaot623/gogo/coordinator/internal/service"
	handler "github.com/xiaot623/gogo/coordinator/internal/transport/http"
	"github.com/xiaot623/gogo/coordinator/internal/transport/ws"
	"github.com/xiaot623/gogo/coordinator/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := newLogger(cfg)

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("database", cfg.DatabaseURL).
		Strs("agents", cfg.AgentNames()).
		Msg("starting workshop coordinator")

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load approval catalog")
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notification side channel
	hub := ws.NewHub(cfg.WSSendBuffer, log)
	dispatcher := notify.NewDispatcher(cfg.EventBuffer, log, notify.NewJournalSink(db), hub)
	if cfg.NATSURL != "" {
		natsSink, err := notify.NewNATSSink(cfg.NATSURL, cfg.NATSSubjectPrefix, log)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("failed to connect to NATS")
		}
		defer natsSink.Close()
		dispatcher.AddSink(natsSink)
	}
	if cfg.WebhookURL != "" {
		dispatcher.AddSink(notify.NewWebhookSink(cfg.WebhookURL, &http.Client{Timeout: 10 * time.Second}))
	}

	// Engines
	approvals := service.NewApprovalEngine(catalog,
		service.WithApprovalEmitter(dispatcher),
		service.WithApprovalLogger(log),
		service.WithEscalationExtension(cfg.EscalationExtension),
		service.WithEscalationAssignee(cfg.EscalationAssignee),
	)
	evolutions := service.NewEvolutionTracker(
		service.WithEvolutionEmitter(dispatcher),
		service.WithEvolutionLogger(log),
	)

	// Agent bridge
	agents := registry.New(cfg.AgentEndpoints)
	bridge := service.NewBridge(agents, agentclient.NewClient(cfg.AgentTimeout),
		service.WithMaxAttempts(cfg.AgentMaxAttempts),
		service.WithBackoffBase(cfg.AgentBackoffBase),
		service.WithBridgeEmitter(dispatcher),
		service.WithBridgeLogger(log),
	)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	// Initialize service
	svc := service.New(db, approvals, evolutions, bridge, agents, policyEngine, dispatcher, cfg, log)
	if err := svc.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore state")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	dispatched := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatched)
	}()
	go svc.RunOverdueMonitor(ctx)

	server := handler.NewServer(svc, ws.NewServer(cfg, hub, log), cfg, log)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	log.Info().Int("port", cfg.HTTPPort).Msg("API started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down workshop coordinator")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server gracefully")
	}
	cancel()
	<-dispatched
	stopHub()

	log.Info().Msg("workshop coordinator stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var log zerolog.Logger
	if cfg.LogFormat == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", "workshop-coordinator").Logger()
}
