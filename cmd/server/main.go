// Package main is the entry point for the shift reminder server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shift-reminder/backend/internal/api"
	"github.com/shift-reminder/backend/internal/api/handlers"
	"github.com/shift-reminder/backend/internal/calendar"
	"github.com/shift-reminder/backend/internal/config"
	"github.com/shift-reminder/backend/internal/logger"
	"github.com/shift-reminder/backend/internal/notify"
	"github.com/shift-reminder/backend/internal/reconcile"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/websocket"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Server.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting shift reminder", zap.String("version", version), zap.String("timezone", cfg.Timezone))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db, zl.Named("storage")); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	zl.Info("database ready", zap.String("path", db.Path()))

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(zl)
	go hub.Run(hubCtx)

	users := storage.NewUserRepository(db)
	anchors := storage.NewAnchorRepository(db)
	slots := storage.NewClassSlotRepository(db)
	events := storage.NewEventRepository(db)

	sender := notify.Multi{notify.NewHubSender(hub)}
	if cfg.HomeAssistant.Enabled {
		sender = append(sender, notify.NewHASender(notify.HAConfig{
			BaseURL:         cfg.HomeAssistant.URL,
			Token:           cfg.HomeAssistant.Token,
			SupervisorToken: cfg.HomeAssistant.SupervisorToken,
			Service:         cfg.HomeAssistant.NotifyService,
			Timeout:         cfg.HomeAssistant.Timeout,
		}))
		zl.Info("home assistant delivery enabled", zap.String("service", cfg.HomeAssistant.NotifyService))
	}

	jobs := scheduler.New(
		scheduler.WithLogger(zl),
		scheduler.WithDefaultGrace(cfg.Reminders.EventGrace),
		scheduler.WithRetention(cfg.Reminders.FiredRetention),
	)
	jobs.Start(ctx)
	defer jobs.Stop()

	loc := cfg.Location()
	sweeper := reconcile.NewSweeper(
		reconcile.Stores{Users: users, Anchors: anchors, Slots: slots, Events: events},
		jobs,
		sender,
		reconcile.Config{
			Location:    loc,
			EventGrace:  cfg.Reminders.EventGrace,
			ClassGrace:  cfg.Reminders.ClassGrace,
			DailySpec:   cfg.Sweeps.DailyCron,
			NightlySpec: cfg.Sweeps.NightlyCron,
		},
		zl,
	)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting sweeps: %w", err)
	}
	defer sweeper.Stop()

	// Today's class reminders and every future event reminder are rebuilt
	// on each start; the scheduler keeps nothing across restarts.
	if _, err := sweeper.DailyClassSweep(ctx); err != nil {
		zl.Error("startup class sweep failed", zap.Error(err))
	}
	if _, err := sweeper.StartupSweep(ctx); err != nil {
		zl.Error("startup event sweep failed", zap.Error(err))
	}

	router := api.NewRouter(api.Services{
		DB:        db,
		Users:     users,
		Slots:     slots,
		Events:    events,
		Calendar:  calendar.NewService(users, anchors, slots, events, loc, zl),
		Parser:    calendar.NewParser(),
		Jobs:      jobs,
		Sweeper:   sweeper,
		Hub:       hub,
		Defaults:  handlers.UserDefaults{Timezone: cfg.Timezone, Lead: cfg.Reminders.DefaultLead},
		StaticDir: cfg.Server.StaticDir,
		Logger:    zl,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	zl.Info("shutting down server")
	websocket.NewEventBroadcaster(hub).BroadcastNotification("warning", "Server restarting", "Reminders resume when the server is back.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	zl.Info("server stopped")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
