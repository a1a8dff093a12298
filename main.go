package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamsched/calendarsync"
	"teamsched/config"
	"teamsched/database"
	"teamsched/handlers"
	"teamsched/logger"
	"teamsched/middleware"
	"teamsched/scheduling"
	"teamsched/store"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{})
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, ServiceName: "teamsched", Pretty: cfg.LogPretty})

	// Initialize database
	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := newServer(ctx, cfg, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	go func() {
		log.Info().
			Str("port", cfg.ServerPort).
			Str("timezone", cfg.Location.String()).
			Str("approval_mode", string(cfg.ApprovalMode)).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// newServer wires the store, services and handlers over an open database.
func newServer(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*http.Server, error) {
	repo, err := store.New(db, store.Options{CacheSize: cfg.CacheSize, Location: cfg.Location, Log: log})
	if err != nil {
		return nil, err
	}

	publisher, err := calendarsync.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	validator := scheduling.NewConflictValidator(cfg.Location)
	filings := scheduling.NewFilingService(repo, validator, scheduling.FilingOptions{
		Mode:      cfg.ApprovalMode,
		Publisher: publisher,
		Log:       log,
	})
	wfh := scheduling.NewWfhService(repo, validator, log)
	calendar := scheduling.NewCalendarService(repo, cfg.Location, time.Now)
	parser := scheduling.NewInputParser(cfg.Location, cfg.MinReasonLength)
	guard := middleware.NewAuth(cfg.JWTSecret, cfg.JWTExpiration, repo)

	router := handlers.NewRouter(handlers.Deps{
		Auth:     handlers.NewAuthHandler(repo, guard, calendar, log),
		Overtime: handlers.NewOvertimeHandler(filings, calendar, parser, time.Now),
		Schedule: handlers.NewScheduleHandler(wfh, calendar, parser, time.Now),
		Guard:    guard,
		Log:      log,
	})

	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
