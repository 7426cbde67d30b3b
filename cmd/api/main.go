package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supperclub/internal/api"
	"supperclub/internal/config"
	"supperclub/internal/database"
	"supperclub/internal/domain"
	"supperclub/internal/events"
	"supperclub/internal/logging"
	"supperclub/internal/metrics"
	"supperclub/internal/repository"
	"supperclub/internal/service"
	"supperclub/internal/validation"
	"supperclub/internal/wizard"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	memory := repository.NewMemoryDraftRepository(cfg.Wizard.DraftTTL)
	drafts := initDrafts(cfg, redisClient, memory, logger)

	schemas, err := validation.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("load field schemas: %w", err)
	}

	bus := events.NewEventBus()
	subscribeAuditLog(bus, logging.Component(logger, "events"))

	validator := wizard.NewValidator(wizard.DefaultRules, schemas, wizard.WithMaxAdvanceDays(cfg.Wizard.MaxAdvanceDays))
	bookings := service.NewBookingService(db, validator, bus, cfg.Sessions, logging.Component(logger, "bookings"))
	profiles := service.NewProfileService(db, logging.Component(logger, "profiles"))
	wizards := service.NewWizardService(validator, bookings, profiles, drafts, bus, cfg.Wizard, logging.Component(logger, "wizard"))

	httpServer := api.NewHTTPServer(&cfg.API, wizards, bookings, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backups := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
	go backups.Start(ctx)
	go memory.StartCleanup(ctx, time.Minute)
	go wizards.StartCleanup(ctx, time.Minute)

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		// Клиент оставляем: failover переключится на память и вернется к Redis позже
		logger.Warn().Err(err).Msg("redis connection failed, drafts start in memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initDrafts(cfg *config.Config, redisClient *redis.Client, memory *repository.MemoryDraftRepository, logger *zerolog.Logger) domain.DraftRepository {
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisDraftRepository(redisClient, cfg.Wizard.DraftTTL)
	return repository.NewFailoverDraftRepository(primary, memory, logging.Component(logger, "drafts"))
}

func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	audit := func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		logger.Info().
			Str("event", event.Type).
			Str("booking_id", payload.BookingID).
			Str("draft_id", payload.DraftID).
			Str("status", payload.Status).
			Str("previous_status", payload.PreviousStatus).
			Msg("booking event")
		return nil
	}
	for _, eventType := range []string{
		events.EventBookingSubmitted,
		events.EventBookingUpdated,
		events.EventBookingStatusChanged,
		events.EventDraftClosed,
	} {
		bus.Subscribe(eventType, audit)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
