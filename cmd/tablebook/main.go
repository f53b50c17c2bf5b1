package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablebook/internal/auth"
	"tablebook/internal/availability"
	"tablebook/internal/booking"
	"tablebook/internal/config"
	"tablebook/internal/events"
	"tablebook/internal/hours"
	"tablebook/internal/journal"
	"tablebook/internal/metrics"
	"tablebook/internal/notify"
	"tablebook/internal/restapi"
	"tablebook/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("TABLEBOOK_CONFIG"), "path to config.yaml")
	envPath := flag.String("env", ".env", "path to .env file")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for auth.users and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if err := config.LoadDotEnv(*envPath); err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	store, err := journal.Open(cfg.Journal.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open journal error")
	}
	defer store.Close()

	client := restapi.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.APITimeout())
	if cfg.API.HealthPath != "" {
		client.SetHealthPath(cfg.API.HealthPath)
	}
	if cfg.API.RateLimitRPS > 0 {
		client.UseRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
	}
	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.APICacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.APICacheTTL())
	}

	resolver := hours.NewResolver(client)
	local := availability.NewEvaluator(resolver, client, logger)
	checker, err := availability.NewChecker(cfg.AvailabilitySource(), local, availability.NewRemote(client), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("availability checker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logger)
	bus.SubscribeAll(store.HandleEvent)
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.Managers) > 0 {
		bot, err := notify.NewBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		notifier := notify.New(bot, cfg.Telegram.Managers, logger)
		notifier.Subscribe(bus)
		notifier.Start(ctx)
		if cfg.Telegram.DigestHour != nil {
			notifier.StartDigest(ctx, client, *cfg.Telegram.DigestHour)
		}
		logger.Info().Int("managers", len(cfg.Telegram.Managers)).Msg("telegram notifications enabled")
	}

	sessions := booking.NewSessionStore(checker, cfg.SessionTimeout())
	go cleanupSessions(ctx, sessions, &logger)

	if cfg.Setup.Sync {
		watcher := &config.SetupWatcher{
			Path:     cfg.Setup.Path,
			Interval: cfg.SetupWatchInterval(),
			Logger:   logger,
			Apply: func(ctx context.Context, setup *config.SetupConfig) error {
				report, err := config.ApplySetup(ctx, client, setup)
				if err != nil {
					return err
				}
				logger.Info().
					Int("tables_created", report.TablesCreated).
					Int("tables_updated", report.TablesUpdated).
					Int("hours_set", report.HoursSet).
					Int("special_days_set", report.SpecialSet).
					Strs("unmanaged_tables", report.Unmanaged).
					Msg("setup synced")
				bus.Publish(ctx, events.Event{Type: events.HoursChanged, Actor: "setup", Detail: setup.String()})
				return nil
			},
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("setup file error")
		}
	}

	if cfg.Backup.Enabled {
		go store.RunBackups(ctx, cfg.BackupPath(), cfg.BackupInterval(), cfg.BackupRetention())
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := client.HealthCheck(hctx); err != nil {
		logger.Warn().Err(err).Str("base_url", cfg.API.BaseURL).Msg("reservation API not reachable yet")
	}
	cancel()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	srv := server.New(server.Deps{
		API:         client,
		Hours:       resolver,
		Checker:     checker,
		Sessions:    sessions,
		Submitter:   booking.NewSubmitter(client, cfg.Booking.ContactThreshold, logger),
		Auth:        auth.NewService(cfg, cfg.Auth.JWTSecret, cfg.TokenTTL()),
		Journal:     store,
		Bus:         bus,
		Granularity: cfg.SlotGranularity(),
		Logger:      logger,
	})
	httpServer := &http.Server{
		Addr: cfg.ServerAddress(),
		Handler: srv.Router(server.Options{
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			CacheTTL:       cfg.ServerCacheTTL(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", httpServer.Addr).Str("availability", cfg.AvailabilitySource()).Msg("tablebook started")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server error")
	}
	logger.Info().Msg("tablebook stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Log.Format == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func cleanupSessions(ctx context.Context, sessions *booking.SessionStore, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Msg("expired booking sessions removed")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, store *journal.Store, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.PingContext(ctxPing); err != nil {
			http.Error(w, "journal not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
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
