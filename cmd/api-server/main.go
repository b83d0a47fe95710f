package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinhub/scheduling-engine/internal/api"
	"github.com/clinhub/scheduling-engine/internal/config"
	"github.com/clinhub/scheduling-engine/internal/db"
	"github.com/clinhub/scheduling-engine/internal/ratelimit"
	redisclient "github.com/clinhub/scheduling-engine/internal/redis"
	"github.com/clinhub/scheduling-engine/internal/schedule"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY is not set; all machine-to-machine requests will be rejected")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	var rdb *redis.Client
	var limiter ratelimit.Limiter
	if cfg.RateLimitStore == "redis" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		limiter = ratelimit.NewRedisLimiter(rdb)
		log.Info().Msg("connected to Redis, using shared rate-limit store")
	} else {
		memLimiter := ratelimit.NewMemoryLimiter()
		go sweepLoop(rootCtx, memLimiter, cfg.RateWindow)
		limiter = memLimiter
		log.Info().Msg("using in-memory rate-limit store; effective limits multiply per instance")
	}

	grid, err := schedule.NewSlotGrid(cfg.WorkdayStartMinute, cfg.WorkdayEndMinute, cfg.SlotMinutes)
	if err != nil {
		log.Fatal().Err(err).Msg("slot grid error")
	}

	repo := schedule.NewPgRepository(pgPool)
	svc := schedule.NewService(repo, grid, cfg.SlotCapacity, log)

	router := api.NewRouter(api.RouterConfig{
		Service:    svc,
		Limiter:    limiter,
		PgPool:     pgPool,
		Redis:      rdb,
		Logger:     log,
		APIKey:     cfg.APIKey,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}

	log.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// sweepLoop drops expired in-memory buckets so key cardinality stays
// bounded over long uptimes.
func sweepLoop(ctx context.Context, l *ratelimit.MemoryLimiter, window time.Duration) {
	ticker := time.NewTicker(10 * window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
