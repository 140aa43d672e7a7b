package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/devcollab/server/internal/adapters/http"
	"github.com/devcollab/server/internal/adapters/ws"
	"github.com/devcollab/server/internal/auth"
	"github.com/devcollab/server/internal/bus"
	"github.com/devcollab/server/internal/collab"
	"github.com/devcollab/server/internal/config"
	"github.com/devcollab/server/internal/membership"
	"github.com/devcollab/server/internal/metrics"
	"github.com/devcollab/server/internal/presence"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("jwt_secret must be configured")
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create postgres pool")
	}
	defer pool.Close()

	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}

	// Redis backs both the role cache and the cross-instance relay.
	// Without it the server is still correct for a single instance.
	var roleCache membership.RoleCache = membership.NewNoopCache()
	var relay bus.Bus = bus.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		roleCache = membership.NewRedisRoleCache(rdb)
		relay = bus.NewRedisBus(rdb, instance)
	} else {
		log.Warn().Msg("redis not configured: role cache and cross-instance relay disabled")
	}

	members := membership.NewService(membership.NewPostgresStore(pool), roleCache, cfg.RoleCacheTTL)

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	dir := presence.NewDirectory()
	hub := collab.NewHub(dir, members, relay, met)
	go hub.Run(ctx)

	wsHandler := &ws.Handler{
		Verifier:   auth.NewVerifier(cfg.JWTSecret),
		Hub:        hub,
		Met:        met,
		JoinLimit:  ws.NewJoinRateLimiter(10, time.Minute),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, wsHandler, members, registry)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("instance", instance).Msg("devcollab server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
