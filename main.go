package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/box129/ToDo-ForPortfolio/api"
	"github.com/box129/ToDo-ForPortfolio/session"
	"github.com/box129/ToDo-ForPortfolio/storage"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	var (
		flags   storage.FlagStore
		deduper storage.Deduper
	)
	if cfg.RedisConn != "" {
		opts, err := storage.RedisOptions(cfg.RedisConn)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		flags = storage.NewRedisFlags(rc, cfg.FlagPrefix)
		deduper = storage.NewRedisDeduper(rc, cfg.DeduperTTL)
	} else {
		logger.Warn("REDIS_CONNECTION_STRING not set; using in-memory flag and idempotency stores")
		flags = storage.NewMemoryFlags()
		deduper = storage.NewMemoryDeduper(cfg.DeduperTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewRegistry(logger, cfg.SessionIdleTTL)
	go sessions.Run(ctx, cfg.SweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))
	api.Register(e, sessions, flags, deduper, logger, cfg.Heartbeat)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.WithField("addr", cfg.ListenAddr).Info("todo board listening")
	if err := e.Start(cfg.ListenAddr); err != nil && ctx.Err() == nil {
		logger.Fatal(err)
	}
}
