package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sengunthar/matrimony/internal/api"
	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/cache"
	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/logger"
	"github.com/sengunthar/matrimony/internal/mail"
	"github.com/sengunthar/matrimony/internal/realtime"
	"github.com/sengunthar/matrimony/internal/server"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/service/match"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Redis is optional; without it the reaper runs unguarded and re-warns
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg)
		if err := redisCache.Ping(ctx); err != nil {
			log.Error("failed to connect to redis", "err", err)
			os.Exit(1)
		}
	}

	appCtx := app.New(database, redisCache, log, cfg)
	defer func() {
		if err := appCtx.Close(); err != nil {
			log.Error("failed to close app context", "err", err)
		}
	}()

	if cfg.App.ENV == "development" {
		if _, err := db.SeedAdmin(database, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
			log.Error("failed to seed admin", "err", err)
		}
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", "err", err)
		// os.Exit skips the deferred close
		_ = appCtx.Close()
		os.Exit(1)
	}

	hub := realtime.NewHub(log)
	sink := notify.NewSink(appCtx, hub)
	issuer := auth.NewIssuer(cfg.JWT.Secret)
	accounts := account.NewService(appCtx, sink, store, auth.NewHasher(0), issuer)
	matches := match.NewService(appCtx, sink, store)

	reaper := account.NewReaper(appCtx, sink, store, mail.New(cfg.SMTP, log))
	if cfg.Reaper.Enabled {
		reaper.Start(ctx)
	}

	router := api.NewRouter(appCtx, api.Deps{
		Accounts: accounts,
		Matches:  matches,
		Sink:     sink,
		Hub:      hub,
		Issuer:   issuer,
		Store:    store,
	})
	health := server.NewHealthRegistrar(database)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Watch(ctx, 15*time.Second)
	}()
	run(func() error { return server.StartHTTPServer(ctx, server.NewHTTPServer(cfg, router)) })
	run(func() error { return server.StartGRPCServer(ctx, cfg, health) })

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed", "err", err)
		stop()
	}

	// websocket handlers block until their peers leave
	hub.CloseAll()
	wg.Wait()
	reaper.Stop()
	log.Info("shutdown complete")
}
