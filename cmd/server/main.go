package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/erfan-mirasadi/menu-3d/internal/config"
	"github.com/erfan-mirasadi/menu-3d/internal/database"
	"github.com/erfan-mirasadi/menu-3d/internal/handler"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/realtime"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
	"github.com/erfan-mirasadi/menu-3d/internal/router"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: in-process change feed, rate limiting off")
	} else {
		defer rdb.Close()
	}
	feed, throttle := realtimeBackends(cfg.Realtime, rdb)

	store, closeStore := openStore(ctx, cfg, feed)
	defer closeStore()

	var events service.EventPublisher = queue.LogPublisher{}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
	}

	svc := service.New(store, service.Options{
		KitchenEnabled: cfg.Ordering.KitchenEnabled,
		Events:         events,
	})
	hub := realtime.NewHub(ctx, store, feed, throttle, cfg.Realtime.Debounce)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	deps := router.Deps{
		Auth:      handler.NewAuthHandler(svc, cfg.JWTSecret, cfg.GuestTTL),
		Ledger:    handler.NewLedgerHandler(svc),
		Stream:    handler.NewStreamHandler(hub),
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
	}
	router.RegisterRoutes(e, deps)
	router.RegisterLedger(e, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s, store=%s, kitchen=%v)", addr, cfg.Env, cfg.StoreDriver, cfg.Ordering.KitchenEnabled)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.RabbitURL != "" {
		g.Go(func() error { return queue.NewConsumer(cfg.RabbitURL).Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

// realtimeBackends picks Redis pub/sub and SET NX dedupe when Redis is up,
// so every instance sees every commit, and in-process ones otherwise.
func realtimeBackends(cfg config.RealtimeConfig, rdb *redis.Client) (realtime.Feed, realtime.Throttle) {
	if rdb == nil {
		return realtime.NewMemoryFeed(), realtime.NewMemoryThrottle(cfg.DedupeTTL)
	}
	return realtime.NewRedisFeed(rdb, cfg.Prefix), realtime.NewRedisThrottle(rdb, cfg.Prefix, cfg.DedupeTTL)
}

func openStore(ctx context.Context, cfg config.Config, sink repository.ChangeSink) (repository.Ledger, func()) {
	if cfg.StoreDriver == config.DriverMemory {
		mem := repository.NewMemoryStore(sink)
		seedDemo(mem)
		log.Printf("memory store seeded with restaurant %q", demoRestaurant)
		return mem, func() {}
	}
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return repository.NewMySQLStore(db, sink), func() { _ = db.Close() }
}
