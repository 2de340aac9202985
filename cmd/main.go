package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Etopia1/UberAppBackend/internal/api"
	"github.com/Etopia1/UberAppBackend/internal/cache"
	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/config"
	"github.com/Etopia1/UberAppBackend/internal/kafka"
	"github.com/Etopia1/UberAppBackend/internal/logger"
	"github.com/Etopia1/UberAppBackend/internal/presence"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/router"
	"github.com/Etopia1/UberAppBackend/internal/signaling"
	"github.com/Etopia1/UberAppBackend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.App.JWTSecret == "" {
		cfg.App.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.App.JWTSecret == "" {
		log.Fatal("jwt secret is required")
	}

	zl, err := logger.New(cfg.App.Env == "development")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var store repository.Store
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			zl.Fatalw("mongo connect", "err", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		ms := repository.NewMongoStore(client.Database(cfg.Mongo.Database))
		if err := ms.EnsureIndexes(ctx); err != nil {
			zl.Warnw("ensure indexes", "err", err)
		}
		store = ms
	} else {
		zl.Warn("no mongo uri configured, using in-memory store")
		store = repository.NewMemoryStore()
	}

	var mirror presence.Mirror
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		mirror = cache.NewPresenceStore(rdb, cfg.Redis.Prefix)
	}

	var pub chat.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer func() { _ = producer.Close() }()
		pub = producer
	}

	reg := registry.New()
	rt := router.New(reg, store, zl)
	tracker := presence.NewTracker(reg, rt, store, mirror, zl)
	engine := chat.NewEngine(store, pub, zl)
	relay := signaling.NewRelay(rt, engine, zl)
	wsrv := ws.NewServer(reg, tracker, engine, relay, rt, store, cfg.App.JWTSecret, zl)
	app := api.NewServer(wsrv, engine, store, reg, cfg.App.JWTSecret, zl)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.Port
		zl.Infow("starting realtime service", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zl.Warnw("shutdown", "err", err)
	}
	zl.Info("shutting down")
}
