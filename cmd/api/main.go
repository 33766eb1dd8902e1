package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/config"
	"github.com/ariefcatur/pos-terminal/internal/httpx"
	kafkax "github.com/ariefcatur/pos-terminal/internal/kafka"
	"github.com/ariefcatur/pos-terminal/internal/logx"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/ariefcatur/pos-terminal/internal/postgres"
	"github.com/ariefcatur/pos-terminal/internal/redisx"
	"github.com/joho/godotenv"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	products := &httpx.ProductsHandler{Store: &catalog.Repo{DB: db}}
	oh := &httpx.OrdersHandler{
		Store:   &orders.Repo{DB: db, Log: log},
		Service: cfg.ServiceName,
	}

	// Redis (optional)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, product cache will miss")
		}
		cache := redisx.NewProductCache(rdb, cfg.ProductCacheTTL)
		products.Cache = cache
		oh.Cache = cache
	}

	// Kafka producer (optional)
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderSubmitted, 1024, log)
		prod.Start()
		oh.Publisher = prod
	}

	router := httpx.NewRouter(log, cfg.RateLimitRPS, cfg.RateLimitBurst)
	products.Register(router)
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("listen")
	}
	log.Info().Msg("shutting down...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	if ctx.Err() == nil {
		os.Exit(1)
	}
}
