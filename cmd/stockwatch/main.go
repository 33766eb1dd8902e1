package main

import (
	"context"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/ariefcatur/pos-terminal/internal/config"
	kafkax "github.com/ariefcatur/pos-terminal/internal/kafka"
	"github.com/ariefcatur/pos-terminal/internal/logx"
	"github.com/ariefcatur/pos-terminal/internal/orders"
	"github.com/ariefcatur/pos-terminal/internal/postgres"
	"github.com/ariefcatur/pos-terminal/internal/redisx"
	"github.com/ariefcatur/pos-terminal/internal/stockwatch"
	"github.com/joho/godotenv"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-stockwatch"
	log := logx.New(cfg.LogLevel, cfg.LogFormat, name)

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Fatal().Msg("stockwatch needs KAFKA_BROKERS and REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 256, log)
	prod.Start()

	svc := &stockwatch.Service{
		Products:    &catalog.Repo{DB: db},
		Redis:       rdb,
		Publisher:   prod,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: name,
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockwatchGroup, orders.TopicOrderSubmitted, cfg.StockwatchWorkers, log)
	log.Info().Str("group", cfg.StockwatchGroup).Str("topic", orders.TopicOrderSubmitted).
		Int("workers", cfg.StockwatchWorkers).Int("threshold", cfg.LowStockThreshold).Msg("stock watcher started")
	if err := cons.Start(ctx, svc.HandleOrderSubmitted); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}

	log.Info().Msg("shutting down consumer...")
	prod.Close()
	prod.WaitClosed()
}
