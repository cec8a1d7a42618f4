package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-bookstore-orders/internal/config"
	"github.com/ariefcatur/go-bookstore-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-bookstore-orders/internal/kafka"
	"github.com/ariefcatur/go-bookstore-orders/internal/logging"
	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/postgres"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	name := cfg.ServiceName + "-inventory"
	logging.Setup(cfg.LogLevel, cfg.LogFormat, name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresPool)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// StockLow alerts
	// the producer outlives ctx so alerts queued by in-flight handlers still get written
	prodCtx, stopProd := context.WithCancel(context.Background())
	defer stopProd()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(prodCtx)

	svc := &inventory.Service{
		Catalog:     orders.NewRepo(db),
		Cache:       redisx.NewCache(rdb),
		Events:      kafkax.EventPublisher{P: prod},
		Threshold:   cfg.LowStockThreshold,
		ServiceName: name,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderPlaced, cfg.InventoryWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().Str("group", cfg.InventoryGroup).Str("topic", orders.TopicOrderPlaced).
			Int("workers", cfg.InventoryWorkers).Msg("inventory consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down consumer...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
