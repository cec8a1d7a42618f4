package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/config"
	"github.com/ariefcatur/go-bookstore-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-bookstore-orders/internal/kafka"
	"github.com/ariefcatur/go-bookstore-orders/internal/logging"
	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/postgres"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/ariefcatur/go-bookstore-orders/internal/reporting"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresPool)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewCache(rdb)

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	repo := orders.NewRepo(db)
	svc := orders.NewService(repo, kafkax.EventPublisher{P: prod}, orders.Options{
		ServiceName:          cfg.ServiceName,
		StrictTransitions:    cfg.StrictStatusTransitions,
		RestoreStockOnCancel: cfg.RestoreStockOnCancel,
		EnforceCatalogPrice:  cfg.EnforceCatalogPrice,
	})
	reports := reporting.NewService(repo, reporting.Options{
		Location:          cfg.Location(),
		LowStockThreshold: cfg.LowStockThreshold,
		TopSellers:        cfg.TopSellersLimit,
		Currency:          cfg.CurrencyCode(),
	})

	router := httpx.NewRouter()
	(&httpx.BooksHandler{Catalog: repo}).Register(router)
	(&httpx.OrdersHandler{Orders: svc, Cache: cache}).Register(router)
	(&httpx.AdminHandler{Orders: svc, Reports: reports, Cache: cache, Location: cfg.Location()}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
}
