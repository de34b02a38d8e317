package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/pflag"

	invapp "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/application"
	invhttp "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/infrastructure/http"
	invpg "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	orderhttp "github.com/dmehra2102/Ticket-Allocation-System/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/Ticket-Allocation-System/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/Ticket-Allocation-System/internal/order/infrastructure/postgres"
	repapp "github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/application"
	rephttp "github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/infrastructure/http"
	reppg "github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/infrastructure/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/storage/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/config"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/idempotency"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/logging"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/outbox"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/shutdown"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/tracing"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres
	pool, err := postgres.Open(ctx, cfg.Postgres.URL, log)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	// Redis backed idempotency for both HTTP replays and command offsets
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL)

	// Services
	invSvc := invapp.NewService(log, invpg.NewRepository(log, pool))
	orderRepo := orderpg.NewRepository(log, pool)
	orderSvc := application.NewService(log, orderRepo)
	repSvc := repapp.NewService(log, reppg.NewRepository(log, pool))

	// Outbox relay
	writer := orderkafka.NewWriter(log, cfg.Kafka.Brokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OutboxTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, cfg.Tracing.ServiceName+"-"+uuid.NewString())

	consumer := orderkafka.NewConsumer(log, cfg.Kafka.Brokers, cfg.Kafka.CommandTopic, cfg.Kafka.GroupID, orderSvc, idem)

	// HTTP
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	invhttp.NewHandler(log, invSvc).Register(r)
	orderhttp.NewHandler(log, orderSvc, idempotency.Middleware(log, idem)).Register(r)
	rephttp.NewHandler(log, repSvc).Register(r)

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: cors.New(cors.Options{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", idempotency.Header},
		}).Handler(r),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("command consumer stopped with error", "err", err)
		}
	}()

	if cfg.Sweeper.Enabled {
		sweeper := application.NewSweeper(log, orderRepo, orderSvc, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize)
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				log.Error("sweeper stopped with error", "err", err)
			}
		}()
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	if err := shutdown.Drain(10*time.Second, srv.Shutdown, tp.Shutdown); err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	log.Info("ticket-service shutdown complete")
}
