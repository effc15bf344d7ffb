package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/SureSend/internal/api"
	"github.com/honeynil/SureSend/internal/config"
	"github.com/honeynil/SureSend/internal/handler"
	"github.com/honeynil/SureSend/internal/infrastructure/auth"
	"github.com/honeynil/SureSend/internal/infrastructure/kafka"
	"github.com/honeynil/SureSend/internal/infrastructure/payment"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/infrastructure/sms"
	"github.com/honeynil/SureSend/internal/observability"
	"github.com/honeynil/SureSend/internal/repository"
	"github.com/honeynil/SureSend/internal/repository/memory"
	"github.com/honeynil/SureSend/internal/repository/postgres"
	service "github.com/honeynil/SureSend/internal/services"
	"github.com/honeynil/SureSend/internal/validation"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	addr     string
	inMemory bool
	migrate  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides PORT)")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "use in-process storage and cache instead of Postgres and Redis")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply the database schema before serving")
	return cmd
}

func serve(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}

	shutdownTracing, metricsHandler, err := observability.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up observability: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("failed to shut down tracer", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := openCache(ctx, cfg, opts.inMemory)
	if err != nil {
		return err
	}
	defer cache.Close()

	var events *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		events = kafka.NewPublisher(producer, cfg.KafkaTopic)

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		go consumer.Consume(ctx)
	} else {
		slog.Warn("KAFKA_BROKERS not set, domain events are disabled")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTExpiresIn, cfg.JWTRefreshIn)
	if err != nil {
		return err
	}
	if cfg.PaystackSecretKey == "" {
		slog.Warn("PAYSTACK_SECRET_KEY not set, payment webhooks will be rejected")
	}
	gateway := payment.NewPaystack(cfg.PaystackSecretKey, cfg.PaystackCallbackURL)

	h := handler.NewHandler(handler.Services{
		Auth:          service.NewAuthService(store, tokens, cache, sms.LogSender{ShowBody: !cfg.IsProduction()}, events),
		Escrow:        service.NewEscrowService(store, events, cfg.CommissionRate),
		Wallets:       service.NewWalletService(store, gateway, events),
		Transactions:  service.NewTransactionService(store),
		Notifications: service.NewNotificationService(store),
		Users:         service.NewUserService(store),
	}, validation.New())

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: api.SetupRouter(api.Deps{
			Config:  cfg,
			Handler: h,
			Tokens:  tokens,
			Cache:   cache,
			Metrics: metricsHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, opts serveOptions) (repository.Store, error) {
	if opts.inMemory {
		slog.Warn("using in-memory storage, data is lost on exit")
		return memory.NewStore(), nil
	}
	db, err := openPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if opts.migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return postgres.NewStore(db), nil
}

func openCache(ctx context.Context, cfg *config.Config, inMemory bool) (redis.RedisClient, error) {
	if inMemory {
		return redis.NewEmbedded(ctx)
	}
	client, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err == nil {
		return client, nil
	}
	if cfg.IsProduction() {
		return nil, err
	}
	slog.Warn("Redis unavailable, falling back to embedded redis", "error", err)
	return redis.NewEmbedded(ctx)
}
