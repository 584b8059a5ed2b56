package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/config"
	"github.com/nanolink/nanolink/internal/infra"
	"github.com/nanolink/nanolink/internal/logging"
	"github.com/nanolink/nanolink/internal/notification"
	"github.com/nanolink/nanolink/internal/server"
)

func main() {
	// A local .env only fills variables the environment leaves unset.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	decimal.MarshalJSONWithoutQuotes = true
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := infra.ApplyMigrations(ctx, db); err != nil {
			logger.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(logging.Component(logger, "notification"))}
	if cfg.RabbitMQURL != "" {
		conn, err := infra.NewAMQPConnection(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		notifier, ch, err := amqpNotifier(conn, cfg.EventsExchange)
		if err != nil {
			logger.Error("declare events exchange", "error", err)
			os.Exit(1)
		}
		defer ch.Close()
		notifiers = append(notifiers, notifier)
	}

	srv, err := server.New(cfg, db, cache, notifiers, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		logger.Error("start settlement", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func amqpNotifier(conn *amqp.Connection, exchange string) (*notification.AMQPNotifier, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	notifier, err := notification.NewAMQPNotifier(ch, exchange)
	if err != nil {
		ch.Close()
		return nil, nil, err
	}
	return notifier, ch, nil
}
