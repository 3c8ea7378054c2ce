package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vintage-realtime/internal/application/dispatch"
	"github.com/vintage-realtime/internal/application/identity"
	"github.com/vintage-realtime/internal/application/notification"
	"github.com/vintage-realtime/internal/config"
	"github.com/vintage-realtime/internal/infrastructure/dynamo"
	jwtinfra "github.com/vintage-realtime/internal/infrastructure/jwt"
	s3infra "github.com/vintage-realtime/internal/infrastructure/s3"
	"github.com/vintage-realtime/internal/infrastructure/sns"
	"github.com/vintage-realtime/internal/metrics"
	"github.com/vintage-realtime/internal/pkg/logger"
	"github.com/vintage-realtime/internal/realtime/gateway"
	"github.com/vintage-realtime/internal/realtime/presence"
	"github.com/vintage-realtime/internal/realtime/subscription"
	transporthttp "github.com/vintage-realtime/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		zlog.Fatal("dynamodb client", zap.Error(err))
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, zlog)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		zlog.Fatal("jwt provider", zap.Error(err))
	}

	metrics.Register(prometheus.DefaultRegisterer)

	ledger := notification.NewService(notification.ServiceDeps{
		Repo:        dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		DeadLetters: deadLetterSinks(ctx, cfg, zlog),
		Retry: notification.RetryPolicy{
			MaxRetries:      cfg.Ledger.MaxRetries,
			InitialInterval: cfg.Ledger.InitialInterval,
			MaxInterval:     cfg.Ledger.MaxInterval,
		},
		Logger: zlog,
	})

	gw := gateway.New(gateway.Deps{
		Identities: identity.NewService(jwtProvider, dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users), zlog),
		Ledger:     ledger,
		Presence:   presence.NewRegistry(),
		Router:     subscription.NewRouter(),
		Options: gateway.Options{
			SendBuffer:         cfg.Realtime.SendBuffer,
			WriteTimeout:       cfg.Realtime.WriteTimeout,
			UnreadBacklogLimit: cfg.Realtime.UnreadBacklogLimit,
		},
		Logger: zlog,
	})

	dispatcher := dispatch.New(dispatch.Deps{
		Ledger:    ledger,
		Favorites: dynamo.NewFavoriteRepo(dynamoClient, cfg.DynamoTables.Favorites),
		Publisher: gw,
		Logger:    zlog,
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Tokens:        jwtProvider,
		Notifications: ledger,
		Gateway:       gw,
		Dispatcher:    dispatcher,
		Logger:        zlog,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	gw.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
		return
	}
	zlog.Info("server stopped")
}

// deadLetterSinks builds the optional S3 archive and SNS alert for ledger
// writes that exhausted their retries. Either may be absent.
func deadLetterSinks(ctx context.Context, cfg *config.Config, zlog *zap.Logger) []notification.DeadLetterSink {
	var sinks []notification.DeadLetterSink
	if cfg.DeadLetterBucket != "" {
		client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			zlog.Warn("S3 dead-letter archive not available", zap.Error(err))
		} else {
			sinks = append(sinks, s3infra.NewDeadLetterArchive(client, cfg.DeadLetterBucket))
		}
	}
	if cfg.DeadLetterTopicARN != "" {
		client, err := sns.NewClient(ctx, cfg)
		if err != nil {
			zlog.Warn("SNS dead-letter alerts not available", zap.Error(err))
		} else {
			sinks = append(sinks, sns.NewDeadLetterPublisher(client, cfg.DeadLetterTopicARN))
		}
	}
	return sinks
}
