// Command mtauth-server serves the /auth HTTP API backed by PostgreSQL.
//
// Required environment: DATABASE_URL and MTAUTH_JWT_SECRET (or JWT_SECRET_KEY).
// Optional: HTTP_ADDR, CORS_ORIGINS, TRUST_PROXY, REDIS_ADDR, KAFKA_BROKERS,
// KAFKA_TOPIC and every MTAUTH_* setting read by mtAuth.LoadConfigFromEnv.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mtAuth "github.com/MrEthical07/mtAuth"
	kafkasink "github.com/MrEthical07/mtAuth/eventsink/kafka"
	"github.com/MrEthical07/mtAuth/internal/httpapi"
	"github.com/MrEthical07/mtAuth/mail"
	promexport "github.com/MrEthical07/mtAuth/metrics/export/prometheus"
	"github.com/MrEthical07/mtAuth/store/pgstore"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("mtauth-server: exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := mtAuth.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := pgstore.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.New(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	sinks := mtAuth.MultiSink{pgstore.NewAuditSink(pool, logger)}
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = "mtauth.events"
		}
		ks := kafkasink.New(kafkasink.NewWriter(kafkasink.Config{Brokers: brokers, Topic: topic}, logger), logger)
		defer func() {
			if err := ks.Close(); err != nil {
				logger.Warn("mtauth-server: close kafka writer", zap.Error(err))
			}
		}()
		sinks = append(sinks, ks)
		logger.Info("mtauth-server: publishing audit events to kafka", zap.Strings("brokers", brokers), zap.String("topic", topic))
	}

	builder := mtAuth.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithMailer(mail.NewLogMailer(logger)).
		WithAuditSink(sinks).
		WithLogger(logger)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		builder = builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	trustProxy, _ := strconv.ParseBool(os.Getenv("TRUST_PROXY"))
	handler := httpapi.NewRouter(engine, httpapi.Options{
		Logger:      logger,
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
		TrustProxy:  trustProxy,
		Metrics:     promexport.NewExporter(engine).Handler(),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mtauth-server: listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("mtauth-server: shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
