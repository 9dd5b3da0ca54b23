package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/shop-orders/internal/catalog"
	"github.com/jcmexdev/shop-orders/internal/httpx"
	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/payment"
	paylogsqlite "github.com/jcmexdev/shop-orders/internal/paylog/sqlite"
	"github.com/jcmexdev/shop-orders/internal/pkg/cache"
	"github.com/jcmexdev/shop-orders/internal/pkg/config"
	"github.com/jcmexdev/shop-orders/internal/pkg/telemetry"
	"github.com/jcmexdev/shop-orders/internal/queue"
)

func main() {
	cfg := config.Load()
	telemetry.InitLogger(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		slog.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	catalogStore := catalog.NewStore(pool)
	orderStore := order.NewPostgresStore(pool)
	if err := catalogStore.Migrate(ctx); err != nil {
		slog.Error("catalog migration failed", "error", err)
		os.Exit(1)
	}
	if err := orderStore.Migrate(ctx); err != nil {
		slog.Error("order migration failed", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	paymentQueue := queue.NewRedisQueue(redisClient)
	snapshots := cache.NewRedisCache(redisClient)

	paylogRepo, err := paylogsqlite.Open(cfg.PaylogPath)
	if err != nil {
		slog.Error("failed to open payment log", "path", cfg.PaylogPath, "error", err)
		os.Exit(1)
	}
	defer paylogRepo.Close()

	orderService := order.NewService(orderStore, catalogStore, paymentQueue, cfg.GatewayURL)
	worker := payment.NewWorker(paymentQueue, orderStore, snapshots, payment.NewHTTPGateway(), paylogRepo)

	var wg sync.WaitGroup
	for i := 1; i <= cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker.Run(ctx, id)
		}(i)
	}
	slog.Info("payment workers started", "count", cfg.WorkerCount)

	health := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}

	handler := httpx.NewHandler(catalogStore, orderService, paymentQueue, snapshots, health)
	router := otelhttp.NewHandler(httpx.NewRouter(handler), "http.server")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server running", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// Workers exit once ctx is cancelled and their in-flight job completes.
	stop()
	wg.Wait()
	slog.Info("server stopped")
}
