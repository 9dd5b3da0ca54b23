// Command initdb recreates the database schema and loads the remote
// product catalog. Destructive: running it drops existing orders.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcmexdev/shop-orders/internal/catalog"
	"github.com/jcmexdev/shop-orders/internal/order"
	"github.com/jcmexdev/shop-orders/internal/pkg/config"
	"github.com/jcmexdev/shop-orders/internal/pkg/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.InitLogger(cfg.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	catalogStore := catalog.NewStore(pool)
	orderStore := order.NewPostgresStore(pool)

	// Products first: order_products references it.
	if err := catalogStore.Reset(ctx); err != nil {
		slog.Error("catalog schema reset failed", "error", err)
		os.Exit(1)
	}
	if err := orderStore.Reset(ctx); err != nil {
		slog.Error("order schema reset failed", "error", err)
		os.Exit(1)
	}

	feed := catalog.NewFeed(cfg.ProductsURL)
	count, err := feed.Load(ctx, catalogStore)
	if err != nil {
		slog.Error("catalog feed load failed", "url", cfg.ProductsURL, "error", err)
		os.Exit(1)
	}

	slog.Info("database initialised", "products", count)
}
