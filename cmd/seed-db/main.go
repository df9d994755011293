package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/app"
	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/product"
)

type orderJSON struct {
	ID              int64 `json:"order_id"`
	PaymentMethodID int64 `json:"payment_method_id"`
}

type productJSON struct {
	ID    int64           `json:"product_id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock"`
}

type seedJSON struct {
	Orders   []orderJSON   `json:"orders"`
	Products []productJSON `json:"products"`
}

func main() {
	var (
		store    app.StoreConfig
		seedFile string
	)

	fs := flag.CommandLine
	store.RegisterFlags(fs)
	fs.StringVar(&seedFile, "file", "db/seed/seed.json", "path to seed JSON file")
	flag.Parse()

	store.ApplyPlatformDefaults()
	if err := store.Validate(); err != nil {
		slog.Error("invalid store settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, store, seedFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg app.StoreConfig, seedFile string) error {
	seed, err := readSeed(seedFile)
	if err != nil {
		return err
	}

	slog.Info("opening store", slog.String("driver", cfg.Driver))

	backend, err := app.OpenBackend(ctx, zap.NewNop(), nil, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer backend.Close()

	repos := app.NewRepositories(backend.Store, app.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	})

	orders := make([]order.Order, len(seed.Orders))
	for i, o := range seed.Orders {
		orders[i] = order.Order{ID: o.ID, PaymentMethodID: o.PaymentMethodID}
	}
	slog.Info("creating orders", slog.Int("count", len(orders)))
	if err := repos.Orders.Create(ctx, orders...); err != nil {
		return errors.Wrap(err, "create orders")
	}

	products := make([]product.Product, len(seed.Products))
	for i, p := range seed.Products {
		products[i] = product.Product{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
	}
	slog.Info("creating products", slog.Int("count", len(products)))
	if err := repos.Products.Create(ctx, products...); err != nil {
		return errors.Wrap(err, "create products")
	}

	for _, p := range products {
		slog.Info("created product",
			slog.Int64("id", p.ID),
			slog.String("name", p.Name),
			slog.Int64("stock", p.Stock),
		)
	}

	return nil
}

func readSeed(path string) (*seedJSON, error) {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var seed seedJSON
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}
	for _, o := range seed.Orders {
		if o.ID <= 0 {
			return nil, errors.Errorf("order id must be positive, got %d", o.ID)
		}
	}
	for _, p := range seed.Products {
		if p.ID <= 0 {
			return nil, errors.Errorf("product id must be positive, got %d", p.ID)
		}
		if p.Stock < 0 {
			return nil, errors.Errorf("product %d: stock must not be negative", p.ID)
		}
	}

	return &seed, nil
}
