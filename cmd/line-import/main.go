// Command line-import loads order lines from gzip-compressed NDJSON exports.
//
// Every input line is one JSON object:
//
//	{"order_id":1,"product_id":100,"quantity":3,"unit_price":1000}
//
// Lines go through the same reconciler as the API, so discounts and stock
// stay consistent with what the server would have produced. Stock of transfer
// orders is decremented for every imported line; pass -reserve-stock=false
// when re-importing an export whose stock was already reserved, otherwise the
// same quantity is subtracted twice.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/app"
	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/orderline"
	"github.com/xenking/spinzone-api/internal/lock"
)

func main() {
	var (
		store    app.StoreConfig
		policy   app.DiscountConfig
		opts     options
		strategy string
		reserve  bool
	)

	fs := flag.CommandLine
	store.RegisterFlags(fs)
	fs.Int64Var(&policy.Threshold, "discount-threshold", 4, "total quantity an order must exceed to get the discount")
	fs.StringVar(&policy.Rate, "discount-rate", "0.05", "fraction taken off every line when the discount applies")
	fs.IntVar(&opts.BatchSize, "batch", defaultBatchSize, "lines per AddBulk call")
	fs.IntVar(&opts.Workers, "workers", 4, "concurrent import workers")
	fs.StringVar(&strategy, "duplicates", string(KeepLast), "repeated (order_id, product_id) handling: last, skip or fail")
	fs.BoolVar(&reserve, "reserve-stock", true, "decrement product stock for lines of transfer orders")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more .ndjson.gz paths")
		os.Exit(1)
	}
	opts.Duplicates = DuplicateStrategy(strategy)
	if err := opts.validate(); err != nil {
		slog.Error("invalid options", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store.ApplyPlatformDefaults()
	if err := store.Validate(); err != nil {
		slog.Error("invalid store settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, store, policy, reserve, opts, files); err != nil {
		slog.Error("line import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("line import completed successfully")
}

func run(ctx context.Context, cfg app.StoreConfig, dc app.DiscountConfig, reserve bool, opts options, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	p, err := dc.Policy()
	if err != nil {
		return err
	}

	slog.Info("opening store", slog.String("driver", cfg.Driver), slog.Bool("reserve_stock", reserve))

	backend, err := app.OpenBackend(ctx, zap.NewNop(), nil, cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer backend.Close()

	repos := app.NewRepositories(backend.Store, app.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	})
	stats, err := newImporter(newReconciler(repos, backend.Locker, p, reserve), opts).Run(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Uint64("records", stats.Records),
		slog.Uint64("invalid", stats.Invalid),
		slog.Int("duplicate_keys", stats.DuplicateKeys),
		slog.Uint64("skipped", stats.Skipped),
		slog.Uint64("batches", stats.Batches),
		slog.Uint64("rejected_batches", stats.Rejected),
		slog.Uint64("lines_written", stats.Lines),
		slog.Uint64("stock_applied", stats.StockApplied),
	)
	return nil
}

func newReconciler(repos app.Repositories, l lock.Locker, p discount.Policy, reserve bool) *orderline.Reconciler {
	opts := []orderline.Option{
		orderline.WithPolicy(p),
		orderline.WithLocker(l),
	}
	if !reserve {
		opts = append(opts, orderline.WithoutStockReservation())
	}
	return orderline.NewReconciler(repos.Lines, repos.Orders, repos.Products, opts...)
}
