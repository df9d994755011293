package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/orderline"
)

const (
	defaultBatchSize     = 100
	defaultBloomCapacity = 10_000_000
	bloomFPR             = 0.001
	progressEvery        = 1_000_000
	maxLineSize          = 1 << 20
	reportDuplicates     = 20
)

// DuplicateStrategy decides what happens to (order_id, product_id) pairs that
// occur more than once across the input.
type DuplicateStrategy string

const (
	// KeepLast imports every occurrence; later ones overwrite earlier ones.
	KeepLast DuplicateStrategy = "last"
	// SkipDuplicates drops every occurrence of a repeated pair.
	SkipDuplicates DuplicateStrategy = "skip"
	// FailOnDuplicates aborts before anything is written.
	FailOnDuplicates DuplicateStrategy = "fail"
)

type options struct {
	BatchSize     int
	Workers       int
	Duplicates    DuplicateStrategy
	BloomCapacity uint
}

func (o options) validate() error {
	if o.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", o.BatchSize)
	}
	if o.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	switch o.Duplicates {
	case KeepLast, SkipDuplicates, FailOnDuplicates:
		return nil
	default:
		return errors.Errorf("unknown duplicate strategy %q", o.Duplicates)
	}
}

type record struct {
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

type lineKey [16]byte

func (r record) key() lineKey {
	var k lineKey
	binary.BigEndian.PutUint64(k[:8], uint64(r.OrderID))
	binary.BigEndian.PutUint64(k[8:], uint64(r.ProductID))
	return k
}

func (k lineKey) String() string {
	return fmt.Sprintf("(%d, %d)", int64(binary.BigEndian.Uint64(k[:8])), int64(binary.BigEndian.Uint64(k[8:])))
}

func (r record) valid() bool {
	return r.OrderID > 0 && r.ProductID > 0 &&
		r.Quantity >= 1 && r.Quantity <= discount.MaxQuantity &&
		r.UnitPrice >= 0 && r.UnitPrice <= discount.MaxUnitPrice
}

func decodeRecord(b []byte) (record, error) {
	var r record
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "order_id":
			r.OrderID, err = d.Int64()
		case "product_id":
			r.ProductID, err = d.Int64()
		case "quantity":
			r.Quantity, err = d.Int64()
		case "unit_price":
			r.UnitPrice, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

// BulkAdder commits a batch of lines to one order.
type BulkAdder interface {
	AddBulk(ctx context.Context, orderID int64, items []orderline.BulkItem) (*orderline.BulkResult, error)
}

// Stats summarizes an import run.
type Stats struct {
	Records       uint64
	Invalid       uint64
	DuplicateKeys int
	Skipped       uint64
	Batches       uint64
	Rejected      uint64
	Lines         uint64
	StockApplied  uint64
}

type counters struct {
	batches  atomic.Uint64
	rejected atomic.Uint64
	lines    atomic.Uint64
	stock    atomic.Uint64
}

type batch struct {
	orderID int64
	items   []orderline.BulkItem
}

type importer struct {
	lines BulkAdder
	opts  options
}

func newImporter(lines BulkAdder, opts options) *importer {
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Duplicates == "" {
		opts.Duplicates = KeepLast
	}
	if opts.BloomCapacity == 0 {
		opts.BloomCapacity = defaultBloomCapacity
	}
	return &importer{lines: lines, opts: opts}
}

// Run imports files in three passes: a bloom filter pass that finds pairs
// that may repeat, an exact count of those candidates, and the load itself.
func (im *importer) Run(ctx context.Context, files []string) (*Stats, error) {
	stats := &Stats{}

	slog.Info("pass 1: scanning for repeated lines", slog.Int("files", len(files)))
	candidates, err := im.scanCandidates(ctx, files, stats)
	if err != nil {
		return nil, errors.Wrap(err, "scan candidates")
	}
	slog.Info("pass 1 complete",
		slog.Uint64("records", stats.Records),
		slog.Uint64("invalid", stats.Invalid),
		slog.Int("candidates", len(candidates)),
	)

	dups := map[lineKey]int{}
	if len(candidates) > 0 {
		slog.Info("pass 2: counting candidates")
		dups, err = im.countDuplicates(ctx, files, candidates)
		if err != nil {
			return nil, errors.Wrap(err, "count duplicates")
		}
	}
	stats.DuplicateKeys = len(dups)
	im.reportDuplicates(dups)

	if len(dups) > 0 && im.opts.Duplicates == FailOnDuplicates {
		return nil, errors.Errorf("found %d repeated (order_id, product_id) pairs", len(dups))
	}

	slog.Info("pass 3: importing lines",
		slog.Int("batch", im.opts.BatchSize),
		slog.Int("workers", im.opts.Workers),
	)
	var c counters
	if err := im.load(ctx, files, dups, stats, &c); err != nil {
		return nil, errors.Wrap(err, "import lines")
	}
	stats.Batches = c.batches.Load()
	stats.Rejected = c.rejected.Load()
	stats.Lines = c.lines.Load()
	stats.StockApplied = c.stock.Load()

	return stats, nil
}

func (im *importer) scanCandidates(ctx context.Context, files []string, stats *Stats) (map[lineKey]struct{}, error) {
	filter := bloom.NewWithEstimates(im.opts.BloomCapacity, bloomFPR)
	candidates := make(map[lineKey]struct{})

	err := eachRecord(ctx, files, func(r record) error {
		stats.Records++
		if stats.Records%progressEvery == 0 {
			slog.Info("pass 1 progress", slog.Uint64("records", stats.Records))
		}
		if !r.valid() {
			stats.Invalid++
			return nil
		}
		k := r.key()
		if filter.TestAndAdd(k[:]) {
			candidates[k] = struct{}{}
		}
		return nil
	})
	return candidates, err
}

// countDuplicates streams the input again and keeps exact counts for the
// bloom candidates only. Pairs seen once were false positives.
func (im *importer) countDuplicates(ctx context.Context, files []string, candidates map[lineKey]struct{}) (map[lineKey]int, error) {
	counts := make(map[lineKey]int, len(candidates))
	err := eachRecord(ctx, files, func(r record) error {
		if !r.valid() {
			return nil
		}
		k := r.key()
		if _, ok := candidates[k]; ok {
			counts[k]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for k, n := range counts {
		if n < 2 {
			delete(counts, k)
		}
	}
	return counts, nil
}

func (im *importer) reportDuplicates(dups map[lineKey]int) {
	if len(dups) == 0 {
		return
	}
	keys := make([]lineKey, 0, len(dups))
	for k := range dups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b lineKey) int { return bytes.Compare(a[:], b[:]) })
	for i, k := range keys {
		if i == reportDuplicates {
			slog.Warn("more repeated pairs not shown", slog.Int("remaining", len(keys)-i))
			break
		}
		slog.Warn("repeated line",
			slog.String("order_product", k.String()),
			slog.Int("occurrences", dups[k]),
			slog.String("strategy", string(im.opts.Duplicates)),
		)
	}
}

// load batches lines per order. Orders are sharded over workers by id, so
// batches of one order are committed in input order.
func (im *importer) load(ctx context.Context, files []string, dups map[lineKey]int, stats *Stats, c *counters) error {
	g, gctx := errgroup.WithContext(ctx)

	shards := make([]chan batch, im.opts.Workers)
	for i := range shards {
		ch := make(chan batch, 1)
		shards[i] = ch
		g.Go(func() error {
			for b := range ch {
				if err := im.submit(gctx, b, c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	send := func(b batch) error {
		select {
		case shards[b.orderID%int64(len(shards))] <- b:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()

		pending := make(map[int64][]orderline.BulkItem)
		err := eachRecord(gctx, files, func(r record) error {
			if !r.valid() {
				return nil
			}
			if im.opts.Duplicates == SkipDuplicates {
				if _, ok := dups[r.key()]; ok {
					stats.Skipped++
					return nil
				}
			}
			items := append(pending[r.OrderID], orderline.BulkItem{
				ProductID: r.ProductID,
				Quantity:  r.Quantity,
				UnitPrice: r.UnitPrice,
			})
			if len(items) < im.opts.BatchSize {
				pending[r.OrderID] = items
				return nil
			}
			delete(pending, r.OrderID)
			return send(batch{orderID: r.OrderID, items: items})
		})
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if err := send(batch{orderID: id, items: pending[id]}); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// submit commits one batch. Batches the reconciler refuses because an order or
// product is unknown are counted and skipped; any other failure aborts.
func (im *importer) submit(ctx context.Context, b batch, c *counters) error {
	res, err := im.lines.AddBulk(ctx, b.orderID, b.items)
	if err != nil {
		var (
			notFound *orderline.NotFoundError
			invalid  *orderline.ValidationError
		)
		if errors.As(err, &notFound) || errors.As(err, &invalid) {
			c.rejected.Add(1)
			slog.Warn("batch rejected",
				slog.Int64("order_id", b.orderID),
				slog.Int("lines", len(b.items)),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return errors.Wrapf(err, "import order %d", b.orderID)
	}

	c.batches.Add(1)
	c.lines.Add(uint64(len(res.Lines)))
	for _, s := range res.Stock {
		if s.Applied {
			c.stock.Add(1)
		}
		if s.Err != nil {
			slog.Warn("stock adjustment failed",
				slog.Int64("order_id", b.orderID),
				slog.Int64("product_id", s.ProductID),
				slog.String("error", s.Err.Error()),
			)
		}
	}
	return nil
}

func eachRecord(ctx context.Context, files []string, fn func(record) error) error {
	for _, path := range files {
		err := streamGzFile(ctx, path, func(lineNo int, b []byte) error {
			r, err := decodeRecord(b)
			if err != nil {
				return errors.Wrapf(err, "%s:%d: decode line", path, lineNo)
			}
			return fn(r)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(lineNo int, b []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := fn(lineNo, b); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
