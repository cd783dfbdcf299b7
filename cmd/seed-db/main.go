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
	"github.com/google/uuid"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
	"github.com/xenking/nuestra-carne/internal/storage/jsonfile"
	"github.com/xenking/nuestra-carne/internal/storage/postgres"
)

// legacyOrder accepts records written by the previous storefront, which
// stamped orders with "fecha" and left the id to the mailer.
type legacyOrder struct {
	order.Order
	Fecha time.Time `json:"fecha"`
}

// importer replaces the stored collections.
type importer interface {
	ImportOrders(ctx context.Context, orders []order.Order) error
	ImportPromotions(ctx context.Context, promos []promotion.Promotion) error
}

type importFuncs struct {
	orders     func(ctx context.Context, orders []order.Order) error
	promotions func(ctx context.Context, promos []promotion.Promotion) error
}

func (f importFuncs) ImportOrders(ctx context.Context, orders []order.Order) error {
	return f.orders(ctx, orders)
}

func (f importFuncs) ImportPromotions(ctx context.Context, promos []promotion.Promotion) error {
	return f.promotions(ctx, promos)
}

func main() {
	var (
		driver         string
		dataDir        string
		databaseURL    string
		ordersFile     string
		promotionsFile string
	)

	flag.StringVar(&driver, "driver", "jsonfile", "target storage driver: jsonfile or postgres")
	flag.StringVar(&dataDir, "data-dir", "data", "target directory for the jsonfile driver")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&ordersFile, "orders-file", "db/seed/orders.json", "path to orders JSON file (empty skips)")
	flag.StringVar(&promotionsFile, "promotions-file", "db/seed/promociones.json", "path to promotions JSON file (empty skips)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, driver, dataDir, databaseURL, ordersFile, promotionsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, driver, dataDir, databaseURL, ordersFile, promotionsFile string) error {
	target, done, err := openTarget(ctx, driver, dataDir, databaseURL)
	if err != nil {
		return err
	}
	defer done()

	now := time.Now().UTC()
	if ordersFile != "" {
		if err := seedOrders(ctx, target, ordersFile, now); err != nil {
			return errors.Wrap(err, "seed orders")
		}
	}
	if promotionsFile != "" {
		if err := seedPromotions(ctx, target, promotionsFile, now); err != nil {
			return errors.Wrap(err, "seed promotions")
		}
	}
	return nil
}

func openTarget(ctx context.Context, driver, dataDir, databaseURL string) (importer, func(), error) {
	switch driver {
	case "jsonfile":
		slog.Info("opening data dir", slog.String("path", dataDir))
		s, err := jsonfile.Open(dataDir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open data dir")
		}
		return importFuncs{orders: s.Orders().Import, promotions: s.Promotions().Import}, func() {}, nil
	case "postgres":
		if databaseURL == "" {
			return nil, nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		slog.Info("connecting to database")
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		slog.Info("running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return importFuncs{
			orders:     postgres.NewOrderRepository(pool).Import,
			promotions: postgres.NewPromotionRepository(pool).Import,
		}, pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown driver %q", driver)
	}
}

func seedOrders(ctx context.Context, target importer, path string, now time.Time) error {
	slog.Info("reading orders file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read orders file")
	}
	var records []legacyOrder
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(err, "parse orders JSON")
	}

	orders := make([]order.Order, len(records))
	for i, rec := range records {
		orders[i] = normalizeOrder(rec, now)
	}

	slog.Info("importing orders", slog.Int("count", len(orders)))
	return target.ImportOrders(ctx, orders)
}

func normalizeOrder(rec legacyOrder, now time.Time) order.Order {
	o := rec.Order
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = rec.Fecha
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	if o.DeclaredTotal.IsZero() {
		o.DeclaredTotal = o.Total
	}
	return o
}

func seedPromotions(ctx context.Context, target importer, path string, now time.Time) error {
	slog.Info("reading promotions file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read promotions file")
	}
	var promos []promotion.Promotion
	if err := json.Unmarshal(data, &promos); err != nil {
		return errors.Wrap(err, "parse promotions JSON")
	}

	seen := make(map[string]bool, len(promos))
	for i := range promos {
		p := &promos[i]
		p.Code = promotion.NormalizeCode(p.Code)
		if seen[p.Code] {
			return errors.Errorf("duplicate promotion code %s", p.Code)
		}
		seen[p.Code] = true
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		slog.Info("prepared promotion", slog.String("code", p.Code), slog.String("name", p.Name))
	}

	slog.Info("importing promotions", slog.Int("count", len(promos)))
	return target.ImportPromotions(ctx, promos)
}
