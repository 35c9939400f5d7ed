package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cafe-pos/internal/app"
	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Image    string          `json:"image"`
}

func main() {
	var (
		store        app.StoreConfig
		menuFile     string
		tables       int
		businessName string
	)

	flag.StringVar(&store.Driver, "driver", app.DriverBolt, "store driver: bolt or postgres")
	flag.StringVar(&store.Path, "path", "pos.db", "bolt database file")
	flag.StringVar(&store.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.IntVar(&tables, "tables", 12, "number of tables to create")
	flag.StringVar(&businessName, "business-name", "", "business name stored in settings when none are saved")
	flag.Parse()
	store.LockTimeout = 2 * time.Second

	if store.Driver == app.DriverPostgres && store.DatabaseURL == "" {
		store.DatabaseURL = os.Getenv("DATABASE_URL")
		if store.DatabaseURL == "" {
			slog.Error("database URL is required: set --database-url or DATABASE_URL")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, store, menuFile, tables, businessName); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, cfg app.StoreConfig, menuFile string, tables int, businessName string) error {
	slog.Info("opening store", slog.String("driver", cfg.Driver))

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	products, err := readMenu(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu")
	}

	err = store.Atomic(ctx, func(ctx context.Context, tx order.Store) error {
		if err := seedProducts(ctx, tx.Products(), products); err != nil {
			return errors.Wrap(err, "seed products")
		}
		if err := seedTables(ctx, tx.Tables(), tables); err != nil {
			return errors.Wrap(err, "seed tables")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := seedSettings(ctx, store.Settings(), businessName); err != nil {
		return errors.Wrap(err, "seed settings")
	}
	return nil
}

func readMenu(path string) ([]productJSON, error) {
	slog.Info("reading menu file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read menu file")
	}
	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse menu JSON")
	}
	return products, nil
}

// seedProducts creates menu entries that do not exist yet. Existing products
// keep their stock.
func seedProducts(ctx context.Context, repo product.Repository, products []productJSON) error {
	slog.Info("seeding products", slog.Int("count", len(products)))

	now := time.Now()
	for _, p := range products {
		_, err := repo.GetByID(ctx, p.ID)
		switch {
		case err == nil:
			slog.Info("product exists", slog.String("id", p.ID))
			continue
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "get product %s", p.ID)
		}

		if err := repo.Create(ctx, &product.Product{
			ID:        p.ID,
			Name:      p.Name,
			Category:  product.ParseCategory(p.Category),
			Price:     p.Price.Round(2),
			Stock:     p.Stock,
			Image:     p.Image,
			CreatedAt: now,
		}); err != nil {
			return errors.Wrapf(err, "create product %s", p.ID)
		}

		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// seedTables creates tables 1..n, skipping numbers already taken.
func seedTables(ctx context.Context, repo table.Repository, n int) error {
	slog.Info("seeding tables", slog.Int("count", n))

	existing, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list tables")
	}
	taken := make(map[int]bool, len(existing))
	for _, t := range existing {
		taken[t.Number] = true
	}

	now := time.Now()
	for number := 1; number <= n; number++ {
		if taken[number] {
			continue
		}
		if err := repo.Create(ctx, &table.Table{
			ID:        "table-" + strconv.Itoa(number),
			Number:    number,
			Status:    table.StatusFree,
			CreatedAt: now,
		}); err != nil {
			return errors.Wrapf(err, "create table %d", number)
		}
	}

	return nil
}

func seedSettings(ctx context.Context, repo settings.Repository, businessName string) error {
	if businessName == "" {
		return nil
	}
	_, err := repo.Get(ctx)
	if err == nil {
		slog.Info("settings exist, leaving them unchanged")
		return nil
	}
	if !errors.Is(err, settings.ErrNotFound) {
		return err
	}

	svc := settings.NewService(repo)
	s, err := svc.Save(ctx, settings.Input{
		BusinessName: businessName,
		TaxRate:      settings.DefaultTaxRate,
	})
	if err != nil {
		return err
	}

	slog.Info("saved settings", slog.String("business_name", s.BusinessName))
	return nil
}
