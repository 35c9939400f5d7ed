package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/cafe-pos/internal/app"
	"github.com/xenking/cafe-pos/internal/export"
)

func main() {
	var (
		store      app.StoreConfig
		outDir     string
		compress   bool
		stdout     bool
		clearAfter bool
	)

	flag.StringVar(&store.Driver, "driver", app.DriverBolt, "store driver: bolt or postgres")
	flag.StringVar(&store.Path, "path", "pos.db", "bolt database file")
	flag.StringVar(&store.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outDir, "out", "backups", "directory receiving the backup file")
	flag.BoolVar(&compress, "gzip", false, "gzip the output")
	flag.BoolVar(&stdout, "stdout", false, "write the snapshot to stdout instead of a file")
	flag.BoolVar(&clearAfter, "clear", false, "remove products, tables and orders after a successful export")
	flag.Parse()
	store.LockTimeout = 2 * time.Second

	if store.Driver == app.DriverPostgres && store.DatabaseURL == "" {
		store.DatabaseURL = os.Getenv("DATABASE_URL")
		if store.DatabaseURL == "" {
			slog.Error("database URL is required: set --database-url or DATABASE_URL")
			os.Exit(1)
		}
	}
	if clearAfter && stdout {
		slog.Error("--clear needs a file export, not --stdout")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, store, outDir, compress, stdout, clearAfter); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.StoreConfig, outDir string, compress, stdout, clearAfter bool) error {
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := export.Collect(ctx, store, time.Now())
	if err != nil {
		return errors.Wrap(err, "collect snapshot")
	}
	slog.Info("collected snapshot",
		slog.Int("products", len(snap.Products)),
		slog.Int("tables", len(snap.Tables)),
		slog.Int("orders", len(snap.Orders)),
	)

	if stdout {
		return writeStdout(snap, compress)
	}

	path, err := export.WriteFile(outDir, snap, compress)
	if err != nil {
		return errors.Wrap(err, "write backup")
	}
	slog.Info("export written", slog.String("path", path))

	if clearAfter {
		if err := store.Clear(ctx); err != nil {
			return errors.Wrap(err, "clear store")
		}
		slog.Info("store cleared")
	}
	return nil
}

func writeStdout(snap *export.Snapshot, compress bool) error {
	bw := bufio.NewWriter(os.Stdout)
	var w io.Writer = bw
	var zw *pgzip.Writer
	if compress {
		zw = pgzip.NewWriter(bw)
		w = zw
	}
	if err := export.Encode(w, snap); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "close gzip stream")
		}
	}
	return bw.Flush()
}
