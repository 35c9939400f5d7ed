package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/product"
	"github.com/xenking/cafe-pos/internal/domain/report"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/domain/table"
	"github.com/xenking/cafe-pos/internal/export"
	"github.com/xenking/cafe-pos/internal/handler"
	"github.com/xenking/cafe-pos/internal/mq"
	"github.com/xenking/cafe-pos/pkg/health"
	"github.com/xenking/cafe-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)
	loc, err := cfg.Loc()
	if err != nil {
		return err
	}

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Error("Close store", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "store", health.Options{Timeout: cfg.StoreTimeout}, health.PingCheck(store))
	healthSvc.Add(health.Liveness, "goroutines", health.Options{}, health.GoroutineCountCheck(10000))

	// Order events.
	var publisher order.Publisher = order.NopPublisher{}
	if cfg.Events.URL != "" {
		p, err := mq.Dial(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			return errors.Wrap(err, "connect event broker")
		}
		defer func() { _ = p.Close() }()
		// The publisher does not reconnect; a restart re-dials.
		healthSvc.Add(health.Liveness, "events", health.Options{FailureThreshold: 5}, health.PingCheck(p))
		publisher = p
		lg.Info("Publishing order events", zap.String("exchange", cfg.Events.Exchange))
	}

	// Domain services.
	lifecycle, err := order.NewLifecycle(store,
		order.WithTimeout(cfg.StoreTimeout),
		order.WithPublisher(publisher),
		order.WithMeterProvider(m.MeterProvider()),
		order.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order lifecycle")
	}
	backuper := export.NewBackuper(store, cfg.Backup.Dir, cfg.Backup.Compress, loc)

	// Scheduled backups.
	var scheduler *export.Scheduler
	if cfg.Backup.Schedule != "" {
		scheduler, err = export.NewScheduler(cfg.Backup.Schedule, backuper, lg.Named("backup"))
		if err != nil {
			return errors.Wrap(err, "create backup scheduler")
		}
		healthSvc.Add(health.Readiness, "backup-dir", health.Options{}, health.DirWritableCheck(cfg.Backup.Dir))
		scheduler.Start()
		lg.Info("Backups scheduled",
			zap.String("schedule", cfg.Backup.Schedule),
			zap.String("dir", cfg.Backup.Dir),
		)
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	gin.SetMode(gin.ReleaseMode)
	h := newAPI(cfg, store, lifecycle, backuper, loc)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: newHTTPHandler(ctx, cfg, healthSvc, handler.NewEngine(h),
			m.TracerProvider(), m.MeterProvider(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation or a server failure, drain,
	// then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				lg.Error("Backup scheduler stop error", zap.Error(err))
			}
		}
		healthSvc.Stop()
		return nil
	})
	return g.Wait()
}

// newAPI builds the register API over store.
func newAPI(cfg *Config, store Store, lifecycle *order.Lifecycle, backuper *export.Backuper, loc *time.Location) *handler.Handler {
	return handler.NewHandler(
		handler.HandlerConfig{
			LowStockThreshold:   cfg.LowStockThreshold,
			MaxRegisters:        cfg.Registers.Max,
			RegisterIdleTimeout: cfg.Registers.IdleTimeout,
		},
		handler.Services{
			Products:  product.NewService(store.Products()),
			Tables:    table.NewService(store.Tables()),
			Register:  order.NewRegister(store.Products(), store.Tables(), cfg.Cashiers),
			Lifecycle: lifecycle,
			Reports:   report.NewService(store.Orders(), loc),
			Settings:  settings.NewService(store.Settings()),
			Store:     store,
			Backups:   backuper,
		},
	)
}

// newHTTPHandler mounts the health endpoints and the API on one mux behind
// the middleware chain.
func newHTTPHandler(
	ctx context.Context,
	cfg *Config,
	healthSvc *health.Health,
	api http.Handler,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.RegisterIDHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("pos-api", tp, mp),
		httpmiddleware.LogRequests(),
	)
}
