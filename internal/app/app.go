package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/pricing"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
	"github.com/xenking/nuestra-carne/internal/domain/report"
	"github.com/xenking/nuestra-carne/internal/httpapi"
	"github.com/xenking/nuestra-carne/internal/notify"
	"github.com/xenking/nuestra-carne/internal/storage/jsonfile"
	"github.com/xenking/nuestra-carne/internal/storage/postgres"
	"github.com/xenking/nuestra-carne/pkg/health"
	"github.com/xenking/nuestra-carne/pkg/httpmiddleware"
)

// store is the selected persistence driver.
type store struct {
	orders     order.Repository
	promotions promotion.Repository
	pinger     health.Pinger
	close      func()
}

func openStore(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Using PostgreSQL storage")
		return &store{
			orders:     postgres.NewOrderRepository(pool),
			promotions: postgres.NewPromotionRepository(pool),
			pinger:     pool,
			close:      pool.Close,
		}, nil
	default:
		s, err := jsonfile.Open(cfg.DataDir)
		if err != nil {
			return nil, errors.Wrap(err, "open data dir")
		}
		lg.Info("Using JSON file storage", zap.String("dir", cfg.DataDir))
		return &store{
			orders:     s.Orders(),
			promotions: s.Promotions(),
			pinger:     s,
			close:      func() {},
		}, nil
	}
}

// notifier announces orders and delivers weekly reports.
type notifier interface {
	order.Notifier
	httpapi.ReportPublisher
	Close() error
}

func newNotifier(lg *zap.Logger, m *app.Telemetry, cfg KafkaConfig) notifier {
	if len(cfg.Brokers) == 0 {
		lg.Info("Kafka brokers not configured, notifications are logged")
		return notify.Log{}
	}
	lg.Info("Publishing notifications to Kafka", zap.Strings("brokers", cfg.Brokers))
	return notify.NewKafka(notify.KafkaConfig{
		Brokers:      cfg.Brokers,
		OrdersTopic:  cfg.OrdersTopic,
		ReportsTopic: cfg.ReportsTopic,
	}, m.TracerProvider())
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	threshold, fee, err := cfg.Pricing.Policy()
	if err != nil {
		return err
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.close()

	notifications := newNotifier(lg, m, cfg.Kafka)
	defer func() {
		if err := notifications.Close(); err != nil {
			lg.Error("Close notifier", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(st.pinger))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)

	// Domain services.
	promotions := promotion.NewService(st.promotions)
	orders := order.NewService(
		order.Config{
			Lifecycle:     order.Lifecycle{Strict: cfg.Lifecycle.Strict},
			ClampNegative: cfg.Pricing.ClampNegative,
		},
		st.orders,
		promotions.Resolver(),
		st.promotions,
		pricing.New(threshold, fee),
		notifications,
	)

	orderLimiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.OrderRateLimit.Max,
		Window:  cfg.OrderRateLimit.Window,
		Message: "Demasiados pedidos desde esta IP, intenta de nuevo en un minuto",
	})
	orderLimiter.StartSweeper(ctx)

	api, err := httpapi.New(httpapi.Options{
		Orders:     orders,
		Promotions: promotions,
		Reports:    report.New(loc),
		Publisher:  notifications,
		Admin:      httpapi.Credentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
		Fallback:   httpapi.Fallback{WhatsApp: cfg.Fallback.WhatsApp, Email: cfg.Fallback.Email},
		OrderLimit: orderLimiter.Handler,
		Meter:      m.MeterProvider().Meter("github.com/xenking/nuestra-carne/internal/httpapi"),
	})
	if err != nil {
		return errors.Wrap(err, "create api")
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.Handle("GET /livez", httpmiddleware.Route("GET /livez", http.HandlerFunc(healthSvc.LiveEndpoint)))
	mux.Handle("GET /readyz", httpmiddleware.Route("GET /readyz", http.HandlerFunc(healthSvc.ReadyEndpoint)))
	api.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("carne-api", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
