package main // Entry point package

import (
	"context"
	"errors"
	"log" // Startup failures are fatal
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/config" // Internal config loader
	"github.com/iliyamo/class-enrollment/internal/database"
	"github.com/iliyamo/class-enrollment/internal/handler"
	"github.com/iliyamo/class-enrollment/internal/payment"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/repository/memstore"
	"github.com/iliyamo/class-enrollment/internal/repository/mongostore"
	"github.com/iliyamo/class-enrollment/internal/router" // Internal router setup
	"github.com/iliyamo/class-enrollment/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores := openStores(ctx, cfg)
	defer closeStores()

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	broker, err := payment.New(payment.Config{
		Provider:   cfg.PaymentProvider,
		SecretKey:  cfg.PaymentSecretKey,
		Production: cfg.PaymentProduction,
	})
	if err != nil {
		log.Fatalf("payment: %v", err)
	}

	// A nil publisher must stay a nil interface so the coordinator skips events.
	var events service.EventPublisher
	if cfg.RabbitMQURL != "" {
		events = queue.NewPublisher(cfg.RabbitMQURL, logger)
	}

	gate := auth.NewGate(cfg.AccessTokenSecret, stores.Users)
	catalog := service.NewCatalog(stores.Classes, logger)
	enrollment := service.NewEnrollment(stores.Classes, stores.Cart, logger)
	coordinator := service.NewCoordinator(service.CoordinatorConfig{
		Payments: stores.Payments,
		Cart:     stores.Cart,
		Broker:   broker,
		Events:   events,
		Currency: cfg.PaymentCurrency,
		Logger:   logger,
	})
	reconciler := service.NewReconciler(stores.Payments, stores.Cart, cfg.ReconcileGrace, logger)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				logger.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	router.Register(e, router.Deps{ // Register application routes
		Gate:      gate,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Logger:    logger,
		Auth:      handler.NewAuthHandler(gate),
		Users:     handler.NewUserHandler(stores.Users, gate),
		Classes:   handler.NewClassHandler(catalog),
		Enrolled:  handler.NewEnrolledHandler(enrollment),
		Payments:  handler.NewPaymentHandler(coordinator, stores.Payments),
	})

	sched := startSweep(ctx, cfg.ReconcileSchedule, reconciler, logger)
	if cfg.RabbitMQURL != "" {
		go func() {
			if err := queue.StartReconcileConsumer(ctx, cfg.RabbitMQURL, reconciler, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reconcile consumer stopped", "error", err)
			}
		}()
	}

	addr := ":" + cfg.Port // Address string with port
	logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if sched != nil {
		<-sched.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// openStores connects the configured backend and returns its stores with a
// cleanup function.
func openStores(ctx context.Context, cfg config.Config) (repository.Stores, func()) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case "memory":
		return memstore.New(), func() {}
	case "mysql":
		db, err := database.OpenMySQL(connectCtx, database.MySQLConfig{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		}.DSN())
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return repository.NewMySQLStores(db), func() { _ = db.Close() }
	default:
		db, err := database.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		if err := mongostore.CreateIndexes(connectCtx, db); err != nil {
			log.Fatalf("mongo indexes: %v", err)
		}
		closeDB := func() { _ = db.Client().Disconnect(context.Background()) }
		txn, err := mongostore.SupportsTransactions(connectCtx, db)
		if err != nil {
			slog.Warn("mongo topology check failed, settling without transactions", "error", err)
		}
		if txn {
			slog.Info("mongo settles payments in transactions")
			return mongostore.NewWithTransactions(db), closeDB
		}
		return mongostore.New(db), closeDB
	}
}

// startSweep schedules the reconciliation sweep.  An empty schedule
// disables it.
func startSweep(ctx context.Context, schedule string, r *service.Reconciler, logger *slog.Logger) *cron.Cron {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := r.Sweep(sweepCtx); err != nil {
			logger.Error("reconcile sweep failed", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("reconcile schedule %q: %v", schedule, err)
	}
	c.Start()
	return c
}
