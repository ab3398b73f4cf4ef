package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/applications"
	"github.com/joao-fontenele/sipasera/internal/billing"
	"github.com/joao-fontenele/sipasera/internal/cart"
	"github.com/joao-fontenele/sipasera/internal/catalog"
	"github.com/joao-fontenele/sipasera/internal/checkout"
	"github.com/joao-fontenele/sipasera/internal/config"
	"github.com/joao-fontenele/sipasera/internal/credit"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
	"github.com/joao-fontenele/sipasera/internal/orders"
	"github.com/joao-fontenele/sipasera/internal/redisx"
	"github.com/joao-fontenele/sipasera/internal/reports"
	"github.com/joao-fontenele/sipasera/internal/store/postgres"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
	"github.com/joao-fontenele/sipasera/internal/users"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.TracingOptions{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, version)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var (
		carts cart.Store        = cart.NewMemoryStore()
		idem  idempotency.Store = idempotency.NewMemoryStore()
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()

		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.Error("failed to connect to redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		carts = cart.NewRedisStore(rdb)
		idem = idempotency.NewRedisStore(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, keeping carts and idempotency keys in memory")
	}

	st := postgres.New(db)
	creditLedger := credit.NewLedger(st, cfg.NominalLimit, logger)
	orderLedger := orders.NewLedger(st, orders.WithTermDays(cfg.TermDays))

	usersHandler := users.NewHandler(users.NewService(st, creditLedger, logger), logger)
	creditHandler := credit.NewHandler(creditLedger, logger)
	catalogHandler := catalog.NewHandler(st, logger)
	cartHandler := cart.NewHandler(carts, st, logger)
	checkoutHandler := checkout.NewHandler(checkout.NewOrchestrator(st, creditLedger, orderLedger, carts, logger), idem, logger)
	billingHandler := billing.NewHandler(billing.NewOrchestrator(st, creditLedger, orderLedger, logger), idem, logger)
	ordersHandler := orders.NewHandler(orderLedger, st, logger)
	applicationsHandler := applications.NewHandler(applications.NewWorkflow(st, creditLedger, logger), st, logger)
	reportsHandler := reports.NewHandler(reports.NewService(st, creditLedger, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpx.Healthz)
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("POST /users", telemetry.WithHTTPRoute(usersHandler.HandleRegister))
	mux.HandleFunc("GET /users/me", telemetry.WithHTTPRoute(usersHandler.HandleMe))
	mux.HandleFunc("GET /credit", telemetry.WithHTTPRoute(creditHandler.HandleSummary))

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))

	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("PUT /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleSetItem))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckout))

	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	mux.HandleFunc("POST /orders/{id}/payments", telemetry.WithHTTPRoute(billingHandler.HandlePay))
	mux.HandleFunc("GET /billing", telemetry.WithHTTPRoute(billingHandler.HandleBills))

	mux.HandleFunc("POST /credit-applications", telemetry.WithHTTPRoute(applicationsHandler.HandleSubmit))
	mux.HandleFunc("GET /credit-applications", telemetry.WithHTTPRoute(applicationsHandler.HandleList))
	mux.HandleFunc("GET /credit-applications/notices", telemetry.WithHTTPRoute(applicationsHandler.HandleNotices))
	mux.HandleFunc("POST /credit-applications/{id}/resolve", telemetry.WithHTTPRoute(applicationsHandler.HandleResolve))
	mux.HandleFunc("POST /credit-applications/{id}/acknowledge", telemetry.WithHTTPRoute(applicationsHandler.HandleAcknowledge))

	mux.HandleFunc("POST /expenses", telemetry.WithHTTPRoute(reportsHandler.HandleRecordExpense))
	mux.HandleFunc("GET /reports", telemetry.WithHTTPRoute(reportsHandler.HandleSummary))
	mux.HandleFunc("GET /dashboard", telemetry.WithHTTPRoute(reportsHandler.HandleDashboard))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.HTTPHandler(httpx.Wrap(mux, logger), "api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
