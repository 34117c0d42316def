package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/starlighttrader/storefront/internal/client/exchangerate"
	"github.com/starlighttrader/storefront/internal/client/ipapi"
	"github.com/starlighttrader/storefront/internal/client/phonepe"
	"github.com/starlighttrader/storefront/internal/client/telegram"
	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
	"github.com/starlighttrader/storefront/internal/domain/payment"
	"github.com/starlighttrader/storefront/internal/domain/pricing"
	"github.com/starlighttrader/storefront/internal/handler"
	mongostore "github.com/starlighttrader/storefront/internal/storage/mongo"
	"github.com/starlighttrader/storefront/internal/storage/postgres"
	"github.com/starlighttrader/storefront/pkg/health"
	"github.com/starlighttrader/storefront/pkg/httpmiddleware"
)

const healthInterval = 10 * time.Second

// Run creates all dependencies, starts the HTTP server and background
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	healthReg := health.New()
	healthReg.Register(health.Liveness, "goroutines", health.GoroutineLimit(10000))
	healthReg.Register(health.Liveness, "gc_pause", health.GCPauseLimit(time.Second))

	repo, closeStore, err := openStore(ctx, lg, cfg.Store, healthReg)
	if err != nil {
		return err
	}
	defer closeStore()

	discounts, err := pricing.LoadDiscountTable(cfg.DiscountCodes)
	if err != nil {
		return errors.Wrap(err, "load discount codes")
	}
	promoPrice, err := cfg.Promotion.Price()
	if err != nil {
		return err
	}
	cat := catalog.Default(catalog.Promotion{
		PopularTitle:    cfg.Promotion.PopularTitle,
		OnSaleTitle:     cfg.Promotion.OnSaleTitle,
		DiscountedPrice: promoPrice,
	})

	// Upstream clients share one instrumented transport.
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	resolver := currency.NewResolver(ipapi.New(cfg.IPAPIURL, httpClient), cfg.GeoTimeout)
	engine := pricing.NewEngine(exchangerate.New(cfg.ExchangeRateURL, string(currency.USD), httpClient))

	var notifier billing.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, telegram.Options{Client: httpClient})
	} else {
		lg.Warn("Telegram notifications disabled: bot token or chat id not set")
	}
	billingSvc := billing.NewService(repo, notifier, billing.Options{
		QueueSize: cfg.Store.QueueSize,
		Timeout:   cfg.Store.Timeout,
	})

	phonePe := phonepe.New(phonepe.Credentials{
		MerchantID: cfg.PhonePe.MerchantID,
		SaltKey:    cfg.PhonePe.SaltKey,
		SaltIndex:  cfg.PhonePe.SaltIndex,
	}, phonepe.Options{
		Environment: phonepe.Environment(cfg.PhonePe.Environment),
		Client:      httpClient,
	})
	var gateway payment.Gateway
	if phonePe.Configured() {
		gateway = phonePe
	} else {
		lg.Warn("PhonePe checkout disabled: merchant credentials not set")
	}

	availability, err := payment.ParseAvailability(cfg.Merchant.Providers())
	if err != nil {
		return errors.Wrap(err, "parse payment providers")
	}
	dispatcher, err := payment.NewDispatcher(payment.Merchant{
		WiseHandle:  cfg.Merchant.WiseHandle,
		VPA:         cfg.Merchant.VPA,
		PayeeName:   cfg.Merchant.PayeeName,
		HomepageURL: cfg.Merchant.HomepageURL,
		BaseURL:     cfg.Merchant.BaseURL,
	}, availability, gateway, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create payment dispatcher")
	}

	h, err := handler.New(handler.Config{
		HomepageURL:   cfg.Merchant.HomepageURL,
		SecureCookies: cfg.SecureCookies,
	}, handler.Deps{
		Catalog:    cat,
		Resolver:   resolver,
		Engine:     engine,
		Discounts:  discounts,
		Billing:    billingSvc,
		Dispatcher: dispatcher,
		PhonePe:    phonePe,
		Health:     healthReg,
	})
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(h.Router(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("storefront", m.MeterProvider(), m.TracerProvider()),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// The billing worker outlives the server so queued records submitted
	// during draining are still stored.
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return billingSvc.Run(workerCtx)
	})
	g.Go(func() error {
		return engine.Run(gCtx, cfg.RateRefresh)
	})
	g.Go(func() error {
		return healthReg.Run(gCtx, healthInterval)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gCtx.Done()
		healthReg.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopWorker()
		return nil
	})

	healthReg.SetReady(true)
	return g.Wait()
}

// openStore connects the configured billing store and registers its
// readiness check. The returned repository is nil for the none driver.
func openStore(ctx context.Context, lg *zap.Logger, cfg StoreConfig, reg *health.Registry) (billing.Repository, func(), error) {
	switch cfg.Driver {
	case DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.Timeout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect billing store")
		}
		reg.Register(health.Readiness, "mongo", health.PingCheck(mongostore.Pinger{Client: client}),
			health.WithTimeout(5*time.Second))
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				lg.Warn("Disconnect billing store", zap.Error(err))
			}
		}
		return mongostore.NewBillingRepository(client, cfg.MongoDB), closeFn, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		reg.Register(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
		return postgres.NewBillingRepository(pool), pool.Close, nil

	default:
		lg.Warn("Billing store disabled, records are only sent as notifications")
		return nil, func() {}, nil
	}
}
