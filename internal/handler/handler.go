// Package handler serves the storefront pages and its JSON API.
package handler

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/starlighttrader/storefront/internal/client/phonepe"
	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
	"github.com/starlighttrader/storefront/internal/domain/payment"
	"github.com/starlighttrader/storefront/internal/domain/pricing"
	"github.com/starlighttrader/storefront/pkg/health"
	"github.com/starlighttrader/storefront/pkg/httpmiddleware"
)

// BillingSubmitter queues billing details for persistence and notification.
type BillingSubmitter interface {
	Submit(ctx context.Context, orderID, mode string, d billing.Details) (billing.Record, error)
}

// Config holds non-dependency settings of the Handler.
type Config struct {
	// HomepageURL is where acknowledgment and result pages return to.
	HomepageURL string
	// SecureCookies marks preference cookies Secure.
	SecureCookies bool
	// QRSize is the edge of the UPI QR code in pixels.
	QRSize int
	// AckCountdown and SuccessCountdown delay the automatic return home.
	AckCountdown     time.Duration
	SuccessCountdown time.Duration
}

func (c *Config) setDefaults() {
	if c.HomepageURL == "" {
		c.HomepageURL = "/"
	}
	if c.QRSize <= 0 {
		c.QRSize = 256
	}
	if c.AckCountdown <= 0 {
		c.AckCountdown = 100 * time.Second
	}
	if c.SuccessCountdown <= 0 {
		c.SuccessCountdown = 30 * time.Second
	}
}

// Deps are the domain services behind the Handler. PhonePe and Health may be
// nil.
type Deps struct {
	Catalog    *catalog.Catalog
	Resolver   *currency.Resolver
	Engine     *pricing.Engine
	Discounts  pricing.DiscountTable
	Billing    BillingSubmitter
	Dispatcher *payment.Dispatcher
	PhonePe    *phonepe.Client
	Health     *health.Registry
	Now        func() time.Time
}

// Handler serves every storefront route.
type Handler struct {
	cfg Config

	catalog    *catalog.Catalog
	resolver   *currency.Resolver
	engine     *pricing.Engine
	discounts  pricing.DiscountTable
	billing    BillingSubmitter
	dispatcher *payment.Dispatcher
	phonePe    *phonepe.Client
	health     *health.Registry
	now        func() time.Time

	pages map[string]*template.Template
}

// New constructs a Handler and parses the page templates.
func New(cfg Config, deps Deps) (*Handler, error) {
	cfg.setDefaults()
	if deps.Catalog == nil || deps.Resolver == nil || deps.Engine == nil ||
		deps.Billing == nil || deps.Dispatcher == nil {
		return nil, errors.New("catalog, resolver, engine, billing and dispatcher are required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	if deps.Discounts == nil {
		deps.Discounts = pricing.DiscountTable{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		cfg:        cfg,
		catalog:    deps.Catalog,
		resolver:   deps.Resolver,
		engine:     deps.Engine,
		discounts:  deps.Discounts,
		billing:    deps.Billing,
		dispatcher: deps.Dispatcher,
		phonePe:    deps.PhonePe,
		health:     deps.Health,
		now:        deps.Now,
		pages:      pages,
	}, nil
}

// Router returns the chi router serving pages, the JSON API and the health
// probes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed",
			r.Method+" is not accepted on this route")
	})

	if h.health != nil {
		r.Get("/livez", h.health.Handler(health.Liveness))
		r.Get("/readyz", h.health.Handler(health.Readiness))
	}

	// Pages
	r.Get("/", h.home)
	r.Get("/buy", h.buy)
	r.Get("/payment", h.checkout)
	r.Post("/payment", h.submitCheckout)
	r.Get("/payment/success", h.paymentResult(true))
	r.Get("/payment/failure", h.paymentResult(false))
	r.Get(payment.UPIPath, h.upiPayment)
	r.Post(payment.UPIPath+"/confirm", h.confirmUPI)
	r.Get("/error", h.errorPage)

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/currency", h.getCurrency)
		r.Post("/currency", h.setCurrency)
		r.Post("/theme", h.setTheme)
		r.Post("/discount", h.applyDiscount)
		r.Post("/save-billing-details", h.saveBillingDetails)
		r.Get("/test-payment", h.testPayment)

		r.Route("/phonepe", func(r chi.Router) {
			r.Post("/initiate-payment", h.initiatePhonePe)
			r.Post("/callback", h.phonePeCallback)
		})
	})

	return r
}
