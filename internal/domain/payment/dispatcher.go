package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/currency"
	"github.com/starlighttrader/storefront/internal/domain/order"
)

const wiseBaseURL = "https://wise.com/pay/business/"

// OutcomeKind tells the caller what to do with an Outcome.
type OutcomeKind int

const (
	// OutcomeRedirect sends the browser to URL.
	OutcomeRedirect OutcomeKind = iota + 1
	// OutcomeExternal opens URL in a new context and shows the
	// acknowledgment screen.
	OutcomeExternal
	// OutcomeInstruction renders the in-app instruction screen at URL.
	OutcomeInstruction
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeExternal:
		return "external"
	case OutcomeInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful dispatch.
type Outcome struct {
	Kind OutcomeKind
	URL  string
}

// Checkout is an order with the final payable amount and the buyer's billing
// details.
type Checkout struct {
	Order   order.Order
	Billing billing.Details
}

// GatewayRequest is a server-signed payment initiation.
type GatewayRequest struct {
	OrderID     string
	Item        string
	Amount      decimal.Decimal
	Billing     billing.Details
	RedirectURL string
	CallbackURL string
}

// GatewayError is a failure reported by the payment provider itself. Message
// is the provider's text and is safe to show to the buyer.
type GatewayError struct {
	Provider Provider
	Code     string
	Status   int
	Message  string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s (code %s, status %d)", e.Provider, e.Message, e.Code, e.Status)
}

// Gateway initiates a hosted payment and returns the URL to send the buyer to.
type Gateway interface {
	Initiate(ctx context.Context, req GatewayRequest) (string, error)
}

// Merchant holds the merchant identifiers used to build provider URLs.
type Merchant struct {
	WiseHandle  string
	VPA         string
	PayeeName   string
	HomepageURL string
	// BaseURL is the public origin used for gateway return URLs.
	BaseURL string
}

// Dispatcher branches a checkout to the selected provider.
type Dispatcher struct {
	merchant     Merchant
	availability Availability
	gateway      Gateway

	tracer     trace.Tracer
	dispatched metric.Int64Counter
}

// NewDispatcher creates a Dispatcher. gateway may be nil when PhonePe is not
// configured.
func NewDispatcher(
	merchant Merchant,
	availability Availability,
	gateway Gateway,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (*Dispatcher, error) {
	if availability == nil {
		availability = DefaultAvailability()
	}
	dispatched, err := mp.Meter("storefront/payment").Int64Counter("payment.dispatch",
		metric.WithDescription("Payment dispatches by provider and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create dispatch counter")
	}
	return &Dispatcher{
		merchant:     merchant,
		availability: availability,
		gateway:      gateway,
		tracer:       tp.Tracer("storefront/payment"),
		dispatched:   dispatched,
	}, nil
}

// Availability returns the configured provider availability.
func (d *Dispatcher) Availability() Availability {
	return d.availability
}

// Merchant returns the merchant identifiers.
func (d *Dispatcher) Merchant() Merchant {
	return d.merchant
}

// Dispatch routes c to provider p. Currency restrictions are enforced before
// any provider call is made.
func (d *Dispatcher) Dispatch(ctx context.Context, p Provider, c Checkout) (_ Outcome, rerr error) {
	ctx, span := d.tracer.Start(ctx, "payment.Dispatch",
		trace.WithAttributes(
			attribute.String("payment.provider", p.String()),
			attribute.String("order.id", c.Order.ID),
			attribute.String("order.currency", string(c.Order.Currency)),
		),
	)
	defer func() {
		result := "ok"
		if rerr != nil {
			result = "error"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		d.dispatched.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", p.String()),
			attribute.String("result", result),
		))
		span.End()
	}()

	spec, ok := specs[p]
	if !ok || !spec.Implemented() {
		return Outcome{}, errors.Wrapf(ErrUnsupportedProvider, "%s", p)
	}
	if !spec.Accepts(c.Order.Currency) {
		return Outcome{}, &CurrencyError{Provider: p, Currency: c.Order.Currency}
	}

	out, err := spec.handle(d, ctx, c)
	if err != nil {
		return Outcome{}, err
	}
	zctx.From(ctx).Info("Payment dispatched",
		zap.Stringer("provider", p),
		zap.String("order_id", c.Order.ID),
		zap.Stringer("outcome", out.Kind),
	)
	return out, nil
}

// CurrencyError reports a provider that cannot charge in the order currency.
type CurrencyError struct {
	Provider Provider
	Currency currency.Code
}

func (e *CurrencyError) Error() string {
	if e.Provider == ProviderUPI {
		return "UPI payments are only supported for Indian Rupees (INR)"
	}
	return e.Provider.String() + " payments are not supported for " + string(e.Currency)
}

func (e *CurrencyError) Unwrap() error {
	return ErrCurrencyNotSupported
}

// WiseURL returns the Wise pay link for c.
func (d *Dispatcher) WiseURL(c Checkout) (string, error) {
	if d.merchant.WiseHandle == "" {
		return "", errors.Wrap(ErrNotConfigured, "Wise business handle")
	}
	q := url.Values{}
	q.Set("amount", c.Order.TotalAmount.String())
	q.Set("currency", string(c.Order.Currency))
	q.Set("description", c.Order.ID)
	return wiseBaseURL + url.PathEscape(d.merchant.WiseHandle) + "?" + q.Encode(), nil
}

func (d *Dispatcher) wise(_ context.Context, c Checkout) (Outcome, error) {
	u, err := d.WiseURL(c)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeExternal, URL: u}, nil
}

func (d *Dispatcher) upi(_ context.Context, c Checkout) (Outcome, error) {
	if d.merchant.VPA == "" || d.merchant.PayeeName == "" {
		return Outcome{}, errors.Wrap(ErrNotConfigured, "UPI merchant VPA and payee name")
	}
	req := UPIRequest{
		OrderID:     c.Order.ID,
		Item:        c.Order.Item,
		Amount:      c.Order.TotalAmount,
		FirstName:   c.Billing.FirstName,
		LastName:    c.Billing.LastName,
		Email:       c.Billing.Email,
		Mobile:      c.Billing.Phone,
		City:        c.Billing.City,
		State:       c.Billing.State,
		MerchantVPA: d.merchant.VPA,
		PayeeName:   d.merchant.PayeeName,
	}
	return Outcome{Kind: OutcomeInstruction, URL: UPIPath + "?" + req.Query().Encode()}, nil
}

func (d *Dispatcher) phonePe(ctx context.Context, c Checkout) (Outcome, error) {
	if d.gateway == nil {
		return Outcome{}, errors.Wrap(ErrNotConfigured, "PhonePe merchant details")
	}
	base := strings.TrimSuffix(d.merchant.BaseURL, "/")
	callback := base + "/api/phonepe/callback"
	redirectURL, err := d.gateway.Initiate(ctx, GatewayRequest{
		OrderID:     c.Order.ID,
		Item:        c.Order.Item,
		Amount:      c.Order.TotalAmount,
		Billing:     c.Billing,
		RedirectURL: callback,
		CallbackURL: callback,
	})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "initiate PhonePe payment")
	}
	return Outcome{Kind: OutcomeRedirect, URL: redirectURL}, nil
}
