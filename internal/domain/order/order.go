package order

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
)

// CheckoutPath is the page that receives a freshly built order.
const CheckoutPath = "/payment"

// Query parameter names of the checkout URL.
const (
	ParamOrderID     = "orderID"
	ParamItem        = "item"
	ParamCurrency    = "currency"
	ParamTotalAmount = "totalAmount"
)

// Order is a purchase intent. It is never stored at creation time: it
// travels as checkout URL state until billing details are submitted.
type Order struct {
	ID          string
	Item        string
	Currency    currency.Code
	TotalAmount decimal.Decimal
}

// InputError describes a malformed or missing checkout parameter.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// NewID builds "{shortCode}-{DDMMYY}-{HHMM}" from t.
//
// The stamp is sliced in two phases: the full DDMMYYYYHHMM stamp drops the
// century, then the remaining ten digits split into a date and a time group.
// Resolution is one minute, so two orders of the same product within a
// minute share an ID.
func NewID(shortCode string, t time.Time) string {
	full := fmt.Sprintf("%02d%02d%04d%02d%02d", t.Day(), int(t.Month()), t.Year(), t.Hour(), t.Minute())
	compact := full[:4] + full[6:]
	return shortCode + "-" + compact[:6] + "-" + compact[6:]
}

// New creates an order for p charged amount in c at instant now.
func New(p catalog.Product, c currency.Code, amount decimal.Decimal, now time.Time) Order {
	return Order{
		ID:          NewID(p.ShortCode, now),
		Item:        p.Title,
		Currency:    c,
		TotalAmount: amount,
	}
}

// Query encodes the order as checkout query parameters.
func (o Order) Query() url.Values {
	q := url.Values{}
	q.Set(ParamOrderID, o.ID)
	q.Set(ParamItem, o.Item)
	q.Set(ParamCurrency, string(o.Currency))
	q.Set(ParamTotalAmount, o.TotalAmount.String())
	return q
}

// CheckoutURL returns the relative URL of the checkout page for o.
func (o Order) CheckoutURL() string {
	return CheckoutPath + "?" + o.Query().Encode()
}

// FromQuery decodes and validates checkout parameters. All four are
// mandatory; failures are *InputError values carrying a user-facing message.
func FromQuery(q url.Values) (Order, error) {
	id := strings.TrimSpace(q.Get(ParamOrderID))
	item := strings.TrimSpace(q.Get(ParamItem))
	rawCurrency := strings.TrimSpace(q.Get(ParamCurrency))
	rawAmount := strings.TrimSpace(q.Get(ParamTotalAmount))

	if id == "" || item == "" || rawCurrency == "" || rawAmount == "" {
		return Order{}, &InputError{Message: "Missing required payment parameters"}
	}

	c, err := currency.Parse(rawCurrency)
	if err != nil {
		return Order{}, &InputError{Message: "Invalid currency type"}
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil || amount.IsNegative() {
		return Order{}, &InputError{Message: "Invalid payment amount"}
	}

	return Order{
		ID:          id,
		Item:        item,
		Currency:    c,
		TotalAmount: amount,
	}, nil
}
