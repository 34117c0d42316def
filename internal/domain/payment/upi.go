package payment

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/starlighttrader/storefront/internal/domain/currency"
)

// UPIPath is the in-app UPI instruction screen.
const UPIPath = "/upi-payment"

// UPIRequest is the state carried to the UPI screen.
type UPIRequest struct {
	OrderID     string
	Item        string
	Amount      decimal.Decimal
	FirstName   string
	LastName    string
	Email       string
	Mobile      string
	City        string
	State       string
	MerchantVPA string
	PayeeName   string
}

// UPIInputError is a user-facing validation failure of the UPI screen.
type UPIInputError struct {
	Message string
}

func (e *UPIInputError) Error() string {
	return e.Message
}

// Query encodes r as UPI screen parameters. Empty values are omitted.
func (r UPIRequest) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("orderID", r.OrderID)
	set("item", r.Item)
	set("amount", r.Amount.String())
	set("currency", string(currency.INR))
	set("firstName", r.FirstName)
	set("lastName", r.LastName)
	set("email", r.Email)
	set("mobile", r.Mobile)
	set("city", r.City)
	set("state", r.State)
	set("merchantVPA", r.MerchantVPA)
	set("payeeName", r.PayeeName)
	return q
}

// ParseUPIRequest validates UPI screen parameters. The currency must be INR
// and the amount must be positive. Merchant values from m take precedence
// over the ones in q.
func ParseUPIRequest(q url.Values, m Merchant) (UPIRequest, error) {
	if q.Get("currency") != string(currency.INR) {
		return UPIRequest{}, &UPIInputError{Message: "UPI payments are only supported for Indian Rupees (INR)"}
	}
	rawAmount := strings.TrimSpace(q.Get("amount"))
	if rawAmount == "" {
		return UPIRequest{}, &UPIInputError{Message: "Payment amount is missing"}
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil || !amount.IsPositive() {
		return UPIRequest{}, &UPIInputError{Message: "Invalid payment amount. Please try again."}
	}

	r := UPIRequest{
		OrderID:     q.Get("orderID"),
		Item:        q.Get("item"),
		Amount:      amount,
		FirstName:   q.Get("firstName"),
		LastName:    q.Get("lastName"),
		Email:       q.Get("email"),
		Mobile:      q.Get("mobile"),
		City:        q.Get("city"),
		State:       q.Get("state"),
		MerchantVPA: firstNonEmpty(m.VPA, q.Get("merchantVPA")),
		PayeeName:   firstNonEmpty(m.PayeeName, q.Get("payeeName")),
	}
	if r.OrderID == "" || r.MerchantVPA == "" {
		return UPIRequest{}, &UPIInputError{Message: "Missing required payment parameters"}
	}
	return r, nil
}

// IntentURI returns the upi://pay deep link encoded in the QR code.
func (r UPIRequest) IntentURI() string {
	q := url.Values{}
	q.Set("pa", r.MerchantVPA)
	q.Set("pn", r.PayeeName)
	q.Set("am", r.Amount.String())
	q.Set("cu", string(currency.INR))
	q.Set("tn", "Payment for "+r.Item)
	// UPI apps expect %20 rather than '+'.
	return "upi://pay?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

// QRCode renders the intent URI as a PNG of the given size in pixels.
func (r UPIRequest) QRCode(size int) ([]byte, error) {
	png, err := qrcode.Encode(r.IntentURI(), qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode UPI QR code")
	}
	return png, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
