package handler

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/starlighttrader/storefront/internal/client/phonepe"
	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
	"github.com/starlighttrader/storefront/internal/domain/payment"
	"github.com/starlighttrader/storefront/pkg/httpmiddleware"
)

const (
	successPath = "/payment/success"
	failurePath = "/payment/failure"
)

// --- Preferences ---

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := currency.Parse(q.Get("currency"))
	if err != nil {
		c = h.resolver.Resolve(r.Context(), h.prefs(w, r), httpmiddleware.ClientIP(r))
	}
	category := catalog.Category(q.Get("category"))
	promo := h.catalog.Promotion()
	products := h.catalog.List(category)

	writeOK(w, "", func(e *jx.Encoder) {
		field(e, "currency", string(c))
		field(e, "symbol", c.Symbol())
		e.FieldStart("products")
		e.ArrStart()
		for _, p := range products {
			e.ObjStart()
			field(e, "title", p.Title)
			field(e, "shortCode", p.ShortCode)
			field(e, "shortDescription", p.ShortDescription)
			field(e, "category", string(p.Category))
			e.FieldStart("features")
			e.ArrStart()
			for _, f := range p.Features {
				e.Str(f)
			}
			e.ArrEnd()
			if p.VideoURL != "" {
				field(e, "videoUrl", p.VideoURL)
			}
			decimalField(e, "price", h.engine.ProductPrice(p, promo, c, true))
			if promo.OnSale(p) {
				decimalField(e, "originalPrice", h.engine.ProductPrice(p, promo, c, false))
			}
			e.FieldStart("onSale")
			e.Bool(promo.OnSale(p))
			e.FieldStart("popular")
			e.Bool(promo.Popular(p))
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (h *Handler) getCurrency(w http.ResponseWriter, r *http.Request) {
	prefs := h.prefs(w, r)
	c := h.resolver.Resolve(r.Context(), prefs, httpmiddleware.ClientIP(r))
	writeOK(w, "", func(e *jx.Encoder) {
		field(e, "currency", string(c))
		field(e, "symbol", c.Symbol())
		field(e, "theme", currency.Theme(prefs))
	})
}

func (h *Handler) setCurrency(w http.ResponseWriter, r *http.Request) {
	var raw string
	if !decodeJSON(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "currency" {
			raw, err = readString(d)
			return err
		}
		return d.Skip()
	}) {
		return
	}
	c, err := currency.Parse(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", "Supported currencies are USD and INR")
		return
	}
	h.resolver.Select(h.prefs(w, r), c)
	writeOK(w, "Currency updated", func(e *jx.Encoder) {
		field(e, "currency", string(c))
		field(e, "symbol", c.Symbol())
	})
}

func (h *Handler) setTheme(w http.ResponseWriter, r *http.Request) {
	var raw string
	if !decodeJSON(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "theme" {
			raw, err = readString(d)
			return err
		}
		return d.Skip()
	}) {
		return
	}
	theme := currency.SetTheme(h.prefs(w, r), strings.TrimSpace(raw))
	writeOK(w, "Theme updated", func(e *jx.Encoder) {
		field(e, "theme", theme)
	})
}

// --- Discounts ---

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var item, rawCurrency, code string
	var amount decimal.Decimal
	if !decodeJSON(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "item":
			item, err = readString(d)
		case "currency":
			rawCurrency, err = readString(d)
		case "code", "discountCode":
			code, err = readString(d)
		case "amount", "totalAmount":
			amount, err = readDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	}) {
		return
	}

	c, err := currency.Parse(strings.TrimSpace(rawCurrency))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid currency", "Supported currencies are USD and INR")
		return
	}
	if item == "" || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Missing required fields", "item and a positive amount are required")
		return
	}

	quote, err := h.discountQuote(item, c, amount, code)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidDiscount, "The discount code is not valid for this product")
		return
	}
	writeOK(w, "Discount applied", func(e *jx.Encoder) {
		decimalField(e, "baseAmount", quote.Base)
		decimalField(e, "finalAmount", quote.Final)
		field(e, "discount", quote.Applied)
		field(e, "code", quote.Code)
	})
}

// --- Billing ---

func decodeDetails(d *jx.Decoder) (billing.Details, error) {
	var out billing.Details
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "firstName":
			dst = &out.FirstName
		case "lastName":
			dst = &out.LastName
		case "emailID", "email":
			dst = &out.Email
		case "phoneNumber", "phone":
			dst = &out.Phone
		case "address":
			dst = &out.Address
		case "city":
			dst = &out.City
		case "state":
			dst = &out.State
		case "country":
			dst = &out.Country
		case "pinCode", "postalCode":
			dst = &out.PostalCode
		case "item":
			dst = &out.Item
		case "currency":
			dst = &out.Currency
		case "amount":
			v, err := readDecimal(d)
			out.Amount = v
			return err
		default:
			return d.Skip()
		}
		v, err := readString(d)
		*dst = strings.TrimSpace(v)
		return err
	})
	return out, err
}

func (h *Handler) submitBilling(ctx context.Context, orderID, mode string, d billing.Details) error {
	_, err := h.billing.Submit(ctx, orderID, mode, d)
	if errors.Is(err, billing.ErrQueueFull) {
		zctx.From(ctx).Error("Billing details dropped", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	return err
}

// saveBillingDetails accepts {orderID, billingDetails, paymentProvider}.
// Storage and notification run in the background; their failures never
// reach the buyer.
func (h *Handler) saveBillingDetails(w http.ResponseWriter, r *http.Request) {
	var orderID, provider string
	var details billing.Details
	var hasDetails bool
	if !decodeJSON(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "orderID":
			orderID, err = readString(d)
		case "paymentProvider":
			provider, err = readString(d)
		case "billingDetails":
			if d.Next() == jx.Null {
				return d.Null()
			}
			hasDetails = true
			details, err = decodeDetails(d)
		default:
			err = d.Skip()
		}
		return err
	}) {
		return
	}

	if !hasDetails {
		writeError(w, http.StatusBadRequest, "Missing required fields", msgMissingTopLevel)
		return
	}
	if err := h.submitBilling(r.Context(), orderID, provider, details); err != nil {
		var missing *billing.MissingFieldsError
		switch {
		case errors.As(err, &missing):
			writeError(w, http.StatusBadRequest, "Missing required billing fields", missing.Error())
		case errors.Is(err, billing.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Missing required fields", msgMissingTopLevel)
		default:
			zctx.From(r.Context()).Error("Submit billing details", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to process billing details")
		}
		return
	}
	writeOK(w, "Billing details received", func(e *jx.Encoder) {
		field(e, "orderID", strings.TrimSpace(orderID))
	})
}

// --- PhonePe ---

func (h *Handler) callbackURL() string {
	return strings.TrimSuffix(h.dispatcher.Merchant().BaseURL, "/") + "/api/phonepe/callback"
}

// initiatePhonePe starts a PhonePe payment. Merchant credentials in the body
// only fill settings missing from the server configuration.
func (h *Handler) initiatePhonePe(w http.ResponseWriter, r *http.Request) {
	var req payment.GatewayRequest
	var override phonepe.Credentials
	if !decodeJSON(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "orderID", "orderId":
			req.OrderID, err = readString(d)
		case "item":
			req.Item, err = readString(d)
		case "amount":
			req.Amount, err = readDecimal(d)
		case "billingDetails":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.Billing, err = decodeDetails(d)
		case "redirectUrl":
			req.RedirectURL, err = readString(d)
		case "callbackUrl":
			req.CallbackURL, err = readString(d)
		case "merchantId":
			override.MerchantID, err = readString(d)
		case "saltKey":
			override.SaltKey, err = readString(d)
		case "saltIndex":
			override.SaltIndex, err = readString(d)
		default:
			err = d.Skip()
		}
		return err
	}) {
		return
	}

	if h.phonePe == nil {
		writeError(w, http.StatusInternalServerError, "Payment provider not configured", msgProviderDisabled)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Missing required fields", "orderID and a positive amount are required")
		return
	}
	if req.RedirectURL == "" {
		req.RedirectURL = h.callbackURL()
	}
	if req.CallbackURL == "" {
		req.CallbackURL = h.callbackURL()
	}

	redirectURL, err := h.phonePe.WithCredentials(override).Initiate(r.Context(), req)
	if err != nil {
		lg := zctx.From(r.Context())
		if errors.Is(err, payment.ErrNotConfigured) {
			lg.Warn("PhonePe is not configured")
			writeError(w, http.StatusInternalServerError, "Payment provider not configured", msgProviderDisabled)
			return
		}
		lg.Error("Initiate PhonePe payment", zap.String("order_id", req.OrderID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Payment initialization failed", userMessage(err))
		return
	}
	writeOK(w, "Payment initiated", func(e *jx.Encoder) {
		field(e, "redirectUrl", redirectURL)
	})
}

func transactionID(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		if id := r.FormValue("transactionId"); id != "" {
			return id
		}
		return r.FormValue("merchantTransactionId")
	}
	body, err := readBody(r)
	if err != nil {
		return ""
	}
	var id string
	_ = decodeFields(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "transactionId", "merchantTransactionId":
			if id != "" {
				return d.Skip()
			}
			id, err = readString(d)
			return err
		default:
			return d.Skip()
		}
	})
	return id
}

// phonePeCallback verifies the transaction with PhonePe and sends the buyer
// to the result page. Every failure counts as a failed payment.
func (h *Handler) phonePeCallback(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())
	txnID := strings.TrimSpace(transactionID(r))
	if h.phonePe == nil || txnID == "" {
		lg.Warn("PhonePe callback rejected", zap.Bool("configured", h.phonePe != nil))
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}

	res, err := h.phonePe.Status(r.Context(), txnID)
	if err != nil {
		lg.Error("Check PhonePe status", zap.String("transaction_id", txnID), zap.Error(err))
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}
	lg.Info("PhonePe payment status",
		zap.String("transaction_id", txnID),
		zap.String("code", res.Code),
		zap.Bool("paid", res.Paid()),
	)
	if !res.Paid() {
		http.Redirect(w, r, failurePath, http.StatusFound)
		return
	}
	http.Redirect(w, r, successPath, http.StatusFound)
}

// testPayment simulates a gateway return for local testing.
func (h *Handler) testPayment(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("status") == "success" {
		http.Redirect(w, r, successPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, failurePath, http.StatusFound)
}

// decodeJSON reads the body and decodes it with fn, answering 400 on
// failure. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) bool {
	body, err := readBody(r)
	if err == nil {
		err = decodeFields(body, fn)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "Request body must be a JSON object")
		return false
	}
	return true
}
