package handler

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
	"github.com/starlighttrader/storefront/internal/domain/order"
	"github.com/starlighttrader/storefront/internal/domain/payment"
	"github.com/starlighttrader/storefront/internal/domain/pricing"
	"github.com/starlighttrader/storefront/pkg/httpmiddleware"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageHome     = "home"
	pageCheckout = "checkout"
	pageUPI      = "upi"
	pageAck      = "ack"
	pageResult   = "result"
	pageError    = "error"
)

func parsePages() (map[string]*template.Template, error) {
	names := []string{pageHome, pageCheckout, pageUPI, pageAck, pageResult, pageError}
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, errors.Wrapf(err, "page %s", name)
		}
		out[name] = t
	}
	return out, nil
}

// page is embedded by every view model.
type page struct {
	Title string
	Theme string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		zctx.From(r.Context()).Error("Render page", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func redirectError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/error?"+url.Values{"message": {message}}.Encode(), http.StatusSeeOther)
}

func money(c currency.Code, v decimal.Decimal) string {
	if v.Equal(v.Truncate(0)) {
		return c.Symbol() + v.StringFixed(0)
	}
	return c.Symbol() + v.StringFixed(2)
}

type productView struct {
	Title            string
	ShortDescription string
	Features         []string
	Category         string
	VideoURL         string
	Price            string
	OriginalPrice    string
	OnSale           bool
	Popular          bool
	BuyURL           string
}

type option struct {
	Value    string
	Label    string
	Selected bool
	Disabled bool
}

type homeData struct {
	page
	Currency   currency.Code
	Currencies []option
	Categories []option
	Products   []productView
}

func (h *Handler) productViews(category catalog.Category, c currency.Code) []productView {
	promo := h.catalog.Promotion()
	products := h.catalog.List(category)
	out := make([]productView, 0, len(products))
	for _, p := range products {
		v := productView{
			Title:            p.Title,
			ShortDescription: p.ShortDescription,
			Features:         p.Features,
			Category:         string(p.Category),
			VideoURL:         p.VideoURL,
			Price:            money(c, h.engine.ProductPrice(p, promo, c, true)),
			OnSale:           promo.OnSale(p),
			Popular:          promo.Popular(p),
			BuyURL:           "/buy?" + url.Values{"item": {p.Title}, "currency": {string(c)}}.Encode(),
		}
		if v.OnSale {
			v.OriginalPrice = money(c, h.engine.ProductPrice(p, promo, c, false))
		}
		out = append(out, v)
	}
	return out
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	prefs := h.prefs(w, r)
	q := r.URL.Query()
	if c, err := currency.Parse(q.Get("currency")); err == nil {
		h.resolver.Select(prefs, c)
	}
	if t := q.Get("theme"); t != "" {
		currency.SetTheme(prefs, t)
	}
	c := h.resolver.Resolve(r.Context(), prefs, httpmiddleware.ClientIP(r))

	category := catalog.Category(q.Get("category"))
	if category == "" {
		category = catalog.CategoryAll
	}

	data := homeData{
		page:     page{Title: "Star Light Trader", Theme: currency.Theme(prefs)},
		Currency: c,
		Products: h.productViews(category, c),
	}
	for _, code := range currency.Supported {
		data.Currencies = append(data.Currencies, option{
			Value:    string(code),
			Label:    code.Symbol() + " " + string(code),
			Selected: code == c,
		})
	}
	for _, cat := range []catalog.Category{
		catalog.CategoryAll, catalog.CategoryCourses, catalog.CategoryIndicators, catalog.CategoryBundles,
	} {
		data.Categories = append(data.Categories, option{
			Value:    string(cat),
			Label:    strings.ToUpper(string(cat[:1])) + string(cat[1:]),
			Selected: cat == category,
		})
	}
	h.render(w, r, http.StatusOK, pageHome, data)
}

// buy creates an order for the requested product and sends the buyer to
// checkout.
func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.catalog.Get(q.Get("item"))
	if err != nil {
		redirectError(w, r, "Product not found")
		return
	}
	c, err := currency.Parse(q.Get("currency"))
	if err != nil {
		c = h.resolver.Resolve(r.Context(), h.prefs(w, r), httpmiddleware.ClientIP(r))
	}

	amount := h.engine.ProductPrice(p, h.catalog.Promotion(), c, true)
	o := order.New(p, c, amount, h.now())
	zctx.From(r.Context()).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("item", o.Item),
		zap.Stringer("amount", o.TotalAmount),
		zap.Stringer("currency", o.Currency),
	)
	http.Redirect(w, r, o.CheckoutURL(), http.StatusSeeOther)
}

type checkoutData struct {
	page
	Order         order.Order
	TotalAmount   string
	Base          string
	Final         string
	Discounted    bool
	Applied       string
	DiscountCode  string
	DiscountError string
	Error         string
	Providers     []option
	Billing       billing.Details
}

func (h *Handler) newCheckoutData(w http.ResponseWriter, r *http.Request, o order.Order) *checkoutData {
	return &checkoutData{
		page:        page{Title: "Checkout", Theme: currency.Theme(h.prefs(w, r))},
		Order:       o,
		TotalAmount: o.TotalAmount.String(),
	}
}

func (d *checkoutData) fill(q *pricing.Quote, availability payment.Availability, selected string) {
	d.Base = money(d.Order.Currency, q.Base)
	d.Final = money(d.Order.Currency, q.Final)
	d.Discounted = q.Applied != ""
	d.Applied = q.Applied
	d.Providers = d.Providers[:0]
	for _, p := range availability.For(d.Order.Currency) {
		spec, _ := payment.SpecFor(p)
		label := p.String()
		if !spec.Implemented() {
			label += " (coming soon)"
		}
		d.Providers = append(d.Providers, option{
			Value:    p.String(),
			Label:    label,
			Selected: strings.EqualFold(selected, p.String()),
			Disabled: !spec.Implemented(),
		})
	}
}

// discountQuote prices item with code. A resolved code applies to the
// catalog list price and replaces any promotional price; otherwise the quote
// stays at fallback.
func (h *Handler) discountQuote(item string, c currency.Code, fallback decimal.Decimal, code string) (*pricing.Quote, error) {
	base := fallback
	if p, err := h.catalog.Get(item); err == nil {
		base = h.engine.ProductPrice(p, h.catalog.Promotion(), c, false)
	}
	q := pricing.NewQuote(base)
	if err := q.Apply(h.discounts, item, c, code); err != nil {
		return pricing.NewQuote(fallback), err
	}
	return q, nil
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o, err := order.FromQuery(q)
	if err != nil {
		redirectError(w, r, userMessage(err))
		return
	}

	data := h.newCheckoutData(w, r, o)
	quote := pricing.NewQuote(o.TotalAmount)
	if code := strings.TrimSpace(q.Get("discountCode")); code != "" {
		data.DiscountCode = code
		if quote, err = h.discountQuote(o.Item, o.Currency, o.TotalAmount, code); err != nil {
			data.DiscountError = msgInvalidDiscount
		}
	}
	data.fill(quote, h.dispatcher.Availability(), q.Get("provider"))
	h.render(w, r, http.StatusOK, pageCheckout, data)
}

func detailsFromForm(f url.Values) billing.Details {
	get := func(key string) string { return strings.TrimSpace(f.Get(key)) }
	return billing.Details{
		FirstName:  get("firstName"),
		LastName:   get("lastName"),
		Email:      get("emailID"),
		Phone:      get("phoneNumber"),
		Address:    get("address"),
		City:       get("city"),
		State:      get("state"),
		Country:    get("country"),
		PostalCode: get("pinCode"),
	}
}

// submitCheckout applies a discount code or, for action=pay, collects
// billing details and dispatches the payment.
func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		redirectError(w, r, "Invalid form submission")
		return
	}
	form := r.PostForm
	o, err := order.FromQuery(form)
	if err != nil {
		redirectError(w, r, userMessage(err))
		return
	}

	selected := form.Get("provider")
	data := h.newCheckoutData(w, r, o)
	data.Billing = detailsFromForm(form)
	quote := pricing.NewQuote(o.TotalAmount)
	fail := func(message string) {
		data.Error = message
		data.fill(quote, h.dispatcher.Availability(), selected)
		h.render(w, r, http.StatusUnprocessableEntity, pageCheckout, data)
	}

	if code := strings.TrimSpace(form.Get("discountCode")); code != "" {
		data.DiscountCode = code
		if quote, err = h.discountQuote(o.Item, o.Currency, o.TotalAmount, code); err != nil {
			data.DiscountError = msgInvalidDiscount
			fail("")
			return
		}
	}
	if form.Get("action") == "apply" {
		data.fill(quote, h.dispatcher.Availability(), selected)
		h.render(w, r, http.StatusOK, pageCheckout, data)
		return
	}

	p, err := payment.ParseProvider(selected)
	if err != nil {
		fail("Please select a payment method")
		return
	}

	charged := o
	charged.TotalAmount = quote.Final
	session := payment.NewSession(charged)
	if err := session.Select(p, h.dispatcher.Availability()); err != nil {
		if errors.Is(err, payment.ErrUnsupportedProvider) {
			redirectError(w, r, userMessage(err))
			return
		}
		fail(userMessage(err))
		return
	}
	details := data.Billing
	details.Item = o.Item
	details.Amount = quote.Final
	details.Currency = string(o.Currency)
	if err := session.CollectBilling(details); err != nil {
		fail(userMessage(err))
		return
	}
	if err := h.submitBilling(ctx, o.ID, p.String(), details); err != nil {
		fail(userMessage(err))
		return
	}

	out, err := session.Dispatch(ctx, h.dispatcher)
	if err != nil {
		zctx.From(ctx).Warn("Payment dispatch failed",
			zap.String("order_id", o.ID),
			zap.Stringer("provider", p),
			zap.Error(err),
		)
		redirectError(w, r, userMessage(err))
		return
	}

	if out.Kind == payment.OutcomeExternal {
		h.render(w, r, http.StatusOK, pageAck, ackData{
			page:        page{Title: "Complete your payment", Theme: data.Theme},
			Heading:     "Complete your payment with " + p.String(),
			Message:     "A new tab has opened to finish the transfer. We will confirm your enrollment by email once the payment arrives.",
			OrderID:     o.ID,
			Item:        o.Item,
			Amount:      money(o.Currency, quote.Final),
			ExternalURL: out.URL,
			Countdown:   int(h.cfg.AckCountdown.Seconds()),
			HomepageURL: h.cfg.HomepageURL,
		})
		return
	}
	http.Redirect(w, r, out.URL, http.StatusSeeOther)
}

type upiData struct {
	page
	Request   payment.UPIRequest
	Amount    string
	QRCode    template.URL
	IntentURI template.URL
}

func (h *Handler) upiPayment(w http.ResponseWriter, r *http.Request) {
	req, err := payment.ParseUPIRequest(r.URL.Query(), h.dispatcher.Merchant())
	if err != nil {
		redirectError(w, r, userMessage(err))
		return
	}
	png, err := req.QRCode(h.cfg.QRSize)
	if err != nil {
		zctx.From(r.Context()).Error("Generate UPI QR code", zap.String("order_id", req.OrderID), zap.Error(err))
		redirectError(w, r, msgPaymentFailed)
		return
	}
	h.render(w, r, http.StatusOK, pageUPI, upiData{
		page:    page{Title: "Pay with UPI", Theme: currency.Theme(h.prefs(w, r))},
		Request: req,
		Amount:  money(currency.INR, req.Amount),
		// Both values are built from validated parameters.
		QRCode:    template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
		IntentURI: template.URL(req.IntentURI()),
	})
}

type ackData struct {
	page
	Heading     string
	Message     string
	OrderID     string
	Item        string
	Amount      string
	ExternalURL string
	Countdown   int
	HomepageURL string
}

// confirmUPI acknowledges a buyer-reported UPI payment.
func (h *Handler) confirmUPI(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectError(w, r, "Invalid form submission")
		return
	}
	f := r.PostForm
	amount := f.Get("amount")
	if v, err := decimal.NewFromString(amount); err == nil {
		amount = money(currency.INR, v)
	}
	zctx.From(r.Context()).Info("UPI payment reported", zap.String("order_id", f.Get("orderID")))
	h.render(w, r, http.StatusOK, pageAck, ackData{
		page:        page{Title: "Payment submitted", Theme: currency.Theme(h.prefs(w, r))},
		Heading:     "Thank you for your payment",
		Message:     "We will verify your UPI payment and confirm your enrollment by email.",
		OrderID:     f.Get("orderID"),
		Item:        f.Get("item"),
		Amount:      amount,
		Countdown:   int(h.cfg.AckCountdown.Seconds()),
		HomepageURL: h.cfg.HomepageURL,
	})
}

type resultData struct {
	page
	Success     bool
	Countdown   int
	HomepageURL string
}

func (h *Handler) paymentResult(success bool) http.HandlerFunc {
	title := "Payment failed"
	if success {
		title = "Payment successful"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, pageResult, resultData{
			page:        page{Title: title, Theme: currency.Theme(h.prefs(w, r))},
			Success:     success,
			Countdown:   int(h.cfg.SuccessCountdown.Seconds()),
			HomepageURL: h.cfg.HomepageURL,
		})
	}
}

type errorData struct {
	page
	Message     string
	HomepageURL string
}

func (h *Handler) errorPage(w http.ResponseWriter, r *http.Request) {
	msg := strings.TrimSpace(r.URL.Query().Get("message"))
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}
	h.render(w, r, http.StatusOK, pageError, errorData{
		page:        page{Title: "Error", Theme: currency.Theme(h.prefs(w, r))},
		Message:     msg,
		HomepageURL: h.cfg.HomepageURL,
	})
}
