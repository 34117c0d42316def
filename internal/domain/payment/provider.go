// Package payment routes a checkout to one of the supported payment
// providers.
package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/starlighttrader/storefront/internal/domain/currency"
)

// Sentinel errors for payment dispatch.
var (
	ErrUnsupportedProvider  = errors.New("unsupported payment provider")
	ErrNotConfigured        = errors.New("payment provider is not configured")
	ErrCurrencyNotSupported = errors.New("currency is not supported by provider")
	ErrInvalidTransition    = errors.New("invalid checkout state transition")
)

// Provider is a closed set of payment provider kinds.
type Provider int

const (
	ProviderWise Provider = iota + 1
	ProviderUPI
	ProviderPhonePe
	ProviderPayPal
)

var providerNames = map[Provider]string{
	ProviderWise:    "Wise",
	ProviderUPI:     "UPI",
	ProviderPhonePe: "PhonePe",
	ProviderPayPal:  "PayPal",
}

func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "Unknown"
}

// ParseProvider maps a provider name to its kind, ignoring case.
func ParseProvider(s string) (Provider, error) {
	s = strings.TrimSpace(s)
	for p, name := range providerNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedProvider, "%q", s)
}

type handlerFunc func(d *Dispatcher, ctx context.Context, c Checkout) (Outcome, error)

// Spec describes what a provider accepts and how it is dispatched. A nil
// handler marks a provider that is listed but not integrated.
type Spec struct {
	Currencies []currency.Code
	handle     handlerFunc
}

// Accepts reports whether the provider can charge in c.
func (s Spec) Accepts(c currency.Code) bool {
	for _, sc := range s.Currencies {
		if sc == c {
			return true
		}
	}
	return false
}

// Implemented reports whether the provider has a dispatch branch.
func (s Spec) Implemented() bool {
	return s.handle != nil
}

var specs = map[Provider]Spec{
	ProviderWise:    {Currencies: []currency.Code{currency.INR, currency.USD}, handle: (*Dispatcher).wise},
	ProviderUPI:     {Currencies: []currency.Code{currency.INR}, handle: (*Dispatcher).upi},
	ProviderPhonePe: {Currencies: []currency.Code{currency.INR}, handle: (*Dispatcher).phonePe},
	ProviderPayPal:  {Currencies: []currency.Code{currency.USD}},
}

// SpecFor returns the dispatch spec of p.
func SpecFor(p Provider) (Spec, bool) {
	s, ok := specs[p]
	return s, ok
}

// Availability lists, per currency, the providers shown to the buyer in
// display order.
type Availability map[currency.Code][]Provider

// DefaultAvailability is used when the merchant configures no providers.
func DefaultAvailability() Availability {
	return Availability{
		currency.INR: {ProviderUPI, ProviderPhonePe, ProviderWise},
		currency.USD: {ProviderWise, ProviderPayPal},
	}
}

// ParseAvailability builds an Availability from provider names keyed by
// currency code. A provider listed under a currency it cannot charge in is
// rejected.
func ParseAvailability(raw map[string][]string) (Availability, error) {
	a := make(Availability, len(raw))
	for code, names := range raw {
		c, err := currency.Parse(code)
		if err != nil {
			return nil, errors.Wrap(err, "provider currency")
		}
		for _, name := range names {
			p, err := ParseProvider(name)
			if err != nil {
				return nil, errors.Wrapf(err, "providers for %s", c)
			}
			if !specs[p].Accepts(c) {
				return nil, &CurrencyError{Provider: p, Currency: c}
			}
			a[c] = append(a[c], p)
		}
	}
	return a, nil
}

// For returns the providers offered for c.
func (a Availability) For(c currency.Code) []Provider {
	return a[c]
}

// Offers reports whether p is offered for c.
func (a Availability) Offers(c currency.Code, p Provider) bool {
	for _, ap := range a[c] {
		if ap == p {
			return true
		}
	}
	return false
}
