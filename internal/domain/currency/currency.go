package currency

import (
	"github.com/go-faster/errors"
)

// Code is an ISO 4217 currency code supported by the storefront.
type Code string

const (
	// INR is the reference currency: catalog prices are authored in it.
	INR Code = "INR"
	// USD is the second display currency and the resolver fallback.
	USD Code = "USD"
)

// Reference is the currency in which product prices are authored.
const Reference = INR

// Fallback is used whenever the display currency cannot be detected.
const Fallback = USD

// ErrUnsupported is returned for any code outside the supported set.
var ErrUnsupported = errors.New("unsupported currency")

// Supported lists the display currencies in selector order.
var Supported = []Code{USD, INR}

// Parse validates s as a supported currency code. Matching is exact, as the
// codes travel in URLs produced by the storefront itself.
func Parse(s string) (Code, error) {
	switch c := Code(s); c {
	case INR, USD:
		return c, nil
	default:
		return "", errors.Wrapf(ErrUnsupported, "%q", s)
	}
}

// Symbol returns the display symbol for c.
func (c Code) Symbol() string {
	if c == INR {
		return "₹"
	}
	return "$"
}

func (c Code) String() string { return string(c) }
