package handler

import (
	"github.com/go-faster/errors"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/order"
	"github.com/starlighttrader/storefront/internal/domain/payment"
	"github.com/starlighttrader/storefront/internal/domain/pricing"
)

const (
	msgPaymentFailed    = "Payment initialization failed. Please try again."
	msgUnsupported      = "Unsupported payment provider. Please choose another payment method."
	msgProviderDisabled = "This payment method is temporarily unavailable. Please choose another one."
	msgInvalidDiscount  = "Invalid discount code"
	msgMissingTopLevel  = "orderID, billingDetails, and paymentProvider are required"
)

// userMessage maps a checkout failure to the text shown to the buyer.
func userMessage(err error) string {
	var inputErr *order.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Message
	}

	var upiErr *payment.UPIInputError
	if errors.As(err, &upiErr) {
		return upiErr.Message
	}

	var currencyErr *payment.CurrencyError
	if errors.As(err, &currencyErr) {
		return currencyErr.Error()
	}

	var gatewayErr *payment.GatewayError
	if errors.As(err, &gatewayErr) && gatewayErr.Message != "" {
		return gatewayErr.Message
	}

	var missingErr *billing.MissingFieldsError
	if errors.As(err, &missingErr) {
		return missingErr.Error()
	}

	switch {
	case errors.Is(err, payment.ErrUnsupportedProvider):
		return msgUnsupported
	case errors.Is(err, payment.ErrNotConfigured):
		return msgProviderDisabled
	case errors.Is(err, pricing.ErrInvalidDiscountCode):
		return msgInvalidDiscount
	default:
		return msgPaymentFailed
	}
}
