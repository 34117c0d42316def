package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/order"
)

// State is a checkout session state.
type State int

const (
	StateNoProviderSelected State = iota
	StateProviderSelected
	StateBillingCollected
	StateRedirected
	StateInstructionShown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNoProviderSelected:
		return "NoProviderSelected"
	case StateProviderSelected:
		return "ProviderSelected"
	case StateBillingCollected:
		return "BillingCollected"
	case StateRedirected:
		return "Redirected"
	case StateInstructionShown:
		return "InstructionScreenShown"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRedirected || s == StateInstructionShown || s == StateFailed
}

// Session tracks a single checkout from provider selection to dispatch.
// It is owned by one request and is not safe for concurrent use.
type Session struct {
	order    order.Order
	state    State
	provider Provider
	billing  billing.Details
	err      error
}

// NewSession starts a session for o.
func NewSession(o order.Order) *Session {
	return &Session{order: o}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Provider returns the selected provider, zero if none.
func (s *Session) Provider() Provider { return s.provider }

// Err returns the failure that moved the session to Failed.
func (s *Session) Err() error { return s.err }

// Select chooses provider p. The provider may be changed until billing
// details are collected. A provider without a dispatch branch, or one that
// cannot charge in the order currency, is rejected before billing.
func (s *Session) Select(p Provider, a Availability) error {
	if s.state != StateNoProviderSelected && s.state != StateProviderSelected {
		return errors.Wrapf(ErrInvalidTransition, "select provider in %s", s.state)
	}
	spec, ok := specs[p]
	if !ok || !spec.Implemented() {
		return errors.Wrapf(ErrUnsupportedProvider, "%s", p)
	}
	if !spec.Accepts(s.order.Currency) || (a != nil && !a.Offers(s.order.Currency, p)) {
		return &CurrencyError{Provider: p, Currency: s.order.Currency}
	}
	s.provider = p
	s.state = StateProviderSelected
	return nil
}

// CollectBilling records the buyer's billing details. All required fields
// must be present.
func (s *Session) CollectBilling(d billing.Details) error {
	if s.state != StateProviderSelected {
		return errors.Wrapf(ErrInvalidTransition, "collect billing in %s", s.state)
	}
	if missing := d.Missing(); len(missing) > 0 {
		return &billing.MissingFieldsError{Fields: missing}
	}
	s.billing = d
	s.state = StateBillingCollected
	return nil
}

// Dispatch hands the session to d and moves it to its terminal state.
func (s *Session) Dispatch(ctx context.Context, d *Dispatcher) (Outcome, error) {
	if s.state != StateBillingCollected {
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "dispatch in %s", s.state)
	}
	out, err := d.Dispatch(ctx, s.provider, Checkout{Order: s.order, Billing: s.billing})
	if err != nil {
		s.state = StateFailed
		s.err = err
		return Outcome{}, err
	}
	if out.Kind == OutcomeInstruction {
		s.state = StateInstructionShown
	} else {
		s.state = StateRedirected
	}
	return out, nil
}
