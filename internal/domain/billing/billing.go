package billing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// StatusInitiated is the payment status written when billing is accepted.
const StatusInitiated = "Initiated"

// Sentinel errors for submission validation.
var (
	ErrMissingFields = errors.New("Missing required fields")
)

// MissingFieldsError lists the required billing fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	msg := "The following fields are required: "
	for i, f := range e.Fields {
		if i > 0 {
			msg += ", "
		}
		msg += f
	}
	return msg
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingFields
}

// Details are the buyer's billing fields plus the order context the checkout
// page attaches to them. JSON names follow the public API.
type Details struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"emailID"`
	Phone      string `json:"phoneNumber"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"pinCode"`

	Item     string          `json:"item,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

// Missing returns the JSON names of empty required fields, in form order.
func (d Details) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"firstName", d.FirstName},
		{"lastName", d.LastName},
		{"emailID", d.Email},
		{"phoneNumber", d.Phone},
		{"address", d.Address},
		{"city", d.City},
		{"state", d.State},
		{"country", d.Country},
		{"pinCode", d.PostalCode},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Record is the stored billing document.
type Record struct {
	OrderID   string
	Details   Details
	Status    string
	Mode      string
	CreatedAt time.Time
}

// Repository persists billing records.
type Repository interface {
	Insert(ctx context.Context, r Record) error
}

// Notifier announces accepted billing records to the merchant.
type Notifier interface {
	Notify(ctx context.Context, r Record) error
}
