package pricing

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/starlighttrader/storefront/internal/domain/currency"
)

// ErrInvalidDiscountCode is returned when a code has no descriptor for the
// order's product and currency.
var ErrInvalidDiscountCode = errors.New("invalid discount code")

// Descriptor markers.
const (
	markerSubtract = '-'
	markerMultiply = '*'
)

// DiscountKind tells how a descriptor adjusts the price.
type DiscountKind int

const (
	// DiscountSubtract removes a fixed amount.
	DiscountSubtract DiscountKind = iota + 1
	// DiscountFraction removes a fraction of the base price.
	DiscountFraction
)

// Discount is a parsed descriptor.
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// ParseDescriptor parses "-1000" (subtract) or "*0.2" (remove 20%).
func ParseDescriptor(s string) (Discount, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Discount{}, errors.Errorf("malformed discount descriptor %q", s)
	}

	var kind DiscountKind
	switch s[0] {
	case markerSubtract:
		kind = DiscountSubtract
	case markerMultiply:
		kind = DiscountFraction
	default:
		return Discount{}, errors.Errorf("unknown discount marker in %q", s)
	}

	v, err := decimal.NewFromString(s[1:])
	if err != nil {
		return Discount{}, errors.Wrapf(err, "parse discount value %q", s)
	}
	if v.IsNegative() {
		return Discount{}, errors.Errorf("negative discount value %q", s)
	}
	return Discount{Kind: kind, Value: v}, nil
}

// Apply returns base adjusted by d, floored at zero.
func (d Discount) Apply(base decimal.Decimal) decimal.Decimal {
	var out decimal.Decimal
	switch d.Kind {
	case DiscountSubtract:
		out = base.Sub(d.Value)
	case DiscountFraction:
		out = base.Sub(base.Mul(d.Value))
	default:
		out = base
	}
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Label is the human-readable description shown next to the amount.
func (d Discount) Label(c currency.Code) string {
	if d.Kind == DiscountFraction {
		return d.Value.Mul(decimal.NewFromInt(100)).String() + "%"
	}
	return "-" + string(c) + " " + d.Value.String()
}

// DiscountTable maps product title to currency to a list of single-entry
// {code: descriptor} objects, the shape of the distributed JSON blob.
type DiscountTable map[string]map[string][]map[string]string

// LoadDiscountTable decodes the base64-encoded JSON blob. An empty blob yields
// an empty table.
func LoadDiscountTable(encoded string) (DiscountTable, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return DiscountTable{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return DiscountTable{}, errors.Wrap(err, "decode base64")
	}
	var t DiscountTable
	if err := json.Unmarshal(raw, &t); err != nil {
		return DiscountTable{}, errors.Wrap(err, "decode json")
	}
	if t == nil {
		t = DiscountTable{}
	}
	return t, nil
}

// Encode produces the base64 blob accepted by LoadDiscountTable.
func (t DiscountTable) Encode() (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "encode json")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Lookup finds the descriptor for code, scoped to item and currency.
// Codes compare case-insensitively.
func (t DiscountTable) Lookup(item string, c currency.Code, code string) (Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Discount{}, ErrInvalidDiscountCode
	}
	for _, entry := range t[item][string(c)] {
		for key, descriptor := range entry {
			if !strings.EqualFold(key, code) {
				continue
			}
			d, err := ParseDescriptor(descriptor)
			if err != nil {
				return Discount{}, errors.Wrap(ErrInvalidDiscountCode, err.Error())
			}
			return d, nil
		}
	}
	return Discount{}, ErrInvalidDiscountCode
}

// Quote tracks the payable amount of one order. At most one discount is
// active; applying a code always starts again from Base.
type Quote struct {
	Base    decimal.Decimal
	Final   decimal.Decimal
	Applied string
	Code    string
}

// NewQuote starts a quote with no discount.
func NewQuote(base decimal.Decimal) *Quote {
	q := &Quote{Base: base}
	q.Reset()
	return q
}

// Reset drops any applied discount.
func (q *Quote) Reset() {
	q.Final = q.Base
	q.Applied = ""
	q.Code = ""
}

// Apply replaces the active discount with the one found for code. An unknown
// code resets the quote to Base and returns ErrInvalidDiscountCode.
func (q *Quote) Apply(t DiscountTable, item string, c currency.Code, code string) error {
	q.Reset()
	d, err := t.Lookup(item, c, code)
	if err != nil {
		return err
	}
	q.Final = d.Apply(q.Base)
	q.Applied = d.Label(c)
	q.Code = strings.TrimSpace(code)
	return nil
}
