package order

import (
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlighttrader/storefront/internal/domain/catalog"
	"github.com/starlighttrader/storefront/internal/domain/currency"
)

func TestNewID(t *testing.T) {
	at := time.Date(2026, time.March, 7, 9, 5, 42, 0, time.UTC)

	assert.Equal(t, "SLTPRO-070326-0905", NewID("SLTPRO", at))
	assert.Equal(t, "WFAC-311299-2359", NewID("WFAC", time.Date(1999, time.December, 31, 23, 59, 0, 0, time.UTC)))
}

func TestNewID_SameMinuteCollides(t *testing.T) {
	first := time.Date(2026, time.October, 16, 14, 30, 1, 0, time.UTC)
	second := first.Add(58 * time.Second)

	assert.Equal(t, NewID("SLTPRO", first), NewID("SLTPRO", second))
	assert.NotEqual(t, NewID("SLTPRO", first), NewID("SLTPRO", second.Add(time.Second)))
	assert.NotEqual(t, NewID("SLTPRO", first), NewID("VFA", first))
}

func TestOrder_CheckoutURLRoundTrip(t *testing.T) {
	p, err := catalog.Default(catalog.Promotion{}).Get("StarLightTrader Pro")
	require.NoError(t, err)
	now := time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)

	o := New(p, currency.USD, decimal.NewFromInt(705), now)
	assert.Equal(t, "SLTPRO-161026-1430", o.ID)

	u, err := url.Parse(o.CheckoutURL())
	require.NoError(t, err)
	assert.Equal(t, CheckoutPath, u.Path)

	got, err := FromQuery(u.Query())
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "StarLightTrader Pro", got.Item)
	assert.Equal(t, currency.USD, got.Currency)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))
}

func TestFromQuery_Errors(t *testing.T) {
	valid := func() url.Values {
		return url.Values{
			ParamOrderID:     {"SLTPRO-161026-1430"},
			ParamItem:        {"StarLightTrader Pro"},
			ParamCurrency:    {"INR"},
			ParamTotalAmount: {"60000"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(url.Values)
		wantMsg string
	}{
		{name: "missing order id", mutate: func(q url.Values) { q.Del(ParamOrderID) }, wantMsg: "Missing required payment parameters"},
		{name: "missing item", mutate: func(q url.Values) { q.Set(ParamItem, " ") }, wantMsg: "Missing required payment parameters"},
		{name: "missing currency", mutate: func(q url.Values) { q.Del(ParamCurrency) }, wantMsg: "Missing required payment parameters"},
		{name: "missing amount", mutate: func(q url.Values) { q.Del(ParamTotalAmount) }, wantMsg: "Missing required payment parameters"},
		{name: "unsupported currency", mutate: func(q url.Values) { q.Set(ParamCurrency, "EUR") }, wantMsg: "Invalid currency type"},
		{name: "amount not a number", mutate: func(q url.Values) { q.Set(ParamTotalAmount, "lots") }, wantMsg: "Invalid payment amount"},
		{name: "negative amount", mutate: func(q url.Values) { q.Set(ParamTotalAmount, "-1") }, wantMsg: "Invalid payment amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(q)

			_, err := FromQuery(q)

			var inErr *InputError
			require.ErrorAs(t, err, &inErr)
			assert.Equal(t, tt.wantMsg, inErr.Message)
		})
	}
}
