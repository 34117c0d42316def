package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/pricing"
)

func TestNewBillingDocument(t *testing.T) {
	at := time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)
	rec := billing.Record{
		OrderID: "SLTPRO-161026-1430",
		Details: billing.Details{
			FirstName: "Asha", Email: "asha@example.com", PostalCode: "411001",
			Amount: decimal.RequireFromString("705.00"), Currency: "USD",
		},
		Status:    billing.StatusInitiated,
		Mode:      "Wise",
		CreatedAt: at,
	}

	doc, err := newBillingDocument(rec)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	assert.Equal(t, "SLTPRO-161026-1430", m["orderID"])
	assert.Equal(t, "asha@example.com", m["emailID"])
	assert.Equal(t, "411001", m["pinCode"])
	assert.Equal(t, "Initiated", m["PaymentStatus"])
	assert.Equal(t, "Wise", m["PaymentMode"])
	require.IsType(t, primitive.Decimal128{}, m["amount"])
	assert.Equal(t, "705", m["amount"].(primitive.Decimal128).String())
	assert.Equal(t, primitive.NewDateTimeFromTime(at), m["timestamp"])

	rec.Details.Amount = decimal.Zero
	doc, err = newBillingDocument(rec)
	require.NoError(t, err)
	assert.Nil(t, doc.Amount)
}

func TestDecodeDiscounts(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "StarLightTrader Pro", Value: bson.D{
			{Key: "INR", Value: bson.A{bson.D{{Key: "PRO20", Value: "*0.2"}}}},
			{Key: "USD", Value: bson.A{bson.D{{Key: "PRO50", Value: "-50"}}}},
		}},
	})
	require.NoError(t, err)

	got, err := decodeDiscounts(raw)
	require.NoError(t, err)

	assert.Equal(t, pricing.DiscountTable{
		"StarLightTrader Pro": {
			"INR": {{"PRO20": "*0.2"}},
			"USD": {{"PRO50": "-50"}},
		},
	}, got)

	bad, err := bson.Marshal(bson.D{{Key: "Broken", Value: "not a document"}})
	require.NoError(t, err)
	_, err = decodeDiscounts(bad)
	require.Error(t, err)
}
