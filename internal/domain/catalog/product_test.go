package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_List(t *testing.T) {
	c := Default(Promotion{})

	tests := []struct {
		name     string
		category Category
		want     []string
	}{
		{
			name:     "all returns every product",
			category: CategoryAll,
			want: []string{
				"Western FinAstro Concepts",
				"Vedic Financial Astrology",
				"TradingView Indicators",
				"StarLightTrader Pro",
			},
		},
		{
			name:     "courses",
			category: CategoryCourses,
			want:     []string{"Western FinAstro Concepts", "Vedic Financial Astrology"},
		},
		{
			name:     "bundles",
			category: CategoryBundles,
			want:     []string{"StarLightTrader Pro"},
		},
		{
			name:     "unknown category is empty",
			category: Category("gifts"),
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.List(tt.category)
			titles := make([]string, 0, len(got))
			for _, p := range got {
				titles = append(titles, p.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestCatalog_Get(t *testing.T) {
	c := Default(Promotion{})

	p, err := c.Get("StarLightTrader Pro")
	require.NoError(t, err)
	assert.Equal(t, "SLTPRO", p.ShortCode)
	assert.True(t, decimal.NewFromInt(60000).Equal(p.Price))

	_, err = c.Get("Missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPromotion(t *testing.T) {
	promo := Promotion{
		PopularTitle:    "StarLightTrader Pro",
		OnSaleTitle:     "TradingView Indicators",
		DiscountedPrice: decimal.NewFromInt(25000),
	}
	c := Default(promo)

	indicators, err := c.Get("TradingView Indicators")
	require.NoError(t, err)
	bundle, err := c.Get("StarLightTrader Pro")
	require.NoError(t, err)

	assert.True(t, c.Promotion().OnSale(indicators))
	assert.False(t, c.Promotion().OnSale(bundle))
	assert.True(t, c.Promotion().Popular(bundle))

	// A sale without a price is not a sale.
	assert.False(t, Promotion{OnSaleTitle: indicators.Title}.OnSale(indicators))
}
