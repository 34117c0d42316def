// Package exchangerate fetches conversion rates from exchangerate-api.com.
package exchangerate

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultURL returns the latest INR-based rates.
const DefaultURL = "https://api.exchangerate-api.com/v4/latest/INR"

// Client implements pricing.RateSource for a single target currency.
type Client struct {
	url    string
	target string
	http   *http.Client
}

// New creates a Client reading the rate of target from url.
func New(url, target string, hc *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{url: url, target: strings.ToUpper(target), http: hc}
}

// Rate returns the current base-to-target rate.
func (c *Client) Rate(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch rates")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read response")
	}

	var (
		rate  decimal.Decimal
		found bool
	)
	if err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if key != "rates" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != c.target {
				return d.Skip()
			}
			n, err := d.Num()
			if err != nil {
				return err
			}
			rate, err = decimal.NewFromString(n.String())
			found = err == nil
			return err
		})
	}); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode rates")
	}
	if !found {
		return decimal.Zero, errors.Errorf("rate for %s not found", c.target)
	}
	return rate, nil
}
