// Package ipapi resolves client addresses to countries using ipapi.co.
package ipapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the public ipapi.co endpoint.
const DefaultBaseURL = "https://ipapi.co"

// Client implements currency.GeoLocator.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. An empty baseURL selects DefaultBaseURL; a nil
// client uses an instrumented default.
func New(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

// Country returns the ISO country code of ip. An empty ip looks up the
// caller's own address.
func (c *Client) Country(ctx context.Context, ip string) (string, error) {
	u := c.baseURL + "/json/"
	if ip != "" {
		u = c.baseURL + "/" + url.PathEscape(ip) + "/json/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "lookup")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	var (
		country string
		reason  string
		failed  bool
	)
	if err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "country_code":
			v, err := d.Str()
			country = v
			return err
		case "error":
			v, err := d.Bool()
			failed = v
			return err
		case "reason":
			v, err := d.Str()
			reason = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if failed {
		return "", errors.Errorf("lookup failed: %s", reason)
	}
	if country == "" {
		return "", errors.New("no country in response")
	}
	return strings.ToUpper(country), nil
}
