package currency

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Preference keys of the application-context store.
const (
	KeyCurrency = "currency"
	KeyTheme    = "theme"
)

// Theme values accepted by SetTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences is the per-visitor key/value store holding persisted choices.
// It replaces browser-global state with an explicit object owned by the caller.
type Preferences interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// GeoLocator resolves a client address to an ISO 3166 country code.
type GeoLocator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Resolver picks the display currency for a visitor.
type Resolver struct {
	geo     GeoLocator
	timeout time.Duration
	country string
}

// NewResolver returns a Resolver that maps the home country (IN) to INR and
// bounds every lookup by timeout.
func NewResolver(geo GeoLocator, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{geo: geo, timeout: timeout, country: "IN"}
}

// Resolve returns the persisted preference when there is a valid one.
// Otherwise it performs a time-bounded geolocation lookup, treats every
// failure as "not the home country", and persists the result.
func (r *Resolver) Resolve(ctx context.Context, prefs Preferences, ip string) Code {
	if v, ok := prefs.Get(KeyCurrency); ok {
		if c, err := Parse(v); err == nil {
			return c
		}
	}

	c := Fallback
	if r.geo != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		country, err := r.geo.Country(lookupCtx, ip)
		cancel()
		switch {
		case err != nil:
			zctx.From(ctx).Debug("Currency detection failed, using fallback",
				zap.String("fallback", string(Fallback)),
				zap.Error(err),
			)
		case country == r.country:
			c = INR
		}
	}

	prefs.Set(KeyCurrency, string(c))
	return c
}

// Select stores c as the visitor's display currency.
func (r *Resolver) Select(prefs Preferences, c Code) {
	prefs.Set(KeyCurrency, string(c))
}

// Theme returns the persisted theme, defaulting to light.
func Theme(prefs Preferences) string {
	if v, ok := prefs.Get(KeyTheme); ok && (v == ThemeLight || v == ThemeDark) {
		return v
	}
	return ThemeLight
}

// SetTheme persists the theme; unknown values fall back to light.
func SetTheme(prefs Preferences, theme string) string {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	prefs.Set(KeyTheme, theme)
	return theme
}

// MapPreferences is an in-memory Preferences, used for server-side defaults
// and in tests.
type MapPreferences map[string]string

// Get implements Preferences.
func (m MapPreferences) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Set implements Preferences.
func (m MapPreferences) Set(key, value string) {
	m[key] = value
}
