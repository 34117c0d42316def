package handler

import (
	"net/http"
	"time"

	"github.com/starlighttrader/storefront/internal/domain/currency"
)

const (
	cookiePrefix = "slt_"
	cookieMaxAge = 365 * 24 * time.Hour
)

// cookiePrefs is a currency.Preferences backed by request cookies. Writes are
// sent back as Set-Cookie and are visible to later reads of the same request.
type cookiePrefs struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	written map[string]string
}

var _ currency.Preferences = (*cookiePrefs)(nil)

func (h *Handler) prefs(w http.ResponseWriter, r *http.Request) *cookiePrefs {
	return &cookiePrefs{r: r, w: w, secure: h.cfg.SecureCookies, written: map[string]string{}}
}

func (p *cookiePrefs) Get(key string) (string, bool) {
	if v, ok := p.written[key]; ok {
		return v, true
	}
	c, err := p.r.Cookie(cookiePrefix + key)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (p *cookiePrefs) Set(key, value string) {
	p.written[key] = value
	http.SetCookie(p.w, &http.Cookie{
		Name:     cookiePrefix + key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
