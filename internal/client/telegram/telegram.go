// Package telegram posts merchant notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/starlighttrader/storefront/internal/domain/billing"
)

// DefaultAPIURL is the public Bot API origin.
const DefaultAPIURL = "https://api.telegram.org"

// ErrNotConfigured is returned when the bot token or chat id is missing.
var ErrNotConfigured = errors.New("telegram bot token or chat ID is missing")

// RetryConfig controls delivery retries.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// Options configures a Notifier.
type Options struct {
	APIURL string
	Retry  RetryConfig
	Client *http.Client
}

// Notifier sends Markdown messages to a single chat. It implements
// billing.Notifier.
type Notifier struct {
	token  string
	chatID string
	apiURL string
	retry  RetryConfig
	http   *http.Client
}

// New creates a Notifier.
func New(token, chatID string, opts Options) *Notifier {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry.Attempts = 3
	}
	if opts.Retry.Delay == 0 {
		opts.Retry.Delay = 500 * time.Millisecond
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = 5 * time.Second
	}
	hc := opts.Client
	if hc == nil {
		hc = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Notifier{
		token:  token,
		chatID: chatID,
		apiURL: strings.TrimSuffix(opts.APIURL, "/"),
		retry:  opts.Retry,
		http:   hc,
	}
}

// Notify sends the billing notification for r.
func (n *Notifier) Notify(ctx context.Context, r billing.Record) error {
	return n.Send(ctx, billing.Message(r))
}

// Send posts text to the configured chat, retrying transient failures.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if n.token == "" || n.chatID == "" {
		return ErrNotConfigured
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("chat_id")
	e.Str(n.chatID)
	e.FieldStart("text")
	e.Str(text)
	e.FieldStart("parse_mode")
	e.Str("Markdown")
	e.ObjEnd()
	body := e.Bytes()

	return retry.Do(
		func() error {
			return n.post(ctx, body)
		},
		retry.Context(ctx),
		retry.Attempts(n.retry.Attempts),
		retry.Delay(n.retry.Delay),
		retry.MaxDelay(n.retry.MaxDelay),
		retry.LastErrorOnly(true),
	)
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	u := n.apiURL + "/bot" + n.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(errors.Wrap(err, "create request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return errors.Wrap(err, "send message")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	err = errors.Errorf("telegram status %d: %s", resp.StatusCode, describe(raw))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return err
	}
	return retry.Unrecoverable(err)
}

// describe extracts the Bot API error description from raw.
func describe(raw []byte) string {
	var desc string
	if err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		if key != "description" {
			return d.Skip()
		}
		v, err := d.Str()
		desc = v
		return err
	}); err != nil || desc == "" {
		return strings.TrimSpace(string(raw))
	}
	return desc
}
