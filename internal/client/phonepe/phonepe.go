// Package phonepe implements the PhonePe hosted checkout (PG v1) client.
package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/starlighttrader/storefront/internal/domain/payment"
)

const (
	payPath    = "/pg/v1/pay"
	statusPath = "/pg/v1/status"

	// CodePaymentSuccess is the status code of a completed payment.
	CodePaymentSuccess = "PAYMENT_SUCCESS"
)

// Environment selects the PhonePe host.
type Environment string

const (
	Production Environment = "production"
	Preprod    Environment = "preprod"
)

// Endpoints returns the pay and status base URLs of env.
func (env Environment) Endpoints() (pay, status string) {
	if env == Production {
		return "https://api.phonepe.com/apis/hermes" + payPath,
			"https://api.phonepe.com/apis/hermes" + statusPath
	}
	return "https://api-preprod.phonepe.com/apis/hermes" + payPath,
		"https://api-preprod.phonepe.com/apis/pg-sandbox" + statusPath
}

// Credentials identify the merchant and sign requests.
type Credentials struct {
	MerchantID string
	SaltKey    string
	SaltIndex  string
}

// Complete reports whether every credential is set.
func (c Credentials) Complete() bool {
	return c.MerchantID != "" && c.SaltKey != "" && c.SaltIndex != ""
}

// Merge fills empty fields of c from other.
func (c Credentials) Merge(other Credentials) Credentials {
	if c.MerchantID == "" {
		c.MerchantID = other.MerchantID
	}
	if c.SaltKey == "" {
		c.SaltKey = other.SaltKey
	}
	if c.SaltIndex == "" {
		c.SaltIndex = other.SaltIndex
	}
	return c
}

// Options configures a Client.
type Options struct {
	Environment Environment
	// PayURL and StatusURL override the environment endpoints.
	PayURL    string
	StatusURL string
	Client    *http.Client
}

// Client talks to the PhonePe PG API.
type Client struct {
	creds     Credentials
	payURL    string
	statusURL string
	http      *http.Client
}

// New creates a Client.
func New(creds Credentials, opts Options) *Client {
	creds.SaltKey = strings.TrimSpace(creds.SaltKey)
	pay, status := opts.Environment.Endpoints()
	if opts.PayURL != "" {
		pay = opts.PayURL
	}
	if opts.StatusURL != "" {
		status = opts.StatusURL
	}
	hc := opts.Client
	if hc == nil {
		hc = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{creds: creds, payURL: pay, statusURL: strings.TrimSuffix(status, "/"), http: hc}
}

// WithCredentials returns a copy of c whose empty credentials are filled from
// override. Configured credentials take precedence.
func (c *Client) WithCredentials(override Credentials) *Client {
	cp := *c
	cp.creds = c.creds.Merge(Credentials{
		MerchantID: override.MerchantID,
		SaltKey:    strings.TrimSpace(override.SaltKey),
		SaltIndex:  override.SaltIndex,
	})
	return &cp
}

// Configured reports whether all credentials are set.
func (c *Client) Configured() bool {
	return c.creds.Complete()
}

func checksum(s, saltIndex string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// PayChecksum is the X-VERIFY value of a pay request with the given
// base64 payload.
func (c *Client) PayChecksum(base64Payload string) string {
	return checksum(base64Payload+payPath+c.creds.SaltKey, c.creds.SaltIndex)
}

// StatusChecksum is the X-VERIFY value of a status query.
func (c *Client) StatusChecksum(transactionID string) string {
	return checksum(statusPath+"/"+c.creds.MerchantID+"/"+transactionID+c.creds.SaltKey, c.creds.SaltIndex)
}

// NewTransactionID returns a fresh merchant transaction id.
func NewTransactionID() string {
	return "SLT_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Initiate implements payment.Gateway.
func (c *Client) Initiate(ctx context.Context, req payment.GatewayRequest) (string, error) {
	if !c.Configured() {
		return "", errors.Wrap(payment.ErrNotConfigured, "PhonePe merchant details")
	}

	txnID := NewTransactionID()
	payload := c.encodePayload(txnID, req)
	encoded := base64.StdEncoding.EncodeToString(payload)

	var body jx.Encoder
	body.ObjStart()
	body.FieldStart("request")
	body.Str(encoded)
	body.ObjEnd()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.payURL, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-VERIFY", c.PayChecksum(encoded))

	raw, status, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "decode pay response (status %d)", status)
	}
	if !resp.Success || resp.RedirectURL == "" {
		msg := resp.Message
		if msg == "" {
			msg = "Payment initialization failed"
		}
		return "", &payment.GatewayError{
			Provider: payment.ProviderPhonePe,
			Code:     resp.Code,
			Status:   status,
			Message:  msg,
		}
	}
	return resp.RedirectURL, nil
}

func (c *Client) encodePayload(txnID string, req payment.GatewayRequest) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("merchantId")
	e.Str(c.creds.MerchantID)
	e.FieldStart("merchantTransactionId")
	e.Str(txnID)
	e.FieldStart("merchantUserId")
	e.Str("SLTU_" + strings.ReplaceAll(req.OrderID, "-", ""))
	e.FieldStart("amount")
	e.Int64(req.Amount.Shift(2).Round(0).IntPart())
	e.FieldStart("redirectUrl")
	e.Str(req.RedirectURL)
	e.FieldStart("redirectMode")
	e.Str("POST")
	e.FieldStart("callbackUrl")
	e.Str(req.CallbackURL)
	e.FieldStart("merchantOrderId")
	e.Str(req.OrderID)
	e.FieldStart("paymentInstrument")
	e.ObjStart()
	e.FieldStart("type")
	e.Str("PAY_PAGE")
	e.ObjEnd()
	e.FieldStart("orderContext")
	e.ObjStart()
	e.FieldStart("orderDetails")
	e.ObjStart()
	e.FieldStart("itemName")
	e.Str(req.Item)
	e.FieldStart("itemQuantity")
	e.Int(1)
	e.ObjEnd()
	e.FieldStart("customerDetails")
	e.ObjStart()
	e.FieldStart("firstName")
	e.Str(req.Billing.FirstName)
	e.FieldStart("lastName")
	e.Str(req.Billing.LastName)
	e.FieldStart("email")
	e.Str(req.Billing.Email)
	e.FieldStart("phone")
	e.Str(req.Billing.Phone)
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

// StatusResult is the outcome of a status query.
type StatusResult struct {
	Success bool
	Code    string
	Message string
}

// Paid reports whether the provider confirmed the payment.
func (r StatusResult) Paid() bool {
	return r.Success && r.Code == CodePaymentSuccess
}

// Status queries the state of a transaction.
func (c *Client) Status(ctx context.Context, transactionID string) (StatusResult, error) {
	if !c.Configured() {
		return StatusResult{}, errors.Wrap(payment.ErrNotConfigured, "PhonePe merchant details")
	}
	if transactionID == "" {
		return StatusResult{}, errors.New("transaction id is required")
	}

	u := c.statusURL + "/" + c.creds.MerchantID + "/" + transactionID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return StatusResult{}, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", c.StatusChecksum(transactionID))
	httpReq.Header.Set("X-MERCHANT-ID", c.creds.MerchantID)

	raw, status, err := c.do(httpReq)
	if err != nil {
		return StatusResult{}, err
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return StatusResult{}, errors.Wrapf(err, "decode status response (status %d)", status)
	}
	return StatusResult{Success: resp.Success, Code: resp.Code, Message: resp.Message}, nil
}

// do sends req and returns the body. Non-2xx responses are errors unless the
// body is a PhonePe envelope, which carries its own failure code.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read response")
	}
	if resp.StatusCode/100 != 2 && !jx.Valid(raw) {
		return nil, resp.StatusCode, errors.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, resp.StatusCode, nil
}

type apiResponse struct {
	Success     bool
	Code        string
	Message     string
	RedirectURL string
}

func decodeResponse(raw []byte) (apiResponse, error) {
	var r apiResponse
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			v, err := d.Bool()
			r.Success = v
			return err
		case "code":
			v, err := d.Str()
			r.Code = v
			return err
		case "message":
			v, err := d.Str()
			r.Message = v
			return err
		case "data":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "instrumentResponse" || d.Next() != jx.Object {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "redirectInfo" || d.Next() != jx.Object {
						return d.Skip()
					}
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key != "url" {
							return d.Skip()
						}
						v, err := d.Str()
						r.RedirectURL = v
						return err
					})
				})
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return apiResponse{}, err
	}
	return r, nil
}
