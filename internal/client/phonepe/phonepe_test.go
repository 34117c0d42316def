package phonepe

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlighttrader/storefront/internal/domain/billing"
	"github.com/starlighttrader/storefront/internal/domain/payment"
)

var testCreds = Credentials{MerchantID: "PGTESTPAYUAT", SaltKey: "099eb0cd-02cf-4e2a-8aca-3e6c6aff0399", SaltIndex: "1"}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestChecksums(t *testing.T) {
	c := New(testCreds, Options{})

	assert.Equal(t, sha("eyJhIjoxfQ==/pg/v1/pay"+testCreds.SaltKey)+"###1", c.PayChecksum("eyJhIjoxfQ=="))
	assert.Equal(t, sha("/pg/v1/status/PGTESTPAYUAT/SLT_1"+testCreds.SaltKey)+"###1", c.StatusChecksum("SLT_1"))
}

func TestEnvironment_Endpoints(t *testing.T) {
	pay, status := Production.Endpoints()
	assert.Equal(t, "https://api.phonepe.com/apis/hermes/pg/v1/pay", pay)
	assert.Equal(t, "https://api.phonepe.com/apis/hermes/pg/v1/status", status)

	pay, status = Preprod.Endpoints()
	assert.Equal(t, "https://api-preprod.phonepe.com/apis/hermes/pg/v1/pay", pay)
	assert.Equal(t, "https://api-preprod.phonepe.com/apis/pg-sandbox/pg/v1/status", status)
}

func TestClient_Initiate(t *testing.T) {
	var gotPayload map[string]string
	var gotAmount int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var encoded string
		require.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			v, err := d.Str()
			encoded = v
			return err
		}))
		assert.Equal(t, sha(encoded+"/pg/v1/pay"+testCreds.SaltKey)+"###1", r.Header.Get("X-VERIFY"))

		payload, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		gotPayload = map[string]string{}
		require.NoError(t, jx.DecodeBytes(payload).Obj(func(d *jx.Decoder, key string) error {
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				gotPayload[key] = v
				return err
			case jx.Number:
				v, err := d.Int64()
				gotAmount = v
				return err
			default:
				return d.Skip()
			}
		}))

		_, _ = io.WriteString(w, `{"success":true,"code":"PAYMENT_INITIATED","data":{"merchantId":"PGTESTPAYUAT","instrumentResponse":{"type":"PAY_PAGE","redirectInfo":{"url":"https://mercury.phonepe.com/transact/abc","method":"GET"}}}}`)
	}))
	defer srv.Close()

	c := New(testCreds, Options{PayURL: srv.URL, Client: srv.Client()})
	got, err := c.Initiate(context.Background(), payment.GatewayRequest{
		OrderID:     "SLTPRO-161026-1430",
		Item:        "StarLightTrader Pro",
		Amount:      decimal.RequireFromString("599.5"),
		Billing:     billing.Details{FirstName: "Asha", Email: "asha@example.com"},
		RedirectURL: "https://shop.example/api/phonepe/callback",
		CallbackURL: "https://shop.example/api/phonepe/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://mercury.phonepe.com/transact/abc", got)
	assert.Equal(t, int64(59950), gotAmount)
	assert.Equal(t, "PGTESTPAYUAT", gotPayload["merchantId"])
	assert.Equal(t, "POST", gotPayload["redirectMode"])
	assert.True(t, strings.HasPrefix(gotPayload["merchantTransactionId"], "SLT_"))
	assert.Equal(t, "https://shop.example/api/phonepe/callback", gotPayload["callbackUrl"])
}

func TestClient_InitiateFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "unsuccessful envelope", status: http.StatusBadRequest, body: `{"success":false,"code":"BAD_REQUEST","message":"Please check the inputs you have provided."}`, wantErr: "Please check the inputs"},
		{name: "html error page", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantErr: "unexpected status 502"},
		{name: "success without url", status: http.StatusOK, body: `{"success":true}`, wantErr: "Payment initialization failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(testCreds, Options{PayURL: srv.URL, Client: srv.Client()})
			_, err := c.Initiate(context.Background(), payment.GatewayRequest{Amount: decimal.NewFromInt(1)})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("provider message is typed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"success":false,"code":"BAD_REQUEST","message":"Amount is invalid"}`)
		}))
		defer srv.Close()

		c := New(testCreds, Options{PayURL: srv.URL, Client: srv.Client()})
		_, err := c.Initiate(context.Background(), payment.GatewayRequest{Amount: decimal.NewFromInt(1)})

		var gwErr *payment.GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "Amount is invalid", gwErr.Message)
		assert.Equal(t, "BAD_REQUEST", gwErr.Code)
		assert.Equal(t, http.StatusBadRequest, gwErr.Status)
	})
}

func TestClient_NotConfigured(t *testing.T) {
	c := New(Credentials{MerchantID: "M"}, Options{})

	_, err := c.Initiate(context.Background(), payment.GatewayRequest{})
	require.ErrorIs(t, err, payment.ErrNotConfigured)

	_, err = c.Status(context.Background(), "SLT_1")
	require.ErrorIs(t, err, payment.ErrNotConfigured)

	filled := c.WithCredentials(Credentials{MerchantID: "OTHER", SaltKey: " key ", SaltIndex: "2"})
	assert.True(t, filled.Configured())
	assert.False(t, c.Configured(), "original client is unchanged")
	assert.Equal(t, "M", filled.creds.MerchantID, "configured values take precedence")
	assert.Equal(t, "key", filled.creds.SaltKey)
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantPaid bool
	}{
		{name: "paid", body: `{"success":true,"code":"PAYMENT_SUCCESS","message":"Your payment is successful."}`, wantPaid: true},
		{name: "pending", body: `{"success":true,"code":"PAYMENT_PENDING"}`},
		{name: "failed", body: `{"success":false,"code":"PAYMENT_ERROR"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/status/PGTESTPAYUAT/SLT_42", r.URL.Path)
				assert.Equal(t, "PGTESTPAYUAT", r.Header.Get("X-MERCHANT-ID"))
				assert.Equal(t, sha("/pg/v1/status/PGTESTPAYUAT/SLT_42"+testCreds.SaltKey)+"###1", r.Header.Get("X-VERIFY"))
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(testCreds, Options{StatusURL: srv.URL + "/status/", Client: srv.Client()})
			got, err := c.Status(context.Background(), "SLT_42")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, got.Paid())
		})
	}
}
