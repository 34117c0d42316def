package exchangerate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Rate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    decimal.Decimal
		wantErr bool
	}{
		{
			name:   "usd rate",
			status: 200,
			body:   `{"base":"INR","date":"2026-10-16","rates":{"INR":1,"EUR":0.0108,"USD":0.0117}}`,
			want:   decimal.RequireFromString("0.0117"),
		},
		{name: "missing target", status: 200, body: `{"rates":{"EUR":0.0108}}`, wantErr: true},
		{name: "server error", status: 500, body: `oops`, wantErr: true},
		{name: "rate not a number", status: 200, body: `{"rates":{"USD":true}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := New(srv.URL, "usd", srv.Client()).Rate(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}
