package ipapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Country(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		status  int
		body    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "india", ip: "49.36.0.1", status: 200, body: `{"ip":"49.36.0.1","country_code":"IN","currency":"INR"}`, path: "/49.36.0.1/json/", want: "IN"},
		{name: "own address", status: 200, body: `{"country_code":"us"}`, path: "/json/", want: "US"},
		{name: "rate limited", ip: "1.1.1.1", status: 429, body: `{}`, path: "/1.1.1.1/json/", wantErr: true},
		{name: "reserved address", ip: "10.0.0.1", status: 200, body: `{"error":true,"reason":"Reserved IP Address"}`, path: "/10.0.0.1/json/", wantErr: true},
		{name: "malformed", ip: "8.8.8.8", status: 200, body: `not json`, path: "/8.8.8.8/json/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := New(srv.URL, srv.Client()).Country(context.Background(), tt.ip)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
