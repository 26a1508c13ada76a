package clientip_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/pkg/clientip"
)

func TestResolver_GetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trustProxy bool
		remote     string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr with port", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote addr without port", remote: "10.0.0.2", want: "10.0.0.2"},
		{name: "ipv6", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{
			name:    "forwarded headers ignored when proxy untrusted",
			remote:  "10.0.0.1:1",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:    "10.0.0.1",
		},
		{
			name:       "forwarded for picks first valid",
			trustProxy: true,
			remote:     "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 1.2.3.4, 5.6.7.8"},
			want:       "1.2.3.4",
		},
		{
			name:       "cloudflare header wins",
			trustProxy: true,
			remote:     "10.0.0.1:1",
			headers:    map[string]string{"CF-Connecting-IP": "9.9.9.9", "X-Forwarded-For": "1.2.3.4"},
			want:       "9.9.9.9",
		},
		{name: "unparseable", remote: "nope", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.New(tt.trustProxy).GetIP(r))
		})
	}
}

func TestResolver_Middleware(t *testing.T) {
	t.Parallel()

	var got string
	h := clientip.New(false).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clientip.FromRequest(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.10:4000"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.168.1.10", got)
}
