package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		fallback string
		want     string
	}{
		{
			name:    "first forwarded entry wins",
			headers: map[string]string{HeaderForwardedFor: " 203.0.113.7 , 10.0.0.1, 10.0.0.2", HeaderRealIP: "198.51.100.1"},
			want:    "203.0.113.7",
		},
		{
			name:    "real ip when no forwarded header",
			headers: map[string]string{HeaderRealIP: "198.51.100.1"},
			want:    "198.51.100.1",
		},
		{
			name:     "socket address with port",
			fallback: "192.0.2.10:53211",
			want:     "192.0.2.10",
		},
		{
			name:     "bracketed ipv6 socket address",
			fallback: "[2001:db8::5]:443",
			want:     "2001:db8::5",
		},
		{
			name:     "socket address without port",
			fallback: "192.0.2.11",
			want:     "192.0.2.11",
		},
		{
			name:    "mapped ipv4 prefix stripped",
			headers: map[string]string{HeaderForwardedFor: "::ffff:1.2.3.4"},
			want:    "1.2.3.4",
		},
		{
			name:     "ipv6 loopback",
			fallback: "[::1]:8080",
			want:     Localhost,
		},
		{
			name:    "ipv4 loopback",
			headers: map[string]string{HeaderRealIP: "127.0.0.1"},
			want:    Localhost,
		},
		{
			name:     "mapped loopback",
			fallback: "::ffff:127.0.0.1",
			want:     Localhost,
		},
		{
			name: "nothing available",
			want: Localhost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}
			assert.Equal(t, tt.want, Resolve(headers, tt.fallback))
		})
	}
}

func TestResolveNilHeaders(t *testing.T) {
	assert.Equal(t, "192.0.2.1", Resolve(nil, "192.0.2.1:80"))
}

func TestFromRequestIgnoresHeadersWhenUntrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/blacklist", nil)
	req.RemoteAddr = "192.0.2.44:1234"
	req.Header.Set(HeaderForwardedFor, "203.0.113.9")

	assert.Equal(t, "203.0.113.9", FromRequest(req, true))
	assert.Equal(t, "192.0.2.44", FromRequest(req, false))
	assert.Equal(t, Localhost, FromRequest(nil, true))
}
