package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP_IgnoresForwardingHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:80", "10.0.0.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:80", "10.0.0.2"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))

			var none *TrustedProxies
			assert.Equal(t, tt.want, none.ClientIP(req))
		})
	}
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer ignores headers", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "198.51.100.3:80", "198.51.100.3"},
		{"trusted peer single hop", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "10.0.0.2:80", "203.0.113.1"},
		{"spoofed left hop skipped", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.1, 10.0.0.9"}, "10.0.0.2:80", "203.0.113.1"},
		{"all hops trusted", map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.9"}, "192.0.2.1:80", "10.1.1.1"},
		{"garbage hop", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.2:80", "10.0.0.2"},
		{"real ip from trusted peer", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:80", "198.51.100.7"},
		{"no headers", nil, "10.0.0.2:80", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)

	tp, err := ParseTrustedProxies([]string{"::1", "fd00::/8"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:443"
	req.Header.Set("X-Forwarded-For", "2001:db8::5")
	assert.Equal(t, "2001:db8::5", tp.ClientIP(req))
}
