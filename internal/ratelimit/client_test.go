package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"single forwarded", "203.0.113.8", "", "10.0.0.2:1234", "203.0.113.8"},
		{"real ip", "", "198.51.100.4", "10.0.0.2:1234", "198.51.100.4"},
		{"peer address", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 peer", "", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"blank forwarded falls through", " , 1.1.1.1", "", "192.0.2.9:80", "192.0.2.9"},
		{"bare peer", "", "", "192.0.2.10", "192.0.2.10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			assert.Equal(t, tc.want, ClientKey(req))
		})
	}

	assert.Equal(t, "unknown", ClientKey(nil))
}
