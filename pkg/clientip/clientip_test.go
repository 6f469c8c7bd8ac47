package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_IP(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", false, "203.0.113.7:5123", nil, "203.0.113.7"},
		{"remote addr without port", false, "203.0.113.7", nil, "203.0.113.7"},
		{"untrusted header ignored", false, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.2"}, "10.0.0.1"},
		{"first forwarded hop", true, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"}, "198.51.100.2"},
		{"real ip header", true, "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.3"}, "198.51.100.3"},
		{"garbage header", true, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, Resolver{TrustProxy: tt.trust}.IP(r))
		})
	}
}
