package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Resolver extracts the client address used for rate limiting and logging.
// Forwarding headers are only honoured when TrustProxy is set, since any
// client can send them.
type Resolver struct {
	TrustProxy bool
}

// IP returns the client IP of r.
func (res Resolver) IP(r *http.Request) string {
	if res.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
