package ipgate

import (
	"net"
	"net/http"
	"strings"

	"gallery/internal/logging"
)

// Gate admits only requests coming from a single allow-listed IP. The zero
// value, or a Gate built from an empty IP, admits everything.
type Gate struct {
	allowed string
}

func New(allowedIP string) Gate {
	return Gate{allowed: strings.TrimSpace(allowedIP)}
}

func (g Gate) Enabled() bool {
	return g.allowed != ""
}

// Allows reports whether a request with the given client IP may proceed.
func (g Gate) Allows(clientIP string) bool {
	return !g.Enabled() || clientIP == g.allowed
}

// Wrap applies the gate in front of next.
// - disabled: next is returned unchanged
// - enabled: requests from any other IP get 403 before next runs
func (g Gate) Wrap(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !g.Allows(ip) {
			logging.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("forbidden access attempt")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller's address: the left-most X-Forwarded-For
// entry when that header is present, otherwise the peer host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return peerHost(r.RemoteAddr)
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
