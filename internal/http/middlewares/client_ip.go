package middlewares

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the requester address: leftmost X-Forwarded-For entry
// when present, else the connection peer with the port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
