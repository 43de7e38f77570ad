// Package httputil holds small HTTP request helpers shared by the
// gateway's middleware and handlers.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address for request logs and
// span attributes. Proxy headers win over the socket peer: the first
// entry of X-Forwarded-For, then X-Real-IP, then RemoteAddr with its
// port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
