package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client's IP address from the request.
// It checks X-Forwarded-For, X-Real-IP, and finally RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// HeaderIdentifier identifies callers by the value of header, falling back
// to ClientIP when it is absent.
func HeaderIdentifier(header string) func(*http.Request) string {
	if header == "" {
		return ClientIP
	}
	return func(r *http.Request) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return ClientIP(r)
	}
}
