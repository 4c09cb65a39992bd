package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"learn.windowlimiter/middleware"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "ForwardedFor", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remoteAddr: "10.0.0.1:80", want: "203.0.113.7"},
		{name: "RealIP", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remoteAddr: "10.0.0.1:80", want: "198.51.100.2"},
		{name: "RemoteAddr", remoteAddr: "192.0.2.1:4321", want: "192.0.2.1"},
		{name: "RemoteAddrWithoutPort", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{name: "EmptyForwardedFor", headers: map[string]string{"X-Forwarded-For": " "}, remoteAddr: "192.0.2.9:1", want: "192.0.2.9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := middleware.ClientIP(req); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHeaderIdentifier(t *testing.T) {
	id := middleware.HeaderIdentifier("X-User")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1"
	req.Header.Set("X-User", "bob")
	if got := id(req); got != "bob" {
		t.Errorf("HeaderIdentifier = %q, want bob", got)
	}

	req.Header.Del("X-User")
	if got := id(req); got != "192.0.2.1" {
		t.Errorf("HeaderIdentifier fallback = %q, want 192.0.2.1", got)
	}

	if got := middleware.HeaderIdentifier("")(req); got != "192.0.2.1" {
		t.Errorf("HeaderIdentifier(\"\") = %q, want 192.0.2.1", got)
	}
}
