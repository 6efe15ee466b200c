package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// HSTS sets Strict-Transport-Security on every response.
func HSTS(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("max-age=%d", int(maxAge/time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Strict-Transport-Security", value)
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectHTTPS sends plain-HTTP requests to the same URL over HTTPS with a
// 307, preserving method and body. httpsPort 0 or 443 leaves the port off.
// Requests that arrived through a TLS-terminating proxy are recognised by
// X-Forwarded-Proto.
func RedirectHTTPS(httpsPort int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHTTPS(r) {
				next.ServeHTTP(w, r)
				return
			}

			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if httpsPort != 0 && httpsPort != 443 {
				host = fmt.Sprintf("%s:%d", host, httpsPort)
			}
			target := "https://" + host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
