// Package clientip determines the network address a request originates from.
// Sessions are bound to this address at sign-in.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// proxyHeaders are consulted in order when the service runs behind a trusted proxy.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// Resolver extracts the client address from a request.
type Resolver struct {
	trustProxy bool
}

// New returns a Resolver. Forwarding headers are only honoured when
// trustProxy is set; otherwise any client could spoof its address.
func New(trustProxy bool) Resolver {
	return Resolver{trustProxy: trustProxy}
}

// GetIP returns the normalised client IP, or an empty string when none can be parsed.
func (res Resolver) GetIP(r *http.Request) string {
	if res.trustProxy {
		for _, h := range proxyHeaders {
			if ip := parseIP(r.Header.Get(h)); ip != "" {
				return ip
			}
		}
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			for ip := range strings.SplitSeq(forwarded, ",") {
				if parsed := parseIP(ip); parsed != "" {
					return parsed
				}
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// Middleware stores the resolved address in the request context.
func (res Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithContext(r.Context(), res.GetIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

type contextKey struct{}

func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the address stored by Middleware.
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// FromRequest prefers the address stored by Middleware and falls back to the
// peer address of the connection.
func FromRequest(r *http.Request) string {
	if ip := FromContext(r.Context()); ip != "" {
		return ip
	}
	return New(false).GetIP(r)
}
