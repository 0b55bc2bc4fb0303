package httputil

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// AnonymousActor is recorded when no authenticated identity is available.
const AnonymousActor = "anonymous"

// RequestContext carries who made a request and from where. It feeds audit records.
type RequestContext struct {
	Actor     string
	IP        net.IP
	UserAgent string
}

type requestContextKey struct{}

// NewRequestContext builds a RequestContext for r with an anonymous actor.
func NewRequestContext(r *http.Request) *RequestContext {
	ipStr := GetClientIP(r)
	if host, _, err := net.SplitHostPort(ipStr); err == nil {
		ipStr = host
	}
	return &RequestContext{
		Actor:     AnonymousActor,
		IP:        net.ParseIP(ipStr),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// WithRequestContext adds rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext returns the RequestContext stored in ctx, or nil.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}

// ActorFromContext returns the actor name stored in ctx, or AnonymousActor.
func ActorFromContext(ctx context.Context) string {
	if rc := GetRequestContext(ctx); rc != nil && rc.Actor != "" {
		return rc.Actor
	}
	return AnonymousActor
}

// IPString returns the client IP, or "" when unknown.
func (rc *RequestContext) IPString() string {
	if rc == nil || rc.IP == nil {
		return ""
	}
	return rc.IP.String()
}

// GetClientIP extracts the client address, preferring the first
// X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
