// Package server assembles the HTTP routes of the events service.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/middleware"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/auth"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/handlers"
)

// DefaultBasePath prefixes every API route.
const DefaultBasePath = "/api/events"

// Options configures the router.
type Options struct {
	BasePath    string
	CORSOrigins []string
	// Validator enables bearer authentication on API routes when non-nil.
	Validator *auth.Validator
	Logger    *slog.Logger
}

// NewRouter constructs a ServeMux with the events API, probes and metrics.
// Probes and /metrics are served outside the base path without auth.
func NewRouter(h *handlers.Handler, opts Options) http.Handler {
	base := strings.TrimRight(opts.BasePath, "/")
	if base == "" {
		base = DefaultBasePath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := http.NewServeMux()
	api.HandleFunc(base+"/acknowledge", h.Acknowledge)
	api.HandleFunc(base+"/unacknowledge", h.Unacknowledge)
	api.HandleFunc(base+"/acknowledge-group", h.AcknowledgeGroup)
	api.HandleFunc(base+"/unacknowledge-group", h.UnacknowledgeGroup)
	api.HandleFunc(base+"/by-ids", h.ByIDs)
	api.HandleFunc(base+"/search", h.Search)
	api.HandleFunc(base+"/facets", h.Facets)
	api.HandleFunc(base+"/trace", h.Trace)

	mux := http.NewServeMux()
	mux.Handle(base+"/", auth.Middleware(opts.Validator)(api))
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = middleware.CORS(opts.CORSOrigins)(handler)
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.RequestID(handler)
	return handler
}
