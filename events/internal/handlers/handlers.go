// Package handlers exposes the acknowledgement coordinator over HTTP.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/httputil"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/service"
)

const maxBodyBytes = 1 << 20

// Service is the coordinator surface used by the handlers.
type Service interface {
	AcknowledgeRange(ctx context.Context, req *models.AckRequest) (*models.AckResponse, error)
	UnacknowledgeRange(ctx context.Context, req *models.AckRequest) (*models.UnackResponse, error)
	AcknowledgeGroup(ctx context.Context, req *models.GroupAckRequest) (*models.AckResponse, error)
	UnacknowledgeGroup(ctx context.Context, req *models.GroupAckRequest) (*models.UnackResponse, error)
	EventsByIDs(ctx context.Context, req *models.ByIDsRequest) ([]*models.Event, error)
	SearchEvents(ctx context.Context, f *models.EventFilter) (*models.EventPage, error)
	Facets(ctx context.Context, systemID string, days int) (*models.Facets, error)
	Trace(ctx context.Context, req *models.TraceRequest) ([]*models.Event, error)
}

// Pinger reports database reachability for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wires HTTP routes to the coordinator.
type Handler struct {
	svc Service
	db  Pinger
}

// New creates a Handler. db may be nil, in which case /readyz always succeeds.
func New(svc Service, db Pinger) *Handler {
	return &Handler{svc: svc, db: db}
}

// Acknowledge handles POST /acknowledge.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.AckRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.AcknowledgeRange(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, "acknowledge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Unacknowledge handles POST /unacknowledge.
func (h *Handler) Unacknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.AckRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.UnacknowledgeRange(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, "unacknowledge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// AcknowledgeGroup handles POST /acknowledge-group.
func (h *Handler) AcknowledgeGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.GroupAckRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.AcknowledgeGroup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, "acknowledge_group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// UnacknowledgeGroup handles POST /unacknowledge-group.
func (h *Handler) UnacknowledgeGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.GroupAckRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.UnacknowledgeGroup(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, "unacknowledge_group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ByIDs handles POST /by-ids.
func (h *Handler) ByIDs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.ByIDsRequest
	if !decode(w, r, &req) {
		return
	}
	events, err := h.svc.EventsByIDs(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, "by_ids", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, "search", err)
		return
	}
	page, err := h.svc.SearchEvents(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, "search", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// Facets handles GET /facets.
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	days, err := intParam(q.Get("days"), "days")
	if err != nil {
		writeServiceError(w, r, "facets", err)
		return
	}
	facets, err := h.svc.Facets(r.Context(), strings.TrimSpace(q.Get("system_id")), days)
	if err != nil {
		writeServiceError(w, r, "facets", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, facets)
}

// Trace handles GET /trace.
func (h *Handler) Trace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	req, err := parseTrace(r)
	if err != nil {
		writeServiceError(w, r, "trace", err)
		return
	}
	events, err := h.svc.Trace(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "trace", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", logging.Error(err))
			httputil.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(w, r, maxBodyBytes, v); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	httputil.WriteError(w, http.StatusMethodNotAllowed, "method is not allowed")
}

// writeServiceError maps coordinator errors onto status codes. Only primary
// failures become a 500; their cause is logged, not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteFieldError(w, http.StatusBadRequest, verr.Field, verr.Message)
	case errors.Is(err, service.ErrValidation):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSystemNotFound):
		httputil.WriteError(w, http.StatusNotFound, "system not found")
	default:
		slog.ErrorContext(r.Context(), "request failed", logging.Operation(op), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
