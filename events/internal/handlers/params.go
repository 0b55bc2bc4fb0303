package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/models"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/service"
)

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &service.ValidationError{Field: field, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func timeParam(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, ok := service.ParseTimestamp(raw)
	if !ok {
		return nil, &service.ValidationError{Field: field, Message: "invalid timestamp " + strconv.Quote(raw)}
	}
	return &t, nil
}

func parseFilter(r *http.Request) (*models.EventFilter, error) {
	q := r.URL.Query()
	f := &models.EventFilter{
		SystemID: strings.TrimSpace(q.Get("system_id")),
		Query:    q.Get("q"),
		Severity: q.Get("severity"),
		Host:     q.Get("host"),
		Program:  q.Get("program"),
	}

	var err error
	if f.From, err = timeParam(q.Get("from"), "from"); err != nil {
		return nil, err
	}
	if f.To, err = timeParam(q.Get("to"), "to"); err != nil {
		return nil, err
	}
	if f.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return nil, err
	}
	if f.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return nil, err
	}

	if raw := q.Get("acknowledged"); raw != "" {
		ack, perr := strconv.ParseBool(raw)
		if perr != nil {
			return nil, &service.ValidationError{Field: "acknowledged", Message: "must be true or false"}
		}
		f.Acknowledged = &ack
	}

	switch strings.ToLower(q.Get("sort")) {
	case "", "desc":
		f.SortDesc = true
	case "asc":
	default:
		return nil, &service.ValidationError{Field: "sort", Message: "must be asc or desc"}
	}
	return f, nil
}

func parseTrace(r *http.Request) (*models.TraceRequest, error) {
	q := r.URL.Query()
	req := &models.TraceRequest{
		Value: strings.TrimSpace(q.Get("value")),
		Field: strings.TrimSpace(q.Get("field")),
	}
	from, err := timeParam(q.Get("from"), "from")
	if err != nil {
		return nil, err
	}
	if from != nil {
		req.FromTs = *from
	}
	to, err := timeParam(q.Get("to"), "to")
	if err != nil {
		return nil, err
	}
	if to != nil {
		req.ToTs = *to
	}
	if req.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return nil, err
	}
	return req, nil
}
