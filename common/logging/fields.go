package logging

import "log/slog"

// Field names used across the event services.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldSystemID  = "system_id"
	FieldOperation = "operation"
	FieldBackend   = "backend"
	FieldCount     = "count"
	FieldWindowID  = "window_id"
	FieldFindingID = "finding_id"
	FieldActor     = "actor"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

func Service(name string) slog.Attr { return slog.String(FieldService, name) }

// SystemID returns the system attribute; an empty id is logged as "all".
func SystemID(id string) slog.Attr {
	if id == "" {
		id = "all"
	}
	return slog.String(FieldSystemID, id)
}

func Operation(op string) slog.Attr      { return slog.String(FieldOperation, op) }
func Backend(kind string) slog.Attr      { return slog.String(FieldBackend, kind) }
func Count(n int64) slog.Attr            { return slog.Int64(FieldCount, n) }
func WindowID(id string) slog.Attr       { return slog.String(FieldWindowID, id) }
func FindingID(id string) slog.Attr      { return slog.String(FieldFindingID, id) }
func Actor(name string) slog.Attr        { return slog.String(FieldActor, name) }
func Method(method string) slog.Attr     { return slog.String(FieldMethod, method) }
func Path(path string) slog.Attr         { return slog.String(FieldPath, path) }
func Status(code int) slog.Attr          { return slog.Int(FieldStatus, code) }
func Duration(ms int64) slog.Attr        { return slog.Int64(FieldDuration, ms) }

// Error returns an error attribute. A nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
