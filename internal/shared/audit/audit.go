// Package audit records mutating service calls to an append-only sink.
package audit

import (
	"context"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const (
	actorKey     ctxKey = "audit_actor"
	requestIDKey ctxKey = "audit_request_id"
)

// Actions written to the log.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionRead     = "READ"
	ActionLogin    = "LOGIN"
	ActionUpload   = "UPLOAD"
	ActionPassword = "PASSWORD_CHANGE"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// SystemActor is used when no authenticated user is attached to the context.
const SystemActor = "system"

// WithActor attaches the authenticated username to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the username attached to ctx, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(actorKey).(string); ok {
			return v
		}
	}
	return SystemActor
}

// WithRequestID attaches the request identifier to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(requestIDKey).(string); ok {
			return v
		}
	}
	return ""
}

// Entry is one audited operation.
type Entry struct {
	EntityName  string
	EntityID    *int64
	Action      string
	Method      string
	Actor       string
	RequestID   string
	Parameters  any
	Before      any
	After       any
	Status      string
	ErrorDetail string
	Duration    time.Duration
	Timestamp   time.Time
}

// Sink persists entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// Recorder completes entries and hands them to the sink. Sink failures are
// logged and never returned to the caller.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record fills the context-derived fields of e, sets the outcome from opErr and
// writes it. The write uses a context that is not cancelled with the request.
func (r *Recorder) Record(ctx context.Context, e Entry, start time.Time, opErr error) {
	if r == nil || r.sink == nil {
		return
	}
	e.Actor = ActorFromContext(ctx)
	e.RequestID = RequestIDFromContext(ctx)
	e.Timestamp = time.Now()
	e.Duration = e.Timestamp.Sub(start)
	e.Status = StatusSuccess
	if opErr != nil {
		e.Status = StatusFailure
		e.ErrorDetail = opErr.Error()
	}
	if e.EntityID == nil {
		e.EntityID = IDOf(e.After)
	}
	if e.EntityID == nil {
		e.EntityID = IDOf(e.Before)
	}

	if err := r.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Error("Failed to write audit log",
			zap.String("entity", e.EntityName),
			zap.String("action", e.Action),
			zap.String("actor", e.Actor),
			zap.Error(err),
		)
	}
}

// IDOf reads the int64 ID field of a struct or pointer to struct.
func IDOf(v any) *int64 {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	f := rv.FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.Int64 || f.Int() == 0 {
		return nil
	}
	id := f.Int()
	return &id
}
