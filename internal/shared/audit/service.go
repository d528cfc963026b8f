package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitfantasy/procurement/internal/shared/crud"
)

type auditedService[D any] struct {
	next   crud.Service[D]
	entity string
	rec    *Recorder
	redact []string
}

// Option configures Wrap.
type Option func(*wrapOptions)

type wrapOptions struct {
	redact []string
}

// Redact drops the named top-level JSON keys from recorded parameters.
func Redact(keys ...string) Option {
	return func(o *wrapOptions) {
		o.redact = append(o.redact, keys...)
	}
}

// Wrap returns a crud.Service that records every mutation of next.
// Reads pass through unrecorded.
func Wrap[D any](next crud.Service[D], entity string, rec *Recorder, opts ...Option) crud.Service[D] {
	if rec == nil {
		return next
	}
	var o wrapOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &auditedService[D]{next: next, entity: entity, rec: rec, redact: o.redact}
}

// params snapshots v as a JSON object without the redacted keys. Bodies that
// are not JSON objects are dropped when redaction is configured.
func (s *auditedService[D]) params(v any) any {
	if len(s.redact) == 0 || v == nil {
		return v
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		raw = b
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil
	}
	for _, k := range s.redact {
		delete(m, k)
	}
	return m
}

func (s *auditedService[D]) Create(ctx context.Context, dto *D) (*D, error) {
	start := time.Now()
	params := s.params(dto)
	out, err := s.next.Create(ctx, dto)
	s.rec.Record(ctx, Entry{
		EntityName: s.entity,
		Action:     ActionCreate,
		Method:     "Create",
		Parameters: params,
		After:      out,
	}, start, err)
	return out, err
}

func (s *auditedService[D]) Update(ctx context.Context, id int64, dto *D) (*D, error) {
	start := time.Now()
	before, _ := s.next.Get(ctx, id)
	params := s.params(dto)
	out, err := s.next.Update(ctx, id, dto)
	s.rec.Record(ctx, Entry{
		EntityName: s.entity,
		EntityID:   &id,
		Action:     ActionUpdate,
		Method:     "Update",
		Parameters: params,
		Before:     before,
		After:      out,
	}, start, err)
	return out, err
}

func (s *auditedService[D]) Patch(ctx context.Context, id int64, patch json.RawMessage) (*D, error) {
	start := time.Now()
	before, _ := s.next.Get(ctx, id)
	out, err := s.next.Patch(ctx, id, patch)
	s.rec.Record(ctx, Entry{
		EntityName: s.entity,
		EntityID:   &id,
		Action:     ActionUpdate,
		Method:     "Patch",
		Parameters: s.params(patch),
		Before:     before,
		After:      out,
	}, start, err)
	return out, err
}

func (s *auditedService[D]) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	before, _ := s.next.Get(ctx, id)
	err := s.next.Delete(ctx, id)
	s.rec.Record(ctx, Entry{
		EntityName: s.entity,
		EntityID:   &id,
		Action:     ActionDelete,
		Method:     "Delete",
		Before:     before,
	}, start, err)
	return err
}

func (s *auditedService[D]) Get(ctx context.Context, id int64) (*D, error) {
	return s.next.Get(ctx, id)
}

func (s *auditedService[D]) GetWithRelations(ctx context.Context, id int64) (*D, error) {
	return s.next.GetWithRelations(ctx, id)
}

func (s *auditedService[D]) List(ctx context.Context, p crud.Pageable) (*crud.Page[D], error) {
	return s.next.List(ctx, p)
}

func (s *auditedService[D]) Search(ctx context.Context, query string, p crud.Pageable) (*crud.Page[D], error) {
	return s.next.Search(ctx, query, p)
}
