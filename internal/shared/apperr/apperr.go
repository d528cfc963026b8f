// Package apperr defines the closed set of application errors raised by
// services and the single table translating them into HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindValidation      Kind = "VALIDATION_FAILED"
	KindConflict        Kind = "CONFLICT"
	KindRelationMissing Kind = "RELATION_MISSING"
	KindDependentsExist Kind = "DEPENDENTS_EXIST"
	KindBusinessRule    Kind = "BUSINESS_RULE"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindInternal        Kind = "INTERNAL_ERROR"
)

var statusByKind = map[Kind]int{
	KindNotFound:        http.StatusNotFound,
	KindValidation:      http.StatusBadRequest,
	KindConflict:        http.StatusBadRequest,
	KindRelationMissing: http.StatusBadRequest,
	KindDependentsExist: http.StatusBadRequest,
	KindBusinessRule:    http.StatusBadRequest,
	KindUnauthorized:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindRateLimited:     http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
}

// Error is the structured error carried from services to the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Entity  string
	Field   string
	Value   any
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrRelationMissing = &Error{Kind: KindRelationMissing}
	ErrDependentsExist = &Error{Kind: KindDependentsExist}
	ErrBusinessRule    = &Error{Kind: KindBusinessRule}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
)

// NotFound reports a missing row of entity looked up by id.
func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found with id %v", entity, id),
		Entity:  entity,
		Field:   "id",
		Value:   id,
	}
}

// Conflict reports a duplicate natural key.
func Conflict(entity, field string, value any) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("%s with %s '%v' already exists", entity, field, value),
		Entity:  entity,
		Field:   field,
		Value:   value,
	}
}

// RelationMissing reports a foreign key id with no matching row.
func RelationMissing(field, entity string, id any) *Error {
	return &Error{
		Kind:    KindRelationMissing,
		Message: fmt.Sprintf("%s not found with id %v (%s)", entity, id, field),
		Entity:  entity,
		Field:   field,
		Value:   id,
	}
}

// DependentsExist reports a delete refused because dependent rows reference the entity.
func DependentsExist(entity string, id any, dependent string, count int64) *Error {
	return &Error{
		Kind:    KindDependentsExist,
		Message: fmt.Sprintf("cannot delete %s %v: %d %s still reference it", entity, id, count, dependent),
		Entity:  entity,
		Field:   dependent,
		Value:   id,
	}
}

// Validation reports per-field violations.
func Validation(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// BusinessRule reports a violated domain rule that is not one of the specific kinds.
func BusinessRule(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// RateLimited rejects a client that exceeded its request budget.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Status maps err to its HTTP status code.
func Status(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
