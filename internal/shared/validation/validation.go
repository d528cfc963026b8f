// Package validation collects field violations before a service touches the database.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Violations maps a JSON field name to a human readable message.
type Violations map[string]string

func New() Violations { return Violations{} }

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records msg for field unless the field already has a violation.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns a validation error, or nil when nothing was recorded.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperr.Validation(map[string]string(v))
}

func (v Violations) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, field+" is required")
	}
}

func (v Violations) MaxLen(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
}

// RequiredID rejects zero and negative foreign key ids.
func (v Violations) RequiredID(field string, id int64) {
	if id <= 0 {
		v.Add(field, field+" is required")
	}
}

// OptionalID rejects a present but non-positive foreign key id.
func (v Violations) OptionalID(field string, id *int64) {
	if id != nil && *id <= 0 {
		v.Add(field, field+" must be a positive id")
	}
}

func (v Violations) RequiredTime(field string, t *time.Time) {
	if t == nil || t.IsZero() {
		v.Add(field, field+" is required")
	}
}

func (v Violations) NonNegative(field string, val float64) {
	if val < 0 {
		v.Add(field, field+" must not be negative")
	}
}

func (v Violations) Positive(field string, val float64) {
	if val <= 0 {
		v.Add(field, field+" must be positive")
	}
}

func (v Violations) Range(field string, val, min, max int) {
	if val < min || val > max {
		v.Add(field, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// NotBefore requires end to be on or after start when both are present.
func (v Violations) NotBefore(field string, end, start *time.Time) {
	if end == nil || start == nil {
		return
	}
	if end.Before(*start) {
		v.Add(field, field+" must not be before the start date")
	}
}

// OneOf requires value to be one of allowed.
func (v Violations) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
}

// Email checks the address format of a non-empty value.
func (v Violations) Email(field, value string) {
	if value == "" {
		return
	}
	if err := validate.Var(value, "email"); err != nil {
		v.Add(field, field+" must be a valid email address")
	}
}

// MinLen requires at least min characters.
func (v Violations) MinLen(field, value string, min int) {
	if utf8.RuneCountInString(value) < min {
		v.Add(field, fmt.Sprintf("%s must be at least %d characters", field, min))
	}
}
