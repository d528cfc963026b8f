package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("Currency", 7), http.StatusNotFound},
		{Conflict("Currency", "code", "DZD"), http.StatusBadRequest},
		{Validation(map[string]string{"code": "is required"}), http.StatusBadRequest},
		{RelationMissing("currencyId", "Currency", 9), http.StatusBadRequest},
		{DependentsExist("AmendmentPhase", 1, "amendment steps", 2), http.StatusBadRequest},
		{BusinessRule("provider %d is excluded", 3), http.StatusBadRequest},
		{Unauthorized("missing token"), http.StatusUnauthorized},
		{Forbidden("denied"), http.StatusForbidden},
		{RateLimited("slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("update contract: %w", NotFound("Contract", 42))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, http.StatusNotFound, Status(err))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Contract not found with id 42", e.Message)
}

func TestConflictMessageNamesValue(t *testing.T) {
	err := Conflict("AmendmentPhase", "designationFr", "Instance de maturation de plan budgétaire")
	assert.Contains(t, err.Error(), "Instance de maturation de plan budgétaire")
	assert.Equal(t, "designationFr", err.Field)
}
