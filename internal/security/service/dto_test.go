package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserDTOEntityRoundTrip(t *testing.T) {
	disabled := false
	lastLogin := time.Date(2024, 4, 2, 8, 30, 0, 0, time.UTC)
	dto := UserDTO{
		Username:    "samia",
		Email:       "samia@example.dz",
		Password:    "very-secret",
		FirstName:   "Samia",
		LastName:    "Haddad",
		Enabled:     &disabled,
		RoleIDs:     []int64{2, 5},
		GroupIDs:    []int64{3},
		LastLoginAt: &lastLogin,
	}
	hash, err := HashPassword(dto.Password)
	require.NoError(t, err)

	e := &entity.User{Enabled: true}
	(&UserService{}).apply(&dto, e, hash)
	// roles, groups and last login are maintained outside apply
	e.Roles = []entity.Role{{ID: 2}, {ID: 5}}
	e.Groups = []entity.Group{{ID: 3}}
	e.LastLoginAt = &lastLogin

	want := dto
	want.Password = ""
	assert.Equal(t, want, UserToDTO(e))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte("very-secret")))
}

func TestUserApplyKeepsUnsetFields(t *testing.T) {
	e := &entity.User{Enabled: true, PasswordHash: "existing-hash"}
	(&UserService{}).apply(&UserDTO{Username: "omar", Email: "omar@example.dz"}, e, "")

	assert.True(t, e.Enabled)
	assert.Equal(t, "existing-hash", e.PasswordHash)

	out := UserToDTO(e)
	assert.Empty(t, out.Password)
	assert.NotNil(t, out.RoleIDs)
	assert.Empty(t, out.RoleIDs)
}
