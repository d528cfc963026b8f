package service

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/procurement/internal/config"
	"github.com/bitfantasy/procurement/internal/middleware"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "service-test-secret"

func setup(t *testing.T) *Services {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewServices(db, repository.NewRepositories(db), Options{
		JWT: config.JWTConfig{
			Secret:             secret,
			AccessTokenExpire:  15 * time.Minute,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "procurement-test",
		},
	})
}

func permission(t *testing.T, svc *Services, authorityID int64, name string) int64 {
	t.Helper()
	p, err := svc.Permission.Create(context.Background(), &PermissionDTO{Name: name, AuthorityID: authorityID})
	require.NoError(t, err)
	return p.ID
}

func user(t *testing.T, svc *Services, username string, roleIDs, groupIDs []int64) *UserDTO {
	t.Helper()
	u, err := svc.User.Create(context.Background(), &UserDTO{
		Username: username,
		Email:    username + "@example.dz",
		Password: "s3cret-pass",
		RoleIDs:  roleIDs,
		GroupIDs: groupIDs,
	})
	require.NoError(t, err)
	return u
}

func TestEffectivePermissionsUnion(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	auth, err := svc.Authority.Create(ctx, &AuthorityDTO{Name: "CONTRACTS"})
	require.NoError(t, err)
	read := permission(t, svc, auth.ID, "contract:read")
	update := permission(t, svc, auth.ID, "contract:update")
	audits := permission(t, svc, auth.ID, "audit:read")

	reader, err := svc.Role.Create(ctx, &RoleDTO{Name: "READER", PermissionIDs: []int64{read}})
	require.NoError(t, err)
	editor, err := svc.Role.Create(ctx, &RoleDTO{Name: "EDITOR", PermissionIDs: []int64{read, update, audits}})
	require.NoError(t, err)
	group, err := svc.Group.Create(ctx, &GroupDTO{Name: "Marchés", RoleIDs: []int64{editor.ID}})
	require.NoError(t, err)

	u := user(t, svc, "karim", []int64{reader.ID}, []int64{group.ID})

	perms, err := svc.User.EffectivePermissions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit:read", "contract:read", "contract:update"}, perms)

	lonely := user(t, svc, "nadia", nil, nil)
	perms, err = svc.User.EffectivePermissions(ctx, lonely.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.NotNil(t, perms)

	_, err = svc.User.EffectivePermissions(ctx, 999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRoleDeleteGuardedByHolders(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	role, err := svc.Role.Create(ctx, &RoleDTO{Name: "AUDITOR"})
	require.NoError(t, err)
	u := user(t, svc, "salim", []int64{role.ID}, nil)

	err = svc.Role.Delete(ctx, role.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindDependentsExist, e.Kind)
	assert.Equal(t, "users", e.Field)

	require.NoError(t, svc.User.Delete(ctx, u.ID))
	require.NoError(t, svc.Role.Delete(ctx, role.ID))
}

func TestUserValidationAndUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	_, err := svc.User.Create(ctx, &UserDTO{Username: "x", Email: "not-an-email", Password: "short"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "email")
	assert.Contains(t, e.Fields, "password")

	user(t, svc, "yacine", nil, nil)
	_, err = svc.User.Create(ctx, &UserDTO{Username: "yacine", Email: "other@example.dz", Password: "long-enough"})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.Equal(t, "username", e.Field)

	_, err = svc.User.Create(ctx, &UserDTO{Username: "other", Email: "YACINE@example.dz", Password: "long-enough"})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "email", e.Field)

	_, err = svc.User.Create(ctx, &UserDTO{Username: "ghost", Email: "ghost@example.dz", Password: "long-enough", RoleIDs: []int64{42}})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRelationMissing, e.Kind)
	assert.Equal(t, "roleIds", e.Field)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	u := user(t, svc, "leila", nil, nil)

	err := svc.User.ChangePassword(ctx, u.ID, &PasswordChange{CurrentPassword: "wrong", NewPassword: "new-password"}, true)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "currentPassword")

	err = svc.User.ChangePassword(ctx, u.ID, &PasswordChange{NewPassword: "tiny"}, false)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, svc.User.ChangePassword(ctx, u.ID,
		&PasswordChange{CurrentPassword: "s3cret-pass", NewPassword: "new-password"}, true))

	_, err = svc.Auth.Login(ctx, &LoginRequest{Username: "leila", Password: "s3cret-pass"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = svc.Auth.Login(ctx, &LoginRequest{Username: "leila", Password: "new-password"})
	require.NoError(t, err)
}

func TestLoginRefreshAndMe(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	auth, err := svc.Authority.Create(ctx, &AuthorityDTO{Name: "PROVIDERS"})
	require.NoError(t, err)
	role, err := svc.Role.Create(ctx, &RoleDTO{Name: "BUYER", PermissionIDs: []int64{permission(t, svc, auth.ID, "provider:read")}})
	require.NoError(t, err)
	u := user(t, svc, "rachid", []int64{role.ID}, nil)

	_, err = svc.Auth.Login(ctx, &LoginRequest{Username: "rachid", Password: "bad-password"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = svc.Auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "bad-password"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	res, err := svc.Auth.Login(ctx, &LoginRequest{Username: " rachid ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.Equal(t, []string{"BUYER"}, res.User.RoleNames)
	assert.Equal(t, []string{"provider:read"}, res.User.Permissions)
	require.NotNil(t, res.User.LastLoginAt)

	claims, err := middleware.ParseToken(res.AccessToken, secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "rachid", claims.Subject)
	assert.Equal(t, middleware.TokenTypeAccess, claims.Type)
	assert.Equal(t, []string{"provider:read"}, claims.Permissions)

	_, err = svc.Auth.Refresh(ctx, &RefreshRequest{RefreshToken: res.AccessToken})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	pair, err := svc.Auth.Refresh(ctx, &RefreshRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.AccessToken, pair.AccessToken)

	me, err := svc.Auth.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "rachid", me.Username)

	_, err = svc.User.Patch(ctx, u.ID, []byte(`{"enabled":false}`))
	require.NoError(t, err)
	_, err = svc.Auth.Login(ctx, &LoginRequest{Username: "rachid", Password: "s3cret-pass"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, e.Kind)
	assert.Contains(t, e.Message, "disabled")
	_, err = svc.Auth.Refresh(ctx, &RefreshRequest{RefreshToken: res.RefreshToken})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	logs, err := svc.Audit.ByActor(ctx, "rachid", crud.Pageable{})
	require.NoError(t, err)
	require.Equal(t, int64(3), logs.TotalElements)
	assert.Equal(t, audit.StatusFailure, logs.Content[0].Status)
	assert.Equal(t, audit.ActionLogin, logs.Content[0].Action)
}

func TestBootstrapCreatesAdminOnce(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	require.NoError(t, svc.Bootstrap(ctx, config.BootstrapAdminConfig{}, nil))
	page, err := svc.User.List(ctx, crud.Pageable{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalElements)

	admin := config.BootstrapAdminConfig{Username: "admin", Password: "change-me-now"}
	require.NoError(t, svc.Bootstrap(ctx, admin, nil))
	require.NoError(t, svc.Bootstrap(ctx, admin, nil))

	page, err = svc.User.List(ctx, crud.Pageable{})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalElements)
	assert.Equal(t, "admin@localhost.localdomain", page.Content[0].Email)

	res, err := svc.Auth.Login(ctx, &LoginRequest{Username: "admin", Password: "change-me-now"})
	require.NoError(t, err)
	assert.Equal(t, []string{middleware.AdminRole}, res.User.RoleNames)
	assert.Equal(t, []string{WildcardPermission}, res.User.Permissions)
}

func TestAuditRecordAndHistory(t *testing.T) {
	ctx := audit.WithActor(context.Background(), "amina")
	svc := setup(t)

	type contract struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
	}
	start := time.Now()
	svc.Recorder.Record(ctx, audit.Entry{EntityName: "Contract", Action: audit.ActionCreate, After: contract{ID: 7, Reference: "M-1"}}, start, nil)
	svc.Recorder.Record(ctx, audit.Entry{
		EntityName: "Contract",
		Action:     audit.ActionUpdate,
		Before:     contract{ID: 7, Reference: "M-1"},
		After:      contract{ID: 7, Reference: "M-2"},
	}, start, nil)
	svc.Recorder.Record(ctx, audit.Entry{EntityName: "Contract", Action: audit.ActionDelete, Before: contract{ID: 8}}, start, apperr.NotFound("Contract", 8))

	page, err := svc.Audit.ByEntity(ctx, "Contract", 7, crud.Pageable{})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.TotalElements)
	after := map[string]string{}
	for _, row := range page.Content {
		assert.Equal(t, "amina", row.Actor)
		assert.Equal(t, audit.StatusSuccess, row.Status)
		after[row.Action] = string(row.AfterValue)
	}
	assert.JSONEq(t, `{"id":7,"reference":"M-1"}`, after[audit.ActionCreate])
	assert.JSONEq(t, `{"id":7,"reference":"M-2"}`, after[audit.ActionUpdate])

	page, err = svc.Audit.ByEntity(ctx, "Contract", 8, crud.Pageable{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, audit.StatusFailure, page.Content[0].Status)
	assert.NotEmpty(t, page.Content[0].ErrorDetail)
	assert.Nil(t, page.Content[0].AfterValue)
}
