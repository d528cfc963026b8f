package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLength applies to new and changed passwords.
const MinPasswordLength = 8

// UserDTO user account; Password is accepted on writes and never returned.
type UserDTO struct {
	ID          int64      `json:"id,omitempty"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"password,omitempty"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Enabled     *bool      `json:"enabled,omitempty"`
	RoleIDs     []int64    `json:"roleIds"`
	GroupIDs    []int64    `json:"groupIds"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`

	Roles  []RoleDTO  `json:"roles,omitempty"`
	Groups []GroupDTO `json:"groups,omitempty"`
}

func UserToDTO(e *entity.User) UserDTO {
	enabled := e.Enabled
	return UserDTO{
		ID:          e.ID,
		Username:    e.Username,
		Email:       e.Email,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Enabled:     &enabled,
		RoleIDs:     idsOf(e.Roles, func(r *entity.Role) int64 { return r.ID }),
		GroupIDs:    idsOf(e.Groups, func(g *entity.Group) int64 { return g.ID }),
		LastLoginAt: e.LastLoginAt,
		CreatedAt:   timePtr(e.CreatedAt),
		UpdatedAt:   timePtr(e.UpdatedAt),
	}
}

func userWithRelations(e *entity.User) UserDTO {
	dto := UserToDTO(e)
	for i := range e.Roles {
		dto.Roles = append(dto.Roles, RoleToDTO(&e.Roles[i]))
	}
	for i := range e.Groups {
		dto.Groups = append(dto.Groups, GroupToDTO(&e.Groups[i]))
	}
	return dto
}

// UserService user accounts
type UserService struct {
	crud.Base[entity.User, UserDTO]
	repos *repository.Repositories
	cache *PermissionCache
}

func NewUserService(db *gorm.DB, repos *repository.Repositories, cache *PermissionCache) *UserService {
	return &UserService{
		Base: crud.Base[entity.User, UserDTO]{
			DB:                 db,
			Repo:               repos.User.Repository,
			ToDTO:              UserToDTO,
			ToDTOWithRelations: userWithRelations,
		},
		repos: repos,
		cache: cache,
	}
}

func (s *UserService) normalize(dto *UserDTO, creating bool) error {
	dto.Username = trim(dto.Username)
	dto.Email = strings.ToLower(trim(dto.Email))
	dto.FirstName = trim(dto.FirstName)
	dto.LastName = trim(dto.LastName)
	dto.RoleIDs = crud.Distinct(dto.RoleIDs)
	dto.GroupIDs = crud.Distinct(dto.GroupIDs)

	v := validation.New()
	v.Required("username", dto.Username)
	v.MaxLen("username", dto.Username, 64)
	v.Required("email", dto.Email)
	v.MaxLen("email", dto.Email, 150)
	v.Email("email", dto.Email)
	v.MaxLen("firstName", dto.FirstName, 100)
	v.MaxLen("lastName", dto.LastName, 100)
	if creating || dto.Password != "" {
		v.MinLen("password", dto.Password, MinPasswordLength)
		v.MaxLen("password", dto.Password, 72)
	}
	return v.Err()
}

func (s *UserService) unique(ctx context.Context, dto *UserDTO, excludeID int64) error {
	exists, err := s.Repo.ExistsExcluding(ctx, "username", dto.Username, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("User", "username", dto.Username)
	}
	exists, err = s.Repo.ExistsExcluding(ctx, "email", dto.Email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("User", "email", dto.Email)
	}
	return nil
}

func (s *UserService) links(ctx context.Context, e *entity.User, dto *UserDTO) error {
	roles, err := crud.ResolveAll(ctx, s.repos.Role, "roleIds", dto.RoleIDs)
	if err != nil {
		return err
	}
	groups, err := crud.ResolveAll(ctx, s.repos.Group, "groupIds", dto.GroupIDs)
	if err != nil {
		return err
	}
	if err := s.Repo.ReplaceAssociation(ctx, e, "Roles", roles); err != nil {
		return err
	}
	return s.Repo.ReplaceAssociation(ctx, e, "Groups", groups)
}

// HashPassword bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// apply copies dto onto e. A nil Enabled or an empty hash keeps the current value.
func (s *UserService) apply(dto *UserDTO, e *entity.User, hash string) {
	e.Username = dto.Username
	e.Email = dto.Email
	e.FirstName = dto.FirstName
	e.LastName = dto.LastName
	if dto.Enabled != nil {
		e.Enabled = *dto.Enabled
	}
	if hash != "" {
		e.PasswordHash = hash
	}
}

func (s *UserService) Create(ctx context.Context, dto *UserDTO) (*UserDTO, error) {
	if err := s.normalize(dto, true); err != nil {
		return nil, err
	}
	hash, err := HashPassword(dto.Password)
	if err != nil {
		return nil, err
	}
	// keep the plain password out of audit parameters
	dto.Password = ""
	var out UserDTO
	err = s.Tx(ctx, func(ctx context.Context) error {
		if err := s.unique(ctx, dto, 0); err != nil {
			return err
		}
		e := &entity.User{Enabled: true}
		s.apply(dto, e, hash)
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		if err := s.links(ctx, e, dto); err != nil {
			return err
		}
		out = UserToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the account; an empty password keeps the current one.
func (s *UserService) Update(ctx context.Context, id int64, dto *UserDTO) (*UserDTO, error) {
	if err := s.normalize(dto, false); err != nil {
		return nil, err
	}
	var hash string
	if dto.Password != "" {
		var err error
		if hash, err = HashPassword(dto.Password); err != nil {
			return nil, err
		}
		dto.Password = ""
	}
	var out UserDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.unique(ctx, dto, id); err != nil {
			return err
		}
		s.apply(dto, e, hash)
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		if err := s.links(ctx, e, dto); err != nil {
			return err
		}
		out = UserToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	return &out, nil
}

func (s *UserService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*UserDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

// Delete removes the account and its role and group links.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Repo.ClearAssociation(ctx, e, "Roles"); err != nil {
			return err
		}
		if err := s.Repo.ClearAssociation(ctx, e, "Groups"); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// EffectivePermissions union of the permissions of the user's roles and of
// the roles of its groups, deduplicated and sorted.
func (s *UserService) EffectivePermissions(ctx context.Context, id int64) ([]string, error) {
	if perms, ok := s.cache.Get(ctx, id); ok {
		return perms, nil
	}
	if _, err := s.Repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	perms, err := s.repos.User.EffectivePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	s.cache.Set(ctx, id, perms)
	return perms, nil
}

// PasswordChange body of PUT /users/:id/password. CurrentPassword is checked
// when the caller changes its own password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// ChangePassword sets a new password on user id. When verifyCurrent is set
// the current password must match.
func (s *UserService) ChangePassword(ctx context.Context, id int64, req *PasswordChange, verifyCurrent bool) error {
	v := validation.New()
	v.MinLen("newPassword", req.NewPassword, MinPasswordLength)
	v.MaxLen("newPassword", req.NewPassword, 72)
	if err := v.Err(); err != nil {
		return err
	}
	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if verifyCurrent && bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return apperr.Validation(map[string]string{"currentPassword": "current password is incorrect"})
		}
		return s.Repo.Conn(ctx).Model(e).UpdateColumn("password_hash", hash).Error
	})
}
