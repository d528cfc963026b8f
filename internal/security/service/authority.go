package service

import (
	"context"
	"encoding/json"

	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/bitfantasy/procurement/internal/shared/validation"
	"gorm.io/gorm"
)

// AuthorityDTO grouping of permissions and roles.
type AuthorityDTO struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func AuthorityToDTO(e *entity.Authority) AuthorityDTO {
	return AuthorityDTO{ID: e.ID, Name: e.Name, Description: e.Description}
}

// AuthorityService permission groupings
type AuthorityService struct {
	crud.Base[entity.Authority, AuthorityDTO]
}

func NewAuthorityService(db *gorm.DB, repos *repository.Repositories) *AuthorityService {
	return &AuthorityService{
		Base: crud.Base[entity.Authority, AuthorityDTO]{DB: db, Repo: repos.Authority, ToDTO: AuthorityToDTO},
	}
}

func (s *AuthorityService) normalize(dto *AuthorityDTO) error {
	dto.Name = trim(dto.Name)
	dto.Description = trim(dto.Description)
	v := validation.New()
	v.Required("name", dto.Name)
	v.MaxLen("name", dto.Name, 100)
	v.MaxLen("description", dto.Description, 500)
	return v.Err()
}

func (s *AuthorityService) Create(ctx context.Context, dto *AuthorityDTO) (*AuthorityDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AuthorityDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueName(ctx, s.Repo, dto.Name, 0); err != nil {
			return err
		}
		e := &entity.Authority{Name: dto.Name, Description: dto.Description}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = AuthorityToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthorityService) Update(ctx context.Context, id int64, dto *AuthorityDTO) (*AuthorityDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out AuthorityDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueName(ctx, s.Repo, dto.Name, id); err != nil {
			return err
		}
		e.Name = dto.Name
		e.Description = dto.Description
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = AuthorityToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthorityService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*AuthorityDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *AuthorityService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Authority", id,
			crud.Guard{Table: "sec_permissions", Column: "authority_id", Label: "permissions"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// PermissionDTO named "resource:action" right.
type PermissionDTO struct {
	ID          int64         `json:"id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	AuthorityID int64         `json:"authorityId"`
	Authority   *AuthorityDTO `json:"authority,omitempty"`
}

func PermissionToDTO(e *entity.Permission) PermissionDTO {
	return PermissionDTO{ID: e.ID, Name: e.Name, Description: e.Description, AuthorityID: e.AuthorityID}
}

func permissionWithRelations(e *entity.Permission) PermissionDTO {
	dto := PermissionToDTO(e)
	if e.Authority != nil {
		a := AuthorityToDTO(e.Authority)
		dto.Authority = &a
	}
	return dto
}

// PermissionService named grants such as "contract:update"
type PermissionService struct {
	crud.Base[entity.Permission, PermissionDTO]
	repos *repository.Repositories
	cache *PermissionCache
}

func NewPermissionService(db *gorm.DB, repos *repository.Repositories, cache *PermissionCache) *PermissionService {
	return &PermissionService{
		Base: crud.Base[entity.Permission, PermissionDTO]{
			DB:                 db,
			Repo:               repos.Permission,
			ToDTO:              PermissionToDTO,
			ToDTOWithRelations: permissionWithRelations,
		},
		repos: repos,
		cache: cache,
	}
}

func (s *PermissionService) normalize(dto *PermissionDTO) error {
	dto.Name = trim(dto.Name)
	dto.Description = trim(dto.Description)
	v := validation.New()
	v.Required("name", dto.Name)
	v.MaxLen("name", dto.Name, 100)
	v.MaxLen("description", dto.Description, 500)
	v.RequiredID("authorityId", dto.AuthorityID)
	return v.Err()
}

func (s *PermissionService) Create(ctx context.Context, dto *PermissionDTO) (*PermissionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PermissionDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueName(ctx, s.Repo, dto.Name, 0); err != nil {
			return err
		}
		if _, err := crud.Resolve(ctx, s.repos.Authority, "authorityId", dto.AuthorityID); err != nil {
			return err
		}
		e := &entity.Permission{Name: dto.Name, Description: dto.Description, AuthorityID: dto.AuthorityID}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		out = PermissionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update renames a permission; the cached sets of every holder are dropped.
func (s *PermissionService) Update(ctx context.Context, id int64, dto *PermissionDTO) (*PermissionDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out PermissionDTO
	var affected []int64
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueName(ctx, s.Repo, dto.Name, id); err != nil {
			return err
		}
		if e.AuthorityID != dto.AuthorityID {
			if _, err := crud.Resolve(ctx, s.repos.Authority, "authorityId", dto.AuthorityID); err != nil {
				return err
			}
		}
		if e.Name != dto.Name {
			if affected, err = s.holders(ctx, id); err != nil {
				return err
			}
		}
		e.Name = dto.Name
		e.Description = dto.Description
		e.AuthorityID = dto.AuthorityID
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		out = PermissionToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, affected...)
	return &out, nil
}

func (s *PermissionService) holders(ctx context.Context, permissionID int64) ([]int64, error) {
	var roleIDs []int64
	err := crud.Conn(ctx, s.DB).Table("sec_role_permissions").
		Where("permission_id = ?", permissionID).Pluck("role_id", &roleIDs).Error
	if err != nil {
		return nil, err
	}
	var users []int64
	for _, roleID := range roleIDs {
		ids, err := s.repos.User.UsersOfRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		users = append(users, ids...)
	}
	return crud.Distinct(users), nil
}

func (s *PermissionService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*PermissionDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *PermissionService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.FindByID(ctx, id); err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Permission", id,
			crud.Guard{Table: "sec_role_permissions", Column: "permission_id", Label: "roles"},
		); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
