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

// RoleDTO set of permissions granted to users and groups.
type RoleDTO struct {
	ID            int64           `json:"id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	PermissionIDs []int64         `json:"permissionIds"`
	Permissions   []PermissionDTO `json:"permissions,omitempty"`
}

func RoleToDTO(e *entity.Role) RoleDTO {
	return RoleDTO{
		ID:            e.ID,
		Name:          e.Name,
		Description:   e.Description,
		PermissionIDs: idsOf(e.Permissions, func(p *entity.Permission) int64 { return p.ID }),
	}
}

func roleWithRelations(e *entity.Role) RoleDTO {
	dto := RoleToDTO(e)
	for i := range e.Permissions {
		dto.Permissions = append(dto.Permissions, PermissionToDTO(&e.Permissions[i]))
	}
	return dto
}

// RoleService roles and their permissions
type RoleService struct {
	crud.Base[entity.Role, RoleDTO]
	repos *repository.Repositories
	cache *PermissionCache
}

func NewRoleService(db *gorm.DB, repos *repository.Repositories, cache *PermissionCache) *RoleService {
	return &RoleService{
		Base: crud.Base[entity.Role, RoleDTO]{
			DB:                 db,
			Repo:               repos.Role,
			ToDTO:              RoleToDTO,
			ToDTOWithRelations: roleWithRelations,
		},
		repos: repos,
		cache: cache,
	}
}

func (s *RoleService) normalize(dto *RoleDTO) error {
	dto.Name = trim(dto.Name)
	dto.Description = trim(dto.Description)
	dto.PermissionIDs = crud.Distinct(dto.PermissionIDs)
	v := validation.New()
	v.Required("name", dto.Name)
	v.MaxLen("name", dto.Name, 100)
	v.MaxLen("description", dto.Description, 500)
	return v.Err()
}

func (s *RoleService) Create(ctx context.Context, dto *RoleDTO) (*RoleDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out RoleDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueName(ctx, s.Repo, dto.Name, 0); err != nil {
			return err
		}
		perms, err := crud.ResolveAll(ctx, s.repos.Permission, "permissionIds", dto.PermissionIDs)
		if err != nil {
			return err
		}
		e := &entity.Role{Name: dto.Name, Description: dto.Description}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "Permissions", perms); err != nil {
			return err
		}
		out = RoleToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces name, description and permissions; holders' cached sets
// are dropped after commit.
func (s *RoleService) Update(ctx context.Context, id int64, dto *RoleDTO) (*RoleDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out RoleDTO
	var affected []int64
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueName(ctx, s.Repo, dto.Name, id); err != nil {
			return err
		}
		perms, err := crud.ResolveAll(ctx, s.repos.Permission, "permissionIds", dto.PermissionIDs)
		if err != nil {
			return err
		}
		e.Name = dto.Name
		e.Description = dto.Description
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "Permissions", perms); err != nil {
			return err
		}
		if affected, err = s.repos.User.UsersOfRole(ctx, id); err != nil {
			return err
		}
		out = RoleToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, affected...)
	return &out, nil
}

func (s *RoleService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*RoleDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

// Delete refuses roles still held by users or groups, then drops the
// permission links with the role.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Role", id,
			crud.Guard{Table: "sec_user_roles", Column: "role_id", Label: "users"},
			crud.Guard{Table: "sec_group_roles", Column: "role_id", Label: "groups"},
		); err != nil {
			return err
		}
		if err := s.Repo.ClearAssociation(ctx, e, "Permissions"); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}

// GroupDTO users sharing a set of roles.
type GroupDTO struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RoleIDs     []int64   `json:"roleIds"`
	Roles       []RoleDTO `json:"roles,omitempty"`
}

func GroupToDTO(e *entity.Group) GroupDTO {
	return GroupDTO{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		RoleIDs:     idsOf(e.Roles, func(r *entity.Role) int64 { return r.ID }),
	}
}

func groupWithRelations(e *entity.Group) GroupDTO {
	dto := GroupToDTO(e)
	for i := range e.Roles {
		dto.Roles = append(dto.Roles, RoleToDTO(&e.Roles[i]))
	}
	return dto
}

// GroupService user groups and the roles they confer
type GroupService struct {
	crud.Base[entity.Group, GroupDTO]
	repos *repository.Repositories
	cache *PermissionCache
}

func NewGroupService(db *gorm.DB, repos *repository.Repositories, cache *PermissionCache) *GroupService {
	return &GroupService{
		Base: crud.Base[entity.Group, GroupDTO]{
			DB:                 db,
			Repo:               repos.Group,
			ToDTO:              GroupToDTO,
			ToDTOWithRelations: groupWithRelations,
		},
		repos: repos,
		cache: cache,
	}
}

func (s *GroupService) normalize(dto *GroupDTO) error {
	dto.Name = trim(dto.Name)
	dto.Description = trim(dto.Description)
	dto.RoleIDs = crud.Distinct(dto.RoleIDs)
	v := validation.New()
	v.Required("name", dto.Name)
	v.MaxLen("name", dto.Name, 100)
	v.MaxLen("description", dto.Description, 500)
	return v.Err()
}

func (s *GroupService) Create(ctx context.Context, dto *GroupDTO) (*GroupDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out GroupDTO
	err := s.Tx(ctx, func(ctx context.Context) error {
		if err := uniqueName(ctx, s.Repo, dto.Name, 0); err != nil {
			return err
		}
		roles, err := crud.ResolveAll(ctx, s.repos.Role, "roleIds", dto.RoleIDs)
		if err != nil {
			return err
		}
		e := &entity.Group{Name: dto.Name, Description: dto.Description}
		if err := s.Repo.Create(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "Roles", roles); err != nil {
			return err
		}
		out = GroupToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GroupService) Update(ctx context.Context, id int64, dto *GroupDTO) (*GroupDTO, error) {
	if err := s.normalize(dto); err != nil {
		return nil, err
	}
	var out GroupDTO
	var affected []int64
	err := s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := uniqueName(ctx, s.Repo, dto.Name, id); err != nil {
			return err
		}
		roles, err := crud.ResolveAll(ctx, s.repos.Role, "roleIds", dto.RoleIDs)
		if err != nil {
			return err
		}
		e.Name = dto.Name
		e.Description = dto.Description
		if err := s.Repo.Save(ctx, e); err != nil {
			return err
		}
		if err := s.Repo.ReplaceAssociation(ctx, e, "Roles", roles); err != nil {
			return err
		}
		if affected, err = s.repos.User.UsersOfGroup(ctx, id); err != nil {
			return err
		}
		out = GroupToDTO(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, affected...)
	return &out, nil
}

func (s *GroupService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*GroupDTO, error) {
	return s.PatchWith(ctx, id, patch, s.Update)
}

func (s *GroupService) Delete(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(ctx context.Context) error {
		e, err := s.Repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := crud.CheckGuards(ctx, s.DB, "Group", id,
			crud.Guard{Table: "sec_user_groups", Column: "group_id", Label: "users"},
		); err != nil {
			return err
		}
		if err := s.Repo.ClearAssociation(ctx, e, "Roles"); err != nil {
			return err
		}
		return s.Repo.Delete(ctx, id)
	})
}
