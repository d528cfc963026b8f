package service

import (
	"context"

	"github.com/bitfantasy/procurement/internal/config"
	"github.com/bitfantasy/procurement/internal/middleware"
	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"go.uber.org/zap"
)

// Names of the records seeded for the first administrator.
const (
	SystemAuthority    = "SYSTEM"
	WildcardPermission = "*"
)

// Bootstrap seeds an administrator holding every permission when the user
// table is empty. It is a no-op once any account exists or when no
// credentials are configured.
func (s *Services) Bootstrap(ctx context.Context, admin config.BootstrapAdminConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if admin.Username == "" || admin.Password == "" {
		return nil
	}
	var count int64
	if err := s.User.Repo.Conn(ctx).Model(&entity.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	ctx = audit.WithActor(ctx, audit.SystemActor)
	email := admin.Email
	if email == "" {
		email = admin.Username + "@localhost.localdomain"
	}

	return s.User.Tx(ctx, func(ctx context.Context) error {
		authority, err := s.Authority.Create(ctx, &AuthorityDTO{Name: SystemAuthority, Description: "Built-in administration"})
		if err != nil {
			return err
		}
		perm, err := s.Permission.Create(ctx, &PermissionDTO{
			Name:        WildcardPermission,
			Description: "Every permission",
			AuthorityID: authority.ID,
		})
		if err != nil {
			return err
		}
		role, err := s.Role.Create(ctx, &RoleDTO{
			Name:          middleware.AdminRole,
			Description:   "Administrator",
			PermissionIDs: []int64{perm.ID},
		})
		if err != nil {
			return err
		}
		user, err := s.User.Create(ctx, &UserDTO{
			Username: admin.Username,
			Email:    email,
			Password: admin.Password,
			RoleIDs:  []int64{role.ID},
			GroupIDs: []int64{},
		})
		if err != nil {
			return err
		}
		logger.Info("Bootstrap administrator created", zap.String("username", user.Username))
		return nil
	})
}
