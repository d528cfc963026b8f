package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"gorm.io/gorm"
)

// Repositories security repositories
type Repositories struct {
	Authority  *crud.Repository[entity.Authority]
	Permission *crud.Repository[entity.Permission]
	Role       *crud.Repository[entity.Role]
	Group      *crud.Repository[entity.Group]
	User       *UserRepository
	AuditLog   *crud.Repository[entity.AuditLog]
}

func NewRepositories(db *gorm.DB) *Repositories {
	named := func(name string, extra ...string) crud.Options {
		return crud.Options{
			Name:          name,
			SearchColumns: append([]string{"name", "description"}, extra...),
			SortColumns:   map[string]string{"name": "name"},
			DefaultSort:   "name",
		}
	}
	permission := named("Permission")
	permission.Preloads = []string{"Authority"}
	role := named("Role")
	role.DefaultPreloads = []string{"Permissions"}
	group := named("Group")
	group.DefaultPreloads = []string{"Roles"}

	return &Repositories{
		Authority:  crud.NewRepository[entity.Authority](db, named("Authority")),
		Permission: crud.NewRepository[entity.Permission](db, permission),
		Role:       crud.NewRepository[entity.Role](db, role),
		Group:      crud.NewRepository[entity.Group](db, group),
		User:       NewUserRepository(db),
		AuditLog: crud.NewRepository[entity.AuditLog](db, crud.Options{
			Name:          "AuditLog",
			SearchColumns: []string{"entity_name", "action", "actor", "method", "request_id"},
			SortColumns: map[string]string{
				"timestamp":  "timestamp",
				"entityName": "entity_name",
				"action":     "action",
				"actor":      "actor",
				"durationMs": "duration_ms",
			},
			DefaultSort: "timestamp",
		}),
	}
}

// UserRepository users and their role and group links
type UserRepository struct {
	*crud.Repository[entity.User]
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{Repository: crud.NewRepository[entity.User](db, crud.Options{
		Name:          "User",
		SearchColumns: []string{"username", "email", "first_name", "last_name"},
		SortColumns: map[string]string{
			"username":    "username",
			"email":       "email",
			"lastName":    "last_name",
			"createdAt":   "created_at",
			"lastLoginAt": "last_login_at",
		},
		DefaultSort:     "username",
		DefaultPreloads: []string{"Roles", "Groups"},
	})}
}

// FindByUsername loads the user, matching the username exactly.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.FindOneBy(ctx, "username", username)
}

// effectiveRoles selects the ids of the roles held directly or through a group.
const effectiveRoles = `SELECT ur.role_id FROM sec_user_roles ur WHERE ur.user_id = ?
UNION
SELECT gr.role_id FROM sec_group_roles gr JOIN sec_user_groups ug ON ug.group_id = gr.group_id WHERE ug.user_id = ?`

// EffectivePermissions returns the distinct permission names granted to user
// id by its roles and by the roles of its groups, sorted.
func (r *UserRepository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.Conn(ctx).Raw(`SELECT DISTINCT p.name FROM sec_permissions p
JOIN sec_role_permissions rp ON rp.permission_id = p.id
WHERE rp.role_id IN (`+effectiveRoles+`)
ORDER BY p.name`, userID, userID).Scan(&names).Error
	return names, err
}

// EffectiveRoles returns the distinct names of the roles held by user id,
// directly or through a group, sorted.
func (r *UserRepository) EffectiveRoles(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.Conn(ctx).Raw(`SELECT DISTINCT r.name FROM sec_roles r
WHERE r.id IN (`+effectiveRoles+`)
ORDER BY r.name`, userID, userID).Scan(&names).Error
	return names, err
}

// UsersOfRole ids of the users holding role id directly or through a group.
func (r *UserRepository) UsersOfRole(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	err := r.Conn(ctx).Raw(`SELECT user_id FROM sec_user_roles WHERE role_id = ?
UNION
SELECT ug.user_id FROM sec_user_groups ug JOIN sec_group_roles gr ON gr.group_id = ug.group_id WHERE gr.role_id = ?`,
		roleID, roleID).Scan(&ids).Error
	return ids, err
}

// UsersOfGroup ids of the members of group id.
func (r *UserRepository) UsersOfGroup(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := r.Conn(ctx).Table("sec_user_groups").Where("group_id = ?", groupID).Pluck("user_id", &ids).Error
	return ids, err
}

// TouchLogin sets last_login_at without bumping updated_at.
func (r *UserRepository) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	return r.Conn(ctx).Model(&entity.User{}).Where("id = ?", userID).UpdateColumn("last_login_at", at).Error
}
