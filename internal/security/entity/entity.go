package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Authority groups permissions, e.g. USER_MGMT
type Authority struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
}

func (Authority) TableName() string { return "sec_authorities" }

func (a *Authority) GetID() int64 { return a.ID }

// Permission named grant, resource:action
type Permission struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	AuthorityID int64  `gorm:"not null;index"`

	Authority *Authority `gorm:"foreignKey:AuthorityID"`
}

func (Permission) TableName() string { return "sec_permissions" }

func (p *Permission) GetID() int64 { return p.ID }

// Role set of permissions
type Role struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`

	Permissions []Permission `gorm:"many2many:sec_role_permissions;joinForeignKey:RoleID;joinReferences:PermissionID"`
}

func (Role) TableName() string { return "sec_roles" }

func (r *Role) GetID() int64 { return r.ID }

// Group set of roles shared by its members
type Group struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`

	Roles []Role `gorm:"many2many:sec_group_roles;joinForeignKey:GroupID;joinReferences:RoleID"`
}

func (Group) TableName() string { return "sec_groups" }

func (g *Group) GetID() int64 { return g.ID }

// User account
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:64;not null"`
	Email        string `gorm:"size:150;not null"`
	PasswordHash string `gorm:"size:100;not null"`
	FirstName    string `gorm:"size:100"`
	LastName     string `gorm:"size:100"`
	Enabled      bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Roles  []Role  `gorm:"many2many:sec_user_roles;joinForeignKey:UserID;joinReferences:RoleID"`
	Groups []Group `gorm:"many2many:sec_user_groups;joinForeignKey:UserID;joinReferences:GroupID"`
}

func (User) TableName() string { return "sec_users" }

func (u *User) GetID() int64 { return u.ID }

// AuditLog append-only record of an intercepted operation
type AuditLog struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	EntityName  string `gorm:"size:100;not null;index"`
	EntityID    *int64 `gorm:"index"`
	Action      string `gorm:"size:30;not null"`
	Method      string `gorm:"size:100"`
	Actor       string `gorm:"size:100;not null;index"`
	RequestID   string `gorm:"size:64"`
	Parameters  datatypes.JSON
	BeforeValue datatypes.JSON
	AfterValue  datatypes.JSON
	Status      string `gorm:"size:10;not null"`
	ErrorDetail string `gorm:"type:text"`
	DurationMs  int64
	Timestamp   time.Time `gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "sec_audit_logs" }

func (a *AuditLog) GetID() int64 { return a.ID }
