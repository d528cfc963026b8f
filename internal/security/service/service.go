package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/procurement/internal/config"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services security services
type Services struct {
	Authority  *AuthorityService
	Permission *PermissionService
	Role       *RoleService
	Group      *GroupService
	User       *UserService
	Auth       *AuthService
	Audit      *AuditService
	Recorder   *audit.Recorder
}

// Options collects what the security services need besides the database.
type Options struct {
	JWT      config.JWTConfig
	Security config.SecurityConfig
	// Redis is optional; without it permissions are not cached and refresh
	// tokens are not tracked server side.
	Redis *redis.Client
	// Recorder defaults to one writing to the audit log table.
	Recorder *audit.Recorder
	Logger   *zap.Logger
}

func NewServices(db *gorm.DB, repos *repository.Repositories, opts Options) *Services {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	audits := NewAuditService(db, repos)
	if opts.Recorder == nil {
		opts.Recorder = audit.NewRecorder(audits, opts.Logger.Named("audit"))
	}
	cache := NewPermissionCache(opts.Redis, opts.Security.PermissionCacheTTL, opts.Logger)
	users := NewUserService(db, repos, cache)
	return &Services{
		Authority:  NewAuthorityService(db, repos),
		Permission: NewPermissionService(db, repos, cache),
		Role:       NewRoleService(db, repos, cache),
		Group:      NewGroupService(db, repos, cache),
		User:       users,
		Auth:       NewAuthService(repos, users, opts),
		Audit:      audits,
		Recorder:   opts.Recorder,
	}
}

// PermissionCache keeps effective permission sets in redis under
// perm:user:<id>. A nil client disables caching.
type PermissionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewPermissionCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *PermissionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionCache{rdb: rdb, ttl: ttl, logger: logger}
}

func permissionKey(userID int64) string {
	return fmt.Sprintf("perm:user:%d", userID)
}

// Get returns the cached set and whether it was present.
func (c *PermissionCache) Get(ctx context.Context, userID int64) ([]string, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, permissionKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Permission cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (c *PermissionCache) Set(ctx context.Context, userID int64, perms []string) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, _ := json.Marshal(perms)
	if err := c.rdb.Set(ctx, permissionKey(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Permission cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached sets of users.
func (c *PermissionCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if c == nil || c.rdb == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, permissionKey(id))
	}
	if err := c.rdb.Del(context.WithoutCancel(ctx), keys...).Err(); err != nil {
		c.logger.Warn("Permission cache invalidation failed", zap.Int64s("user_ids", userIDs), zap.Error(err))
	}
}

// uniqueName enforces the name natural key shared by the security tables.
func uniqueName[E any](ctx context.Context, repo *crud.Repository[E], name string, excludeID int64) error {
	exists, err := repo.ExistsExcluding(ctx, "name", name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict(repo.Name(), "name", name)
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func idsOf[E any](items []E, id func(*E) int64) []int64 {
	out := make([]int64, 0, len(items))
	for i := range items {
		out = append(out, id(&items[i]))
	}
	return out
}

func trim(s string) string { return strings.TrimSpace(s) }
