package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bitfantasy/procurement/internal/config"
	"github.com/bitfantasy/procurement/internal/middleware"
	"github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/bitfantasy/procurement/internal/security/repository"
	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/audit"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// refreshKeyPrefix prefixes the redis keys of live refresh tokens.
const refreshKeyPrefix = "token:refresh:"

// AuthService password login and token issue
type AuthService struct {
	repos  *repository.Repositories
	users  *UserService
	rdb    *redis.Client
	jwt    config.JWTConfig
	rec    *audit.Recorder
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(repos *repository.Repositories, users *UserService, opts Options) *AuthService {
	return &AuthService{
		repos:  repos,
		users:  users,
		rdb:    opts.Redis,
		jwt:    opts.JWT,
		rec:    opts.Recorder,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// TokenPair access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// LoginRequest body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

// RefreshRequest body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LoginResult tokens plus the authenticated profile.
type LoginResult struct {
	TokenPair
	User Profile `json:"user"`
}

// Profile current user with its effective roles and permissions.
type Profile struct {
	UserDTO
	RoleNames   []string `json:"roleNames"`
	Permissions []string `json:"permissions"`
}

var errBadCredentials = apperr.Unauthorized("invalid username or password")

// Login checks the password of an enabled user and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	start := s.now()
	ctx = audit.WithActor(ctx, req.Username)
	res, err := s.login(ctx, req)
	entry := audit.Entry{
		EntityName: "User",
		Action:     audit.ActionLogin,
		Method:     "Login",
		Parameters: map[string]string{"username": req.Username},
	}
	if res != nil {
		entry.EntityID = &res.User.ID
	}
	s.rec.Record(ctx, entry, start, err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	user, err := s.repos.User.FindByUsername(ctx, trim(req.Username))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, errBadCredentials
	}
	if !user.Enabled {
		return nil, apperr.Unauthorized("account is disabled")
	}

	now := s.now()
	if err := s.repos.User.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	profile, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}
	pair, err := s.issue(ctx, user, profile)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: *pair, User: *profile}, nil
}

// Refresh exchanges a refresh token for a new pair. With redis the old token
// is single use; without it any unexpired refresh token is accepted.
func (s *AuthService) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPair, error) {
	claims, err := middleware.ParseToken(req.RefreshToken, s.jwt.Secret)
	if err != nil || claims.Type != middleware.TokenTypeRefresh {
		return nil, apperr.Unauthorized("invalid or expired refresh token")
	}

	if s.rdb != nil {
		key := refreshKeyPrefix + claims.ID
		stored, err := s.rdb.GetDel(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, apperr.Unauthorized("refresh token revoked or already used")
		}
		if err != nil {
			return nil, fmt.Errorf("read refresh token: %w", err)
		}
		if stored != strconv.FormatInt(claims.UserID, 10) {
			return nil, apperr.Unauthorized("refresh token does not match its user")
		}
	}

	user, err := s.repos.User.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	if !user.Enabled {
		return nil, apperr.Unauthorized("account is disabled")
	}
	profile, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, profile)
}

// Me GET /auth/me
func (s *AuthService) Me(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user)
}

// profile computes the effective roles and permissions from the database,
// refreshing the permission cache on the way.
func (s *AuthService) profile(ctx context.Context, user *entity.User) (*Profile, error) {
	roles, err := s.repos.User.EffectiveRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	perms, err := s.repos.User.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	if perms == nil {
		perms = []string{}
	}
	s.users.cache.Set(ctx, user.ID, perms)
	return &Profile{UserDTO: UserToDTO(user), RoleNames: roles, Permissions: perms}, nil
}

func (s *AuthService) issue(ctx context.Context, user *entity.User, profile *Profile) (*TokenPair, error) {
	now := s.now()
	name := trim(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}

	access := middleware.JWTClaims{
		UserID:      user.ID,
		Name:        name,
		Email:       user.Email,
		Roles:       profile.RoleNames,
		Permissions: profile.Permissions,
		Type:        middleware.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    s.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.AccessTokenExpire)),
			ID:        uuid.New().String(),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshID := uuid.New().String()
	refresh := middleware.JWTClaims{
		UserID: user.ID,
		Type:   middleware.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    s.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.RefreshTokenExpire)),
			ID:        refreshID,
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshID, user.ID, s.jwt.RefreshTokenExpire).Err(); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.AccessTokenExpire.Seconds()),
	}, nil
}
