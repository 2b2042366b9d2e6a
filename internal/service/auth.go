package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"botadmin/internal/dto/req"
	"botadmin/internal/dto/resp"
	"botadmin/internal/model"
	"botadmin/internal/repository"
	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/logger"
	"botadmin/pkg/redact"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenTTL     = 15 * time.Minute
	RefreshTokenTTL    = 5 * 24 * time.Hour
	BlacklistKeyPrefix = "botadmin:auth:blacklist:"
	Issuer             = "botadmin-auth"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrTokenBlacklisted   = errors.New("token is blacklisted")
	ErrWrongTokenType     = errors.New("token has wrong type")
)

// TokenClaims is carried by both token kinds; TokenType tells them apart.
type TokenClaims struct {
	UserID    uint64 `json:"user_id"`
	Username  string `json:"username"`
	Superuser bool   `json:"is_superuser"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	SigningKey      []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AuthService issues and validates the access/refresh pair. Refresh
// tokens are not rotated; revoked ones are kept in redis until they
// would have expired anyway.
type AuthService struct {
	admins          repository.AdminRepository
	redis           redis.Cmdable
	signingKey      []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

func NewAuthService(admins repository.AdminRepository, rdb redis.Cmdable, cfg AuthConfig) (*AuthService, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("auth: signing key is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = AccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = RefreshTokenTTL
	}
	return &AuthService{
		admins:          admins,
		redis:           rdb,
		signingKey:      cfg.SigningKey,
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		now:             time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and validating tokens.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login checks the credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, r req.LoginReq) (*resp.TokenPair, error) {
	user, err := s.admins.FindByUsername(ctx, r.Username)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(r.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	access, err := s.sign(user, TokenTypeAccess, now, s.accessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, TokenTypeRefresh, now, s.refreshTokenTTL)
	if err != nil {
		return nil, err
	}
	logger.Info("admin logged in", zap.String("username", redact.Username(user.Username)))
	return &resp.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh mints a new access token. The refresh token itself is returned
// to nobody and stays valid until it expires or is blacklisted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*resp.AccessResp, error) {
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.isBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}

	user, err := s.admins.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrTokenInvalid
	}

	access, err := s.sign(user, TokenTypeAccess, s.now(), s.accessTokenTTL)
	if err != nil {
		return nil, err
	}
	return &resp.AccessResp{Access: access}, nil
}

// Blacklist revokes a refresh token. Revoking twice is not an error.
func (s *AuthService) Blacklist(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrTokenInvalid
	}
	if err := s.redis.Set(ctx, BlacklistKeyPrefix+claims.ID, strconv.FormatUint(claims.UserID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// ParseAccess validates a bearer token. Refresh tokens are rejected.
func (s *AuthService) ParseAccess(token string) (*TokenClaims, error) {
	return s.parse(token, TokenTypeAccess)
}

func (s *AuthService) Profile(ctx context.Context, id uint64) (*v1.Profile, error) {
	user, err := s.admins.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrTokenInvalid
	}
	return &v1.Profile{ID: user.ID, Username: user.Username, IsSuperuser: user.IsSuperuser}, nil
}

// EnsureAdmin creates a superuser account unless one with that name exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.admins.Create(ctx, &model.AdminUser{
		Username:     username,
		PasswordHash: string(hash),
		IsSuperuser:  true,
		IsActive:     true,
	}); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("bootstrap admin created", zap.String("username", redact.Username(username)))
	return nil
}

func (s *AuthService) Health(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := s.admins.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (s *AuthService) sign(user *model.AdminUser, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Superuser: user.IsSuperuser,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *AuthService) parse(tokenString, tokenType string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *AuthService) isBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, BlacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}
