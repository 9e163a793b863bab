// Package accounts registers users and issues the JWT pairs clients send
// back as bearer tokens.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Token lifetimes
const (
	DefaultAccessTTL  = 60 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// MaxPasswordLength is the longest password bcrypt can hash, in bytes.
const MaxPasswordLength = 72

const (
	issuer       = "carprice"
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u dal.User) error
	GetUserByUsername(ctx context.Context, username string) (dal.User, error)
}

// Claims are carried by both tokens of a pair. TokenType tells them apart.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens.
type Service struct {
	store      UserStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the token lifetimes. Non-positive values keep the default.
func WithTTL(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// New creates an accounts service signing with secret.
func New(store UserStore, secret string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.NewConfigError("accounts", "user store is required", nil)
	}
	if secret == "" {
		return nil, errors.NewConfigError("accounts", "signing secret is empty", nil)
	}
	s := &Service{
		store:      store,
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		cost:       bcrypt.DefaultCost,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account and returns its first token pair.
func (s *Service) Register(ctx context.Context, username, password string) (dal.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return dal.TokenPair{}, errors.NewValidationError("username", "is required")
	}
	if password == "" {
		return dal.TokenPair{}, errors.NewValidationError("password", "is required")
	}
	if len(password) > MaxPasswordLength {
		return dal.TokenPair{}, errors.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return dal.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	u := dal.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return dal.TokenPair{}, err
	}

	s.log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("Registered user")
	return s.issue(u)
}

// Login checks credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (dal.TokenPair, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return dal.TokenPair{}, errors.ErrInvalidCredentials
		}
		return dal.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dal.TokenPair{}, errors.ErrInvalidCredentials
	}
	return s.issue(u)
}

// ValidateAccess parses an access token. Refresh tokens are rejected.
func (s *Service) ValidateAccess(token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenAccess {
		return nil, fmt.Errorf("%w: not an access token", errors.ErrInvalidCredentials)
	}
	return claims, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.ErrInvalidCredentials
	}
	return claims, nil
}

func (s *Service) issue(u dal.User) (dal.TokenPair, error) {
	access, err := s.sign(u, tokenAccess, s.accessTTL)
	if err != nil {
		return dal.TokenPair{}, err
	}
	refresh, err := s.sign(u, tokenRefresh, s.refreshTTL)
	if err != nil {
		return dal.TokenPair{}, err
	}
	return dal.TokenPair{Refresh: refresh, Access: access}, nil
}

func (s *Service) sign(u dal.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    u.ID,
		Username:  u.Username,
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}
