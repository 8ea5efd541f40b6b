package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
	"roadAccident/pkg/validator"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "road-accident"

type AuthConfig struct {
	Secret        []byte
	TTL           time.Duration
	AdminEmail    string
	AdminPassword string
}

type AuthService struct {
	users  UserRepository
	cfg    AuthConfig
	logger *slog.Logger
}

type accessClaims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(users UserRepository, cfg AuthConfig, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, cfg: cfg, logger: logger}
}

func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("register: %v: %w", err, e.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, e.Wrap("register: hash password", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", u.ID.String()))
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	u, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// AdminLogin only succeeds for admin accounts. Other accounts get the same
// error as a wrong password.
func (s *AuthService) AdminLogin(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	u, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleAdmin {
		s.logger.Warn("admin login by non-admin", slog.String("user_id", u.ID.String()))
		return nil, e.ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *AuthService) ParseToken(token string) (*domain.Principal, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %v: %w", err, e.ErrUnauthorized)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", e.ErrUnauthorized)
	}
	return &domain.Principal{UserID: id, Email: claims.Email, Role: claims.Role}, nil
}

// EnsureAdmin seeds the configured admin account. It is skipped when no
// admin password is configured.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.cfg.AdminPassword == "" {
		s.logger.Warn("ADMIN_PASSWORD not set, admin account not seeded")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return e.Wrap("seed admin: hash password", err)
	}
	u := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail)),
		FullName:     "Administrator",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := s.users.UpsertAdmin(ctx, u); err != nil {
		return err
	}
	s.logger.Info("admin account ready", slog.String("email", u.Email))
	return nil
}

func (s *AuthService) authenticate(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("login: %v: %w", err, e.ErrInvalidInput)
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, e.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, e.ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) issue(u *domain.User) (*domain.TokenResponse, error) {
	now := time.Now()
	claims := &accessClaims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return nil, e.Wrap("sign token", err)
	}
	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.TTL.Seconds()),
		User:        u,
	}, nil
}
