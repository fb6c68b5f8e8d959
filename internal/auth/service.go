// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/middleware"
	"github.com/carterperez-dev/leadboard/internal/policy"
)

// ErrInvalidCredentials covers an unknown email, a wrong password and an
// account whose role may not open a session. Callers cannot tell which.
var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)
	ErrEmailExists        = fmt.Errorf("email already exists: %w", core.ErrDuplicateKey)
)

type UserInfo struct {
	ID           string
	Username     string
	Email        string
	Mobile       string
	PasswordHash string
	Role         string
}

type NewUser struct {
	Username     string
	Email        string
	Mobile       string
	PasswordHash string
	Role         string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	Create(ctx context.Context, u NewUser) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type TokenIssuer interface {
	Issue(identity Identity) (string, time.Time, error)
	Verify(token string) (*Claims, error)
}

type Service struct {
	tokens       TokenIssuer
	userProvider UserProvider
	registry     Registry
	logger       *slog.Logger
}

func NewService(
	tokens TokenIssuer,
	userProvider UserProvider,
	registry Registry,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tokens:       tokens,
		userProvider: userProvider,
		registry:     registry,
		logger:       logger,
	}
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*RegisterResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w: %w", core.ErrDependency, err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		Mobile:       string(req.Mobile),
		PasswordHash: passwordHash,
		Role:         policy.RoleUser,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &RegisterResponse{
		User:    toUserResponse(user),
		Message: "User registered successfully",
	}, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*LoginResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			s.logger.DebugContext(ctx, "login rejected", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		s.logger.DebugContext(ctx, "login rejected", "reason", "wrong_password")
		return nil, ErrInvalidCredentials
	}

	if err := policy.Authorize(policy.ActionLogin, user.Role); err != nil {
		s.logger.DebugContext(ctx, "login rejected", "reason", "role_not_permitted", "role", user.Role)
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		if err := s.userProvider.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed", "error", err)
		}
	}

	token, expiresAt, err := s.tokens.Issue(Identity{
		Email: user.Email,
		Role:  user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Role:      user.Role,
		Name:      user.Username,
		Message:   "User login successfully",
	}, nil
}

// Logout revokes token until its expiry. Revoking twice is harmless.
func (s *Service) Logout(
	ctx context.Context,
	token string,
	expiresAt time.Time,
) error {
	if token == "" {
		return fmt.Errorf("logout: %w", core.ErrMissingToken)
	}

	if err := s.registry.Revoke(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// Authenticate is the guard's verification step: signature and expiry, then
// revocation.
func (s *Service) Authenticate(
	ctx context.Context,
	token string,
) (*middleware.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("authenticate: %w", core.ErrMissingToken)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.registry.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("authenticate: %w", core.ErrTokenRevoked)
	}

	return &middleware.Identity{
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// BootstrapMasterAdmin creates the master-admin account if no account with
// that email exists. An existing account is left untouched.
func (s *Service) BootstrapMasterAdmin(
	ctx context.Context,
	username, email, mobile, password string,
) (bool, error) {
	_, err := s.userProvider.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("lookup master admin: %w", err)
	}

	passwordHash, err := core.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	if username == "" {
		username = "master-admin"
	}

	_, err = s.userProvider.Create(ctx, NewUser{
		Username:     username,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		Role:         policy.RoleMasterAdmin,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("create master admin: %w", err)
	}

	return true, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

var _ middleware.TokenVerifier = (*Service)(nil)
