// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/leadboard/internal/auth"
	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/policy"
)

var ErrInvalidRole = fmt.Errorf("invalid role: %w", core.ErrInvalidInput)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	u auth.NewUser,
) (*auth.UserInfo, error) {
	role := u.Role
	if role == "" {
		role = policy.RoleUser
	}
	if !policy.IsValidRole(role) {
		return nil, fmt.Errorf("create user: %q: %w", role, ErrInvalidRole)
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("create user: empty password hash: %w", core.ErrInvalidInput)
	}
	username := strings.TrimSpace(u.Username)
	if username == "" {
		return nil, fmt.Errorf("create user: blank username: %w", core.ErrInvalidInput)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        normalizeEmail(u.Email),
		Mobile:       u.Mobile,
		PasswordHash: u.PasswordHash,
		Role:         role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// ChangeRole sets the role of the account identified by email. Only a
// master-admin caller may do so, and only to user or admin.
func (s *Service) ChangeRole(
	ctx context.Context,
	callerRole, email, role string,
) (*User, error) {
	if err := policy.Authorize(policy.ActionChangeRole, callerRole); err != nil {
		return nil, fmt.Errorf("change role: %w", err)
	}

	if !policy.IsAssignableRole(role) {
		return nil, fmt.Errorf("change role: %q: %w", role, ErrInvalidRole)
	}

	return s.repo.UpdateRole(ctx, normalizeEmail(email), role)
}

func (s *Service) ListUsers(
	ctx context.Context,
	callerRole string,
	params ListUsersParams,
) ([]User, int, error) {
	if err := policy.Authorize(policy.ActionListUsers, callerRole); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	params.Search = strings.TrimSpace(params.Search)
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Mobile:       u.Mobile,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
	}
}

var _ auth.UserProvider = (*Service)(nil)
