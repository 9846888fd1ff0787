package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

const (
	maxDisplayNameLen = 80
	defaultUserLimit  = 50
	maxUserLimit      = 200
)

// Identity is what a verified access token says about its bearer.
type Identity struct {
	Subject string
	Email   string
	Role    domain.Role
}

type UserService struct {
	users port.UserRepository
}

func NewUserService(users port.UserRepository) *UserService {
	return &UserService{users: users}
}

// EnsureUser returns the local user for a token subject, creating it on first
// sight. The token role only seeds new rows; afterwards the stored role wins.
func (s *UserService) EnsureUser(ctx context.Context, id Identity) (*domain.User, error) {
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidInput)
	}

	u, err := s.users.GetUserByAuthID(ctx, id.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	role := id.Role
	if !role.Valid() {
		role = domain.RoleFan
	}

	now := time.Now()
	created := domain.User{
		ID:          uuid.New().String(),
		AuthID:      id.Subject,
		Email:       id.Email,
		DisplayName: defaultDisplayName(id.Email),
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.users.CreateUser(ctx, created)
	if errors.Is(err, domain.ErrConflict) {
		// Either a concurrent first request for this subject won, or the
		// email is already registered to another identity.
		u, lookupErr := s.users.GetUserByAuthID(ctx, id.Subject)
		switch {
		case lookupErr == nil:
			return u, nil
		case !errors.Is(lookupErr, domain.ErrNotFound):
			return nil, fmt.Errorf("lookup user: %w", lookupErr)
		case created.Email != "":
			logging.Ctx(ctx).Warn().Str("auth_id", id.Subject).Msg("email registered to another account, provisioning without it")
			created.Email = ""
			err = s.users.CreateUser(ctx, created)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logging.Ctx(ctx).Info().Str("user_id", created.ID).Str("role", string(role)).Msg("user provisioned")
	return &created, nil
}

func defaultDisplayName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (s *UserService) UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, fmt.Errorf("%w: display name must be 1-%d characters", ErrInvalidInput, maxDisplayNameLen)
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName

	if err := s.users.UpdateUser(ctx, *u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	u.UpdatedAt = time.Now()
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = defaultUserLimit
	}
	if limit > maxUserLimit {
		limit = maxUserLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) UpdateUserRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role

	if err := s.users.UpdateUser(ctx, *u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	u.UpdatedAt = time.Now()

	logging.Ctx(ctx).Info().Str("target_user", id).Str("role", string(role)).Msg("user role changed")
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
