package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

func TestEnsureUser_CreatesOnce(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo)
	id := Identity{Subject: "sub-1", Email: "paco@ochio.club"}

	first, err := svc.EnsureUser(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Role != domain.RoleFan || first.DisplayName != "paco" {
		t.Errorf("unexpected new user: %+v", first)
	}

	second, err := svc.EnsureUser(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same user, got %s and %s", first.ID, second.ID)
	}
	if len(repo.users) != 1 {
		t.Errorf("expected one stored user, got %d", len(repo.users))
	}
}

func TestEnsureUser_StoredRoleWins(t *testing.T) {
	repo := newMockUserRepo(domain.User{ID: "u1", AuthID: "sub-1", Role: domain.RoleVendor})
	svc := NewUserService(repo)

	u, err := svc.EnsureUser(context.Background(), Identity{Subject: "sub-1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != domain.RoleVendor {
		t.Errorf("expected stored vendor role, got %s", u.Role)
	}

	fresh, _ := svc.EnsureUser(context.Background(), Identity{Subject: "sub-2", Role: domain.RoleAdmin})
	if fresh.Role != domain.RoleAdmin {
		t.Errorf("expected token role to seed new user, got %s", fresh.Role)
	}
}

func TestEnsureUser_WithoutEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo)
	ctx := context.Background()

	for _, sub := range []string{"phone-user-1", "phone-user-2"} {
		u, err := svc.EnsureUser(ctx, Identity{Subject: sub})
		if err != nil {
			t.Fatalf("EnsureUser(%s): unexpected error: %v", sub, err)
		}
		if u.AuthID != sub {
			t.Errorf("expected auth id %s, got %s", sub, u.AuthID)
		}
	}
	if len(repo.users) != 2 {
		t.Errorf("expected two stored users, got %d", len(repo.users))
	}
}

func TestEnsureUser_EmailTakenByAnotherIdentity(t *testing.T) {
	repo := newMockUserRepo(domain.User{ID: "u1", AuthID: "sub-1", Email: "paco@ochio.club", Role: domain.RoleFan})
	svc := NewUserService(repo)
	ctx := context.Background()

	u, err := svc.EnsureUser(ctx, Identity{Subject: "sub-2", Email: "paco@ochio.club"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.AuthID != "sub-2" || u.Email != "" {
		t.Errorf("expected sub-2 provisioned without email, got %+v", u)
	}

	again, err := svc.EnsureUser(ctx, Identity{Subject: "sub-2", Email: "paco@ochio.club"})
	if err != nil {
		t.Fatalf("unexpected error on repeat: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("expected same user on repeat, got %s and %s", u.ID, again.ID)
	}
}

func TestEnsureUser_NoSubject(t *testing.T) {
	svc := NewUserService(newMockUserRepo())
	if _, err := svc.EnsureUser(context.Background(), Identity{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	repo := newMockUserRepo(domain.User{ID: "u1", AuthID: "sub-1", DisplayName: "old", Role: domain.RoleFan})
	svc := NewUserService(repo)

	u, err := svc.UpdateDisplayName(context.Background(), "u1", "  Lola  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.DisplayName != "Lola" || repo.users["u1"].DisplayName != "Lola" {
		t.Errorf("expected trimmed name stored, got %q", u.DisplayName)
	}

	for _, bad := range []string{"", "   ", strings.Repeat("x", 81)} {
		if _, err := svc.UpdateDisplayName(context.Background(), "u1", bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %q, got: %v", bad, err)
		}
	}
}

func TestUpdateUserRole(t *testing.T) {
	repo := newMockUserRepo(domain.User{ID: "u1", Role: domain.RoleFan})
	svc := NewUserService(repo)

	u, err := svc.UpdateUserRole(context.Background(), "u1", domain.RoleVendor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != domain.RoleVendor {
		t.Errorf("expected vendor, got %s", u.Role)
	}

	if _, err := svc.UpdateUserRole(context.Background(), "u1", "root"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
	if _, err := svc.UpdateUserRole(context.Background(), "ghost", domain.RoleFan); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}
