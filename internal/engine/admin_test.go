package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
)

func TestAssignRoles(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	ctx := context.Background()

	got, err := e.AssignRoles(ctx, u.ID, []string{"manager", "user"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !got.Roles.Has(model.RoleManager) || !got.Roles.Has(model.RoleUser) {
		t.Fatalf("roles = %v", got.Roles.Slice())
	}
}

func TestAssignRolesRejectsUnknown(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	ctx := context.Background()

	_, err := e.AssignRoles(ctx, u.ID, []string{"user", "superhero"})
	if !errors.Is(err, apperr.NonExistentRoleSpecified()) {
		t.Fatalf("err = %v, want NON_EXISTENT_ROLE_SPECIFIED", err)
	}
	// Nothing was granted partially.
	if got, _ := users.GetByID(ctx, u.ID); got.Roles.Has(model.RoleManager) || len(got.Roles) != 1 {
		t.Fatalf("stored roles changed: %v", got.Roles.Slice())
	}

	if _, err := e.AssignRoles(ctx, u.ID, nil); !errors.Is(err, apperr.NonExistentRoleSpecified()) {
		t.Fatalf("empty set err = %v", err)
	}
}

func TestRevokeAndRestore(t *testing.T) {
	users := newMemUsers()
	e := newTestEngine(users, nil, nil, true)
	u := mustSignUp(t, e, SignUpArgs{Email: "a@b.c", Password: "hunter22"})
	ctx := context.Background()

	got, err := e.RevokeUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatal("revokedAt not set")
	}

	got, err = e.RestoreUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.RevokedAt != nil {
		t.Fatal("revocation not lifted")
	}

	if _, err := e.RevokeUser(ctx, 404); !errors.Is(err, apperr.UserNotFound()) {
		t.Fatalf("unknown user err = %v", err)
	}
}
