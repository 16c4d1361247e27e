package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erazemk/armeria/internal/db"
	"github.com/erazemk/armeria/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "  brigadiere ", "hash123", model.RoleViewer)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "brigadiere" || user.Role != model.RoleViewer {
		t.Errorf("got %q/%q, want brigadiere/viewer", user.Username, user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.PasswordHash != "hash123" || got.CreatedAt.IsZero() {
		t.Errorf("unexpected stored user %+v", got)
	}

	if missing, err := GetUser(ctx, database, 999); err != nil || missing != nil {
		t.Errorf("GetUser(999) = %v, %v; want nil, nil", missing, err)
	}
}

func TestCreateUserRejects(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "maresciallo", "hash", model.RoleOperator); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tests := []struct {
		name     string
		username string
		role     string
		want     error
	}{
		{"blank name", "   ", model.RoleViewer, ErrInvalidInput},
		{"unknown role", "appuntato", "superuser", ErrInvalidInput},
		{"active name", "maresciallo", model.RoleViewer, ErrDuplicateUsername},
		{"active name padded", " maresciallo", model.RoleViewer, ErrDuplicateUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateUser(ctx, database, tt.username, "hash", tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateUser(%q, %q) error = %v, want %v", tt.username, tt.role, err, tt.want)
			}
		})
	}
}

func TestConcurrentCreateSameUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	const writers = 6
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = CreateUser(ctx, database, "piantone", "hash", model.RoleViewer)
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, ErrDuplicateUsername):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("created %d accounts, want 1", created)
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "alice", "hash", model.RoleAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil || user.Username != "alice" {
		t.Fatalf("expected alice, got %+v", user)
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsersSkipsDeleted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := CreateUser(ctx, database, "a", "hash", model.RoleViewer)
	CreateUser(ctx, database, "b", "hash", model.RoleOperator)

	deleted, err := DeleteUser(ctx, database, a.ID)
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if deleted.Username != "a" {
		t.Errorf("DeleteUser returned %q", deleted.Username)
	}

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Username != "b" {
		t.Errorf("expected only b, got %+v", users)
	}

	if _, err := DeleteUser(ctx, database, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting twice: got %v, want ErrNotFound", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleViewer)
	if err := UpdateUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}

	if err := UpdateUserPassword(ctx, database, 999, "hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user: got %v, want ErrNotFound", err)
	}
}

func TestDeletedUsernameReusable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	old, _ := CreateUser(ctx, database, "operatore", "old", model.RoleOperator)
	if _, err := DeleteUser(ctx, database, old.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := CreateUser(ctx, database, "operatore", "new", model.RoleViewer); err != nil {
		t.Fatalf("CreateUser with reused name: %v", err)
	}

	got, err := GetUserByUsername(ctx, database, "operatore")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.DeletedAt != nil || got.PasswordHash != "new" {
		t.Errorf("expected the active account, got %+v", got)
	}
}

func TestLastAdminStays(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root, _ := CreateUser(ctx, database, "root", "hash", model.RoleAdmin)
	ops, _ := CreateUser(ctx, database, "ops", "hash", model.RoleOperator)

	if _, err := UpdateUser(ctx, database, root.ID, model.RoleOperator); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demoting the only admin: got %v, want ErrLastAdmin", err)
	}
	if _, err := DeleteUser(ctx, database, root.ID); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("deleting the only admin: got %v, want ErrLastAdmin", err)
	}
	if _, err := UpdateUser(ctx, database, root.ID, model.RoleAdmin); err != nil {
		t.Errorf("keeping the admin role: %v", err)
	}

	promoted, err := UpdateUser(ctx, database, ops.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("promoting: %v", err)
	}
	if promoted.Role != model.RoleAdmin {
		t.Errorf("promoted role = %q", promoted.Role)
	}
	if n, _ := CountActiveAdmins(ctx, database); n != 2 {
		t.Fatalf("expected 2 admins, got %d", n)
	}

	if _, err := DeleteUser(ctx, database, root.ID); err != nil {
		t.Fatalf("deleting one of two admins: %v", err)
	}
	if n, _ := CountActiveAdmins(ctx, database); n != 1 {
		t.Errorf("expected 1 admin after delete, got %d", n)
	}
	if _, err := UpdateUser(ctx, database, ops.ID, model.RoleViewer); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demoting the remaining admin: got %v, want ErrLastAdmin", err)
	}
	if _, err := UpdateUser(ctx, database, root.ID, model.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("updating a deleted user: got %v, want ErrNotFound", err)
	}
	if _, err := UpdateUser(ctx, database, ops.ID, "superuser"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown role: got %v, want ErrInvalidInput", err)
	}
}

func TestConcurrentAdminDemotion(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := CreateUser(ctx, database, "a", "hash", model.RoleAdmin)
	b, _ := CreateUser(ctx, database, "b", "hash", model.RoleAdmin)

	var wg sync.WaitGroup
	for _, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UpdateUser(ctx, database, id, model.RoleViewer)
		}()
	}
	wg.Wait()

	if n, _ := CountActiveAdmins(ctx, database); n != 1 {
		t.Errorf("expected exactly 1 admin left, got %d", n)
	}
}
