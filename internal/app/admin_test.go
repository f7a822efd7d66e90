package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"libris/pkg/domain"
	"libris/pkg/policy"
)

func TestListUsersAdminOnly(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	user := registerUser(t, a, "user@example.com", "")

	if _, err := a.ListUsers(user); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("non-admin list err = %v, want ErrForbidden", err)
	}
	users, err := a.ListUsers(admin)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}
}

func TestAdminCreateUser(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	user := registerUser(t, a, "user@example.com", "")

	created, err := a.AdminCreateUser(admin, "mod@example.com", "password123", "Mod", "Erator", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("AdminCreateUser: %v", err)
	}
	if created.Role != domain.RoleAdmin {
		t.Errorf("role = %q, want admin", created.Role)
	}

	if _, err := a.AdminCreateUser(user, "x@example.com", "password123", "", "", domain.RoleUser); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("non-admin create err = %v, want ErrForbidden", err)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	user := registerUser(t, a, "user@example.com", "")

	adminRole := domain.RoleAdmin
	promoted, err := a.AdminUpdateUser(admin, user.ID, &adminRole, nil)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != domain.RoleAdmin {
		t.Errorf("role = %q, want admin", promoted.Role)
	}

	inactive := false
	suspended, err := a.AdminUpdateUser(admin, user.ID, nil, &inactive)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.Active {
		t.Error("user still active after suspension")
	}

	if _, err := a.AdminUpdateUser(user, admin.ID, nil, &inactive); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("non-admin update err = %v, want ErrForbidden", err)
	}
	if _, err := a.AdminUpdateUser(admin, "missing", nil, &inactive); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestAdminSelfProtection(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)

	userRole := domain.RoleUser
	if _, err := a.AdminUpdateUser(admin, admin.ID, &userRole, nil); !errors.Is(err, ErrCannotChangeOwnRole) {
		t.Errorf("self demotion err = %v, want ErrCannotChangeOwnRole", err)
	}
	inactive := false
	if _, err := a.AdminUpdateUser(admin, admin.ID, nil, &inactive); !errors.Is(err, ErrCannotSuspendSelf) {
		t.Errorf("self suspension err = %v, want ErrCannotSuspendSelf", err)
	}

	// Keeping the current role or re-activating yourself is allowed.
	adminRole := domain.RoleAdmin
	active := true
	if _, err := a.AdminUpdateUser(admin, admin.ID, &adminRole, &active); err != nil {
		t.Errorf("no-op self update: %v", err)
	}
}

func TestPurgeUser(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	victim := registerUser(t, a, "victim@example.com", "")
	reader := registerUser(t, a, "reader@example.com", "")
	book := createBook(t, a, victim, "isbn-1")
	fb, err := a.CreateFeedback(victim, FeedbackInput{BookID: book.ID, Rating: 3, Comment: "mine"})
	if err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	ctx := context.Background()

	if _, err := a.PurgeUser(ctx, reader, victim.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Errorf("non-admin purge err = %v, want ErrForbidden", err)
	}

	report, err := a.PurgeUser(ctx, admin, victim.ID)
	if err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}
	if len(report.Deleted) != 1 || report.Deleted[0] != victim.ID {
		t.Errorf("report = %+v", report)
	}

	// User and feedback gone, book orphaned but intact.
	if _, _, err := a.Login("victim@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("purged user can still log in: %v", err)
	}
	if _, err := a.GetFeedback(admin, fb.ID); !errors.Is(err, ErrFeedbackNotFound) {
		t.Errorf("feedback survived purge: %v", err)
	}
	kept, err := a.GetBook(book.ID)
	if err != nil {
		t.Fatalf("book disappeared with its creator: %v", err)
	}
	if kept.CreatedBy != nil {
		t.Errorf("created_by = %q, want cleared", *kept.CreatedBy)
	}

	if _, err := a.PurgeUser(ctx, admin, victim.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("double purge err = %v, want ErrUserNotFound", err)
	}
	if _, err := a.PurgeUser(ctx, admin, admin.ID); !errors.Is(err, ErrCannotSuspendSelf) {
		t.Errorf("self purge err = %v, want ErrCannotSuspendSelf", err)
	}
}

func TestBulkDeleteUsers(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	ctx := context.Background()

	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		u := registerUser(t, a, fmt.Sprintf("user%d@example.com", i), "")
		ids = append(ids, u.ID)
	}
	// Mix in the admin itself and a missing id; both must fail without
	// touching the rest.
	ids = append(ids, admin.ID, "missing")

	report, err := a.BulkDeleteUsers(ctx, admin, ids)
	if err != nil {
		t.Fatalf("BulkDeleteUsers: %v", err)
	}
	if len(report.Deleted) != 6 {
		t.Errorf("deleted %d users, want 6: %v", len(report.Deleted), report.Deleted)
	}
	if len(report.Failed) != 2 {
		t.Errorf("failed = %v, want admin id and missing id", report.Failed)
	}
	if report.Message != "deleted 6 of 8 users" {
		t.Errorf("message = %q", report.Message)
	}

	users, err := a.ListUsers(admin)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("%d users remain, want only the admin", len(users))
	}

	if _, err := a.BulkDeleteUsers(ctx, admin, nil); !errors.Is(err, ErrNoIDsGiven) {
		t.Errorf("empty ids err = %v, want ErrNoIDsGiven", err)
	}
}
