package app

import (
	"errors"
	"testing"
	"time"

	"libris/pkg/domain"
	"libris/pkg/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(Config{
		Store:      store.NewMemoryStore(),
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func registerUser(t *testing.T, a *App, email string, role domain.UserRole) domain.User {
	t.Helper()
	u, _, err := a.Register(email, "password123", "Test", "User", role)
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestApp(t)

	user, token, err := a.Register("Reader@Example.COM", "password123", "Ada", "Lovelace", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Errorf("role = %q, want user", user.Role)
	}
	if !user.Active {
		t.Error("new user not active")
	}
	if token == "" {
		t.Error("no token issued")
	}

	got, err := a.UserFromToken(token)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("resolved user %q, want %q", got.ID, user.ID)
	}

	if _, _, err := a.Login("reader@example.com", "password123"); err != nil {
		t.Errorf("Login: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	registerUser(t, a, "dup@example.com", "")

	_, _, err := a.Register("DUP@example.com", "password123", "", "", "")
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("duplicate register err = %v, want ErrEmailAlreadyExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name     string
		email    string
		password string
		role     domain.UserRole
		want     error
	}{
		{"missing email", "", "password123", "", ErrEmailAndPasswordRequired},
		{"missing password", "a@b.com", "", "", ErrEmailAndPasswordRequired},
		{"bad role", "a@b.com", "password123", "superuser", ErrInvalidRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := a.Register(tc.email, tc.password, "", "", tc.role)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestApp(t)
	registerUser(t, a, "u@example.com", "")

	if _, _, err := a.Login("u@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := a.Login("nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

// A suspended account with the wrong password must report bad credentials,
// not suspension, so suspension status never leaks without valid
// credentials.
func TestLoginSuspendedOrdering(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	user := registerUser(t, a, "banned@example.com", "")

	inactive := false
	if _, err := a.AdminUpdateUser(admin, user.ID, nil, &inactive); err != nil {
		t.Fatalf("AdminUpdateUser: %v", err)
	}

	if _, _, err := a.Login("banned@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("suspended+wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := a.Login("banned@example.com", "password123"); !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("suspended+correct password err = %v, want ErrAccountSuspended", err)
	}
}

func TestUserFromTokenSuspended(t *testing.T) {
	a := newTestApp(t)
	admin := registerUser(t, a, "admin@example.com", domain.RoleAdmin)
	user, token, err := a.Register("soon-gone@example.com", "password123", "", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	inactive := false
	if _, err := a.AdminUpdateUser(admin, user.ID, nil, &inactive); err != nil {
		t.Fatalf("AdminUpdateUser: %v", err)
	}
	if _, err := a.UserFromToken(token); !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("token for suspended account err = %v, want ErrAccountSuspended", err)
	}
	if _, err := a.UserFromToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token err = %v, want ErrInvalidToken", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	a := newTestApp(t)
	user := registerUser(t, a, "me@example.com", "")
	registerUser(t, a, "taken@example.com", "")

	newName := "Renamed"
	updated, err := a.UpdateProfile(user.ID, ProfileUpdate{FirstName: &newName})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FirstName != "Renamed" {
		t.Errorf("first name = %q", updated.FirstName)
	}

	taken := "taken@example.com"
	if _, err := a.UpdateProfile(user.ID, ProfileUpdate{Email: &taken}); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("email collision err = %v, want ErrEmailAlreadyExists", err)
	}

	same := "me@example.com"
	if _, err := a.UpdateProfile(user.ID, ProfileUpdate{Email: &same}); err != nil {
		t.Errorf("keeping own email should succeed, got %v", err)
	}
}
