package policy

import (
	"testing"

	"libris/pkg/domain"
)

func TestAllow(t *testing.T) {
	cases := []struct {
		name    string
		actorID string
		role    domain.UserRole
		op      Operation
		ownerID string
		wantOK  bool
	}{
		{"admin updates any resource", "admin-1", domain.RoleAdmin, OpUpdate, "user-2", true},
		{"admin deletes any resource", "admin-1", domain.RoleAdmin, OpDelete, "user-2", true},
		{"admin acts on ownerless resource", "admin-1", domain.RoleAdmin, OpDelete, "", true},
		{"owner updates own resource", "user-1", domain.RoleUser, OpUpdate, "user-1", true},
		{"owner deletes own resource", "user-1", domain.RoleUser, OpDelete, "user-1", true},
		{"user updates someone else's resource", "user-1", domain.RoleUser, OpUpdate, "user-2", false},
		{"user deletes someone else's resource", "user-1", domain.RoleUser, OpDelete, "user-2", false},
		{"user deletes ownerless resource", "user-1", domain.RoleUser, OpDelete, "", false},
		{"any user creates", "user-1", domain.RoleUser, OpCreate, "", true},
		{"any user reads", "user-1", domain.RoleUser, OpRead, "user-2", true},
		{"unknown operation denied", "user-1", domain.RoleUser, Operation("transfer"), "user-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Allow(tc.actorID, tc.role, tc.op, tc.ownerID)
			if tc.wantOK && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.wantOK && err != ErrForbidden {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}
