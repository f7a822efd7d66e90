// Package policy holds the single authorization decision for resource
// operations. Every service path runs the same function instead of carrying
// its own admin/owner branches.
package policy

import (
	"errors"

	"libris/pkg/domain"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ErrForbidden is returned when the actor is authenticated but not allowed
// to perform the operation on the target resource.
var ErrForbidden = errors.New("forbidden")

// Allow decides whether the actor may perform op on a resource owned by
// ownerID. Pure function, no I/O.
//
// Admins may do anything. Creation has no owner yet and reading is open to
// everyone; visibility of hidden feedback is a service-level filter, not an
// ownership question. Updates and deletes require ownership. An empty
// ownerID means the resource has no owner (or the operation is admin-scoped),
// so only admins pass.
func Allow(actorID string, role domain.UserRole, op Operation, ownerID string) error {
	if role == domain.RoleAdmin {
		return nil
	}
	switch op {
	case OpCreate, OpRead:
		return nil
	case OpUpdate, OpDelete:
		if ownerID != "" && actorID == ownerID {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}
