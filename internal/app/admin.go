package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"libris/pkg/audit"
	"libris/pkg/domain"
	"libris/pkg/policy"
	"libris/pkg/store"
)

const bulkDeleteConcurrency = 4

// BulkDeleteReport summarizes a multi-item deletion.
type BulkDeleteReport struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
	Message string   `json:"message"`
}

// ListUsers returns all users; admin only. Reads are normally open to
// everyone, so the user directory gets an explicit role gate instead of
// going through policy.Allow.
func (a *App) ListUsers(actor domain.User) ([]domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, policy.ErrForbidden
	}
	return a.store.ListUsers()
}

// AdminCreateUser provisions an account with an explicit role without
// issuing a session for it; admin only.
func (a *App) AdminCreateUser(actor domain.User, email, password, firstName, lastName string, role domain.UserRole) (domain.User, error) {
	if err := policy.Allow(actor.ID, actor.Role, policy.OpUpdate, ""); err != nil {
		return domain.User{}, err
	}
	user, _, err := a.Register(email, password, firstName, lastName, role)
	return user, err
}

// AdminUpdateUser changes role and/or active status; admin only. Admins
// cannot demote or suspend themselves.
func (a *App) AdminUpdateUser(actor domain.User, userID string, role *domain.UserRole, active *bool) (domain.User, error) {
	if err := policy.Allow(actor.ID, actor.Role, policy.OpUpdate, ""); err != nil {
		return domain.User{}, err
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if role != nil && *role != domain.RoleUser && *role != domain.RoleAdmin {
		return domain.User{}, ErrInvalidRole
	}
	if target.ID == actor.ID {
		if role != nil && *role != actor.Role {
			return domain.User{}, ErrCannotChangeOwnRole
		}
		if active != nil && !*active {
			return domain.User{}, ErrCannotSuspendSelf
		}
	}
	if role != nil {
		target.Role = *role
	}
	if active != nil {
		target.Active = *active
	}
	target.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(target); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return target, nil
}

// PurgeUser deletes a user and everything referencing it: feedback rows go,
// created_by on their books is cleared. One transaction; a failure leaves
// everything in place. Admin only.
func (a *App) PurgeUser(ctx context.Context, actor domain.User, userID string) (BulkDeleteReport, error) {
	if err := policy.Allow(actor.ID, actor.Role, policy.OpDelete, ""); err != nil {
		return BulkDeleteReport{}, err
	}
	if userID == actor.ID {
		return BulkDeleteReport{}, ErrCannotSuspendSelf
	}
	if err := a.store.PurgeUser(userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return BulkDeleteReport{}, ErrUserNotFound
		}
		return BulkDeleteReport{}, fmt.Errorf("purge user: %w", err)
	}
	report := BulkDeleteReport{
		Deleted: []string{userID},
		Failed:  []string{},
		Message: "deleted 1 of 1 users",
	}
	_ = a.audit.Record(ctx, audit.Event{
		Action:  audit.ActionUserPurge,
		ActorID: actor.ID,
		Target:  userID,
	})
	return report, nil
}

// BulkDeleteUsers purges each user in its own independent transaction, so
// one failed item never rolls back the others; failures are collected
// rather than propagated. Admin only. The actor's own id always lands in
// the failed list.
func (a *App) BulkDeleteUsers(ctx context.Context, actor domain.User, ids []string) (BulkDeleteReport, error) {
	if err := policy.Allow(actor.ID, actor.Role, policy.OpDelete, ""); err != nil {
		return BulkDeleteReport{}, err
	}
	if len(ids) == 0 {
		return BulkDeleteReport{}, ErrNoIDsGiven
	}
	// Each goroutine writes its own slot, so no lock is needed around
	// the results slice.
	results := make([]error, len(ids))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(bulkDeleteConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if id == actor.ID {
				results[i] = ErrCannotSuspendSelf
				return nil
			}
			results[i] = a.store.PurgeUser(id)
			return nil
		})
	}
	_ = g.Wait()

	report := BulkDeleteReport{
		Deleted: []string{},
		Failed:  []string{},
	}
	for i, id := range ids {
		if results[i] != nil {
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Deleted = append(report.Deleted, id)
	}
	report.Message = fmt.Sprintf("deleted %d of %d users", len(report.Deleted), len(ids))
	_ = a.audit.Record(ctx, audit.Event{
		Action:  audit.ActionUserBulkDelete,
		ActorID: actor.ID,
		Target:  strings.Join(report.Deleted, ","),
		Detail:  report.Message,
	})
	return report, nil
}
