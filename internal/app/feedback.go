package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"libris/internal/util"
	"libris/pkg/audit"
	"libris/pkg/domain"
	"libris/pkg/policy"
	"libris/pkg/store"
)

const maxCommentLength = 1000

// FeedbackInput carries the fields for a new feedback row.
type FeedbackInput struct {
	BookID  string
	Rating  int
	Comment string
}

// FeedbackUpdate carries optional feedback fields; nil means unchanged.
type FeedbackUpdate struct {
	Rating  *int
	Comment *string
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}

func validateComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", ErrCommentRequired
	}
	if len(comment) > maxCommentLength {
		return "", ErrCommentTooLong
	}
	return comment, nil
}

// CreateFeedback records the actor's feedback for a book. Both the book and
// the acting user must exist; the (user, book) pair is unique, guarded by
// an advisory pre-check and, authoritatively, the composite unique index.
// New feedback is always visible.
func (a *App) CreateFeedback(actor domain.User, in FeedbackInput) (domain.Feedback, error) {
	if !validRating(in.Rating) {
		return domain.Feedback{}, ErrRatingOutOfRange
	}
	comment, err := validateComment(in.Comment)
	if err != nil {
		return domain.Feedback{}, err
	}
	if _, ok, err := a.store.GetBook(in.BookID); err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch book: %w", err)
	} else if !ok {
		return domain.Feedback{}, ErrBookNotFound
	}
	if _, ok, err := a.store.GetUserByID(actor.ID); err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch user: %w", err)
	} else if !ok {
		return domain.Feedback{}, ErrUserNotFound
	}
	if _, exists, err := a.store.GetFeedbackByUserAndBook(actor.ID, in.BookID); err != nil {
		return domain.Feedback{}, fmt.Errorf("check existing feedback: %w", err)
	} else if exists {
		return domain.Feedback{}, ErrDuplicateFeedback
	}
	now := time.Now().UTC()
	feedback := domain.Feedback{
		ID:        util.NewID(),
		Rating:    in.Rating,
		Comment:   comment,
		Status:    domain.StatusVisible,
		UserID:    actor.ID,
		BookID:    in.BookID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateFeedback(feedback); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Feedback{}, ErrDuplicateFeedback
		}
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return feedback, nil
}

// ListFeedback returns one page of feedback, newest first. Non-admin actors
// are always pinned to visible rows, whatever status filter they asked for.
func (a *App) ListFeedback(actor domain.User, f store.FeedbackFilter, p store.PageRequest) ([]domain.Feedback, domain.PageInfo, error) {
	if actor.Role != domain.RoleAdmin {
		f.Status = domain.StatusVisible
	} else if f.Status != "" && f.Status != domain.StatusVisible && f.Status != domain.StatusHidden {
		return nil, domain.PageInfo{}, ErrInvalidStatus
	}
	p = p.Normalize()
	items, total, err := a.store.ListFeedback(f, p)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list feedback: %w", err)
	}
	return items, pageInfo(total, p), nil
}

// ListFeedbackByBook returns one page of a book's visible feedback. The
// book must exist.
func (a *App) ListFeedbackByBook(actor domain.User, bookID string, p store.PageRequest) ([]domain.Feedback, domain.PageInfo, error) {
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("fetch book: %w", err)
	} else if !ok {
		return nil, domain.PageInfo{}, ErrBookNotFound
	}
	return a.ListFeedback(actor, store.FeedbackFilter{BookID: bookID}, p)
}

// GetFeedback returns one feedback row. Hidden rows exist only for admins;
// everyone else gets not-found, not forbidden, so hidden IDs stay
// unobservable.
func (a *App) GetFeedback(actor domain.User, id string) (domain.Feedback, error) {
	feedback, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return domain.Feedback{}, ErrFeedbackNotFound
	}
	if feedback.Status == domain.StatusHidden && actor.Role != domain.RoleAdmin {
		return domain.Feedback{}, ErrFeedbackNotFound
	}
	return feedback, nil
}

// UpdateFeedback applies the provided fields; owner or admin only.
func (a *App) UpdateFeedback(actor domain.User, id string, upd FeedbackUpdate) (domain.Feedback, error) {
	feedback, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return domain.Feedback{}, ErrFeedbackNotFound
	}
	if err := policy.Allow(actor.ID, actor.Role, policy.OpUpdate, feedback.UserID); err != nil {
		return domain.Feedback{}, err
	}
	if upd.Rating != nil {
		if !validRating(*upd.Rating) {
			return domain.Feedback{}, ErrRatingOutOfRange
		}
		feedback.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		comment, err := validateComment(*upd.Comment)
		if err != nil {
			return domain.Feedback{}, err
		}
		feedback.Comment = comment
	}
	feedback.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveFeedback(feedback); err != nil {
		return domain.Feedback{}, fmt.Errorf("update feedback: %w", err)
	}
	return feedback, nil
}

// ModerateFeedback flips visibility; admin only. Setting the current status
// again succeeds and changes nothing.
func (a *App) ModerateFeedback(ctx context.Context, actor domain.User, id string, status domain.FeedbackStatus) (domain.Feedback, error) {
	if status != domain.StatusVisible && status != domain.StatusHidden {
		return domain.Feedback{}, ErrInvalidStatus
	}
	if err := policy.Allow(actor.ID, actor.Role, policy.OpUpdate, ""); err != nil {
		return domain.Feedback{}, err
	}
	feedback, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return domain.Feedback{}, ErrFeedbackNotFound
	}
	feedback.Status = status
	feedback.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveFeedback(feedback); err != nil {
		return domain.Feedback{}, fmt.Errorf("update feedback: %w", err)
	}
	_ = a.audit.Record(ctx, audit.Event{
		Action:  audit.ActionFeedbackModerate,
		ActorID: actor.ID,
		Target:  feedback.ID,
		Detail:  string(status),
	})
	return feedback, nil
}

// DeleteFeedback removes one feedback row; owner or admin only.
func (a *App) DeleteFeedback(actor domain.User, id string) error {
	feedback, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return ErrFeedbackNotFound
	}
	if err := policy.Allow(actor.ID, actor.Role, policy.OpDelete, feedback.UserID); err != nil {
		return err
	}
	if err := a.store.DeleteFeedback(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFeedbackNotFound
		}
		return fmt.Errorf("delete feedback: %w", err)
	}
	return nil
}
