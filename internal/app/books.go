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

// BookInput carries the fields for a new book.
type BookInput struct {
	Title  string
	Author string
	ISBN   string
}

// BookUpdate carries optional book fields; nil means unchanged.
type BookUpdate struct {
	Title  *string
	Author *string
	ISBN   *string
}

// CreateBook adds a catalogue record owned by the actor. Any authenticated
// user may create; the ISBN pre-check is advisory and the unique index is
// the race-safe guard.
func (a *App) CreateBook(actor domain.User, in BookInput) (domain.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	isbn := strings.TrimSpace(in.ISBN)
	if title == "" {
		return domain.Book{}, ErrTitleRequired
	}
	if author == "" {
		return domain.Book{}, ErrAuthorRequired
	}
	if isbn == "" {
		return domain.Book{}, ErrISBNRequired
	}
	if _, exists, err := a.store.GetBookByISBN(isbn); err != nil {
		return domain.Book{}, fmt.Errorf("check isbn: %w", err)
	} else if exists {
		return domain.Book{}, ErrISBNAlreadyExists
	}
	now := time.Now().UTC()
	creator := actor.ID
	book := domain.Book{
		ID:        util.NewID(),
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		CreatedBy: &creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateBook(book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Book{}, ErrISBNAlreadyExists
		}
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// ListBooks returns one page of books, newest first.
func (a *App) ListBooks(f store.BookFilter, p store.PageRequest) ([]domain.Book, domain.PageInfo, error) {
	p = p.Normalize()
	books, total, err := a.store.ListBooks(f, p)
	if err != nil {
		return nil, domain.PageInfo{}, fmt.Errorf("list books: %w", err)
	}
	return books, pageInfo(total, p), nil
}

// ListBooksByUser returns one page of the user's books.
func (a *App) ListBooksByUser(userID string, f store.BookFilter, p store.PageRequest) ([]domain.Book, domain.PageInfo, error) {
	f.CreatedBy = userID
	return a.ListBooks(f, p)
}

// GetBook returns one book.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// UpdateBook applies the provided fields; creator or admin only. An ISBN
// change re-checks uniqueness excluding the book itself.
func (a *App) UpdateBook(actor domain.User, id string, upd BookUpdate) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if err := policy.Allow(actor.ID, actor.Role, policy.OpUpdate, book.Owner()); err != nil {
		return domain.Book{}, err
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return domain.Book{}, ErrTitleRequired
		}
		book.Title = title
	}
	if upd.Author != nil {
		author := strings.TrimSpace(*upd.Author)
		if author == "" {
			return domain.Book{}, ErrAuthorRequired
		}
		book.Author = author
	}
	if upd.ISBN != nil {
		isbn := strings.TrimSpace(*upd.ISBN)
		if isbn == "" {
			return domain.Book{}, ErrISBNRequired
		}
		if isbn != book.ISBN {
			existing, exists, err := a.store.GetBookByISBN(isbn)
			if err != nil {
				return domain.Book{}, fmt.Errorf("check isbn: %w", err)
			}
			if exists && existing.ID != book.ID {
				return domain.Book{}, ErrISBNAlreadyExists
			}
			book.ISBN = isbn
		}
	}
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Book{}, ErrISBNAlreadyExists
		}
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// DeleteBook removes the book and its feedback; creator or admin only.
func (a *App) DeleteBook(actor domain.User, id string) error {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	if err := policy.Allow(actor.ID, actor.Role, policy.OpDelete, book.Owner()); err != nil {
		return err
	}
	if err := a.store.DeleteBook(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// BulkDeleteBooks attempts each id independently; a failed item lands in
// the failed list without aborting the rest.
func (a *App) BulkDeleteBooks(ctx context.Context, actor domain.User, ids []string) (BulkDeleteReport, error) {
	if len(ids) == 0 {
		return BulkDeleteReport{}, ErrNoIDsGiven
	}
	report := BulkDeleteReport{
		Deleted: []string{},
		Failed:  []string{},
	}
	for _, id := range ids {
		if err := a.DeleteBook(actor, id); err != nil {
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Deleted = append(report.Deleted, id)
	}
	report.Message = fmt.Sprintf("deleted %d of %d books", len(report.Deleted), len(ids))
	_ = a.audit.Record(ctx, audit.Event{
		Action:  audit.ActionBookBulkDelete,
		ActorID: actor.ID,
		Target:  strings.Join(report.Deleted, ","),
		Detail:  report.Message,
	})
	return report, nil
}

func pageInfo(total int64, p store.PageRequest) domain.PageInfo {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return domain.PageInfo{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages,
	}
}
