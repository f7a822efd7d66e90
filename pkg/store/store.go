package store

import (
	"errors"

	"libris/pkg/domain"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	// Service-layer pre-checks are advisory; this error is the authority.
	ErrDuplicate = errors.New("duplicate key")

	// ErrNotFound is returned by mutating operations targeting a missing row.
	ErrNotFound = errors.New("record not found")
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// PageRequest selects one page of a listing.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies the pagination defaults (page 1, limit 10, limit
// capped at 100).
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// BookFilter narrows book listings. Title and Author match as
// case-insensitive substrings, ISBN and CreatedBy match exactly.
type BookFilter struct {
	Title     string
	Author    string
	ISBN      string
	CreatedBy string
}

// FeedbackFilter narrows feedback listings. Empty fields are ignored.
type FeedbackFilter struct {
	BookID string
	UserID string
	Status domain.FeedbackStatus
}

// Store defines persistence for users, books, and feedback.
//
// Listings are ordered by creation time descending and return the total row
// count alongside the page. Cascading operations (DeleteBook, PurgeUser) run
// inside a single transaction each.
type Store interface {
	// users
	CreateUser(domain.User) error
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)
	// PurgeUser removes the user's feedback, clears created_by on their
	// books, and deletes the user, atomically.
	PurgeUser(id string) error

	// books
	CreateBook(domain.Book) error
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	GetBookByISBN(isbn string) (domain.Book, bool, error)
	ListBooks(f BookFilter, p PageRequest) ([]domain.Book, int64, error)
	// DeleteBook removes the book and its feedback rows.
	DeleteBook(id string) error

	// feedback
	CreateFeedback(domain.Feedback) error
	SaveFeedback(domain.Feedback) error
	GetFeedback(id string) (domain.Feedback, bool, error)
	GetFeedbackByUserAndBook(userID, bookID string) (domain.Feedback, bool, error)
	ListFeedback(f FeedbackFilter, p PageRequest) ([]domain.Feedback, int64, error)
	DeleteFeedback(id string) error
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
}
