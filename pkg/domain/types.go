package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type FeedbackStatus string

const (
	StatusVisible FeedbackStatus = "visible"
	StatusHidden  FeedbackStatus = "hidden"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Book is a catalogue record. CreatedBy is a weak reference to the creating
// user and becomes nil when that user is deleted.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn"`
	CreatedBy *string   `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Owner returns the creator user ID, or "" when the creator was deleted.
func (b Book) Owner() string {
	if b.CreatedBy == nil {
		return ""
	}
	return *b.CreatedBy
}

type Feedback struct {
	ID        string         `json:"id"`
	Rating    int            `json:"rating"`
	Comment   string         `json:"comment"`
	Status    FeedbackStatus `json:"status"`
	UserID    string         `json:"userId"`
	BookID    string         `json:"bookId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// PageInfo describes one page of a filtered listing.
type PageInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}
