package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	// ErrAccountSuspended is returned only after the credentials verified,
	// so suspension status never leaks to unverified callers.
	ErrAccountSuspended = errors.New("account suspended")

	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")

	ErrBookNotFound      = errors.New("book not found")
	ErrISBNAlreadyExists = errors.New("a book with this ISBN already exists")

	ErrFeedbackNotFound  = errors.New("feedback not found")
	ErrDuplicateFeedback = errors.New("you have already left feedback for this book")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrTitleRequired            = errors.New("title is required")
	ErrAuthorRequired           = errors.New("author is required")
	ErrISBNRequired             = errors.New("isbn is required")
	ErrRatingOutOfRange         = errors.New("rating must be between 1 and 5")
	ErrCommentRequired          = errors.New("comment is required")
	ErrCommentTooLong           = errors.New("comment must be at most 1000 characters")
	ErrInvalidStatus            = errors.New("status must be visible or hidden")
	ErrInvalidRole              = errors.New("role must be admin or user")
	ErrNoIDsGiven               = errors.New("at least one id is required")

	ErrCannotChangeOwnRole = errors.New("cannot change own role")
	ErrCannotSuspendSelf   = errors.New("cannot suspend self")
)

// RateLimitError rejects a feedback creation attempt inside the rate window.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (1 feedback per minute per user), retry in %d seconds", e.RetryAfter)
}

// IsValidation reports whether err is a malformed-input failure.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrEmailAndPasswordRequired,
		ErrTitleRequired,
		ErrAuthorRequired,
		ErrISBNRequired,
		ErrRatingOutOfRange,
		ErrCommentRequired,
		ErrCommentTooLong,
		ErrInvalidStatus,
		ErrInvalidRole,
		ErrNoIDsGiven,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
