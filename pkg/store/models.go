package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	Role         string    `gorm:"not null"`
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID        string  `gorm:"primaryKey"`
	Title     string  `gorm:"not null"`
	Author    string  `gorm:"not null"`
	ISBN      string  `gorm:"uniqueIndex;not null"`
	CreatedBy *string `gorm:"index"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

type FeedbackModel struct {
	ID        string `gorm:"primaryKey"`
	Rating    int    `gorm:"not null"`
	Comment   string `gorm:"type:text;not null"`
	Status    string `gorm:"not null"`
	UserID    string `gorm:"not null;uniqueIndex:idx_feedback_user_book"`
	BookID    string `gorm:"not null;uniqueIndex:idx_feedback_user_book;index"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}
