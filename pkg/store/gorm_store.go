package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"libris/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BookModel{}, &FeedbackModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				UPDATE book_models b
				SET created_by = NULL
				WHERE b.created_by IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = b.created_by);
				DELETE FROM feedback_models f
				WHERE NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = f.user_id)
				   OR NOT EXISTS (SELECT 1 FROM book_models b WHERE b.id = f.book_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'book_models'
					AND constraint_name = 'book_models_created_by_fkey'
				) THEN
					ALTER TABLE book_models
					ADD CONSTRAINT book_models_created_by_fkey
					FOREIGN KEY (created_by) REFERENCES user_models(id) ON DELETE SET NULL;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'feedback_models'
					AND constraint_name = 'feedback_models_user_id_fkey'
				) THEN
					ALTER TABLE feedback_models
					ADD CONSTRAINT feedback_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'feedback_models'
					AND constraint_name = 'feedback_models_book_id_fkey'
				) THEN
					ALTER TABLE feedback_models
					ADD CONSTRAINT feedback_models_book_id_fkey
					FOREIGN KEY (book_id) REFERENCES book_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// translateErr maps driver-level unique violations to ErrDuplicate.
func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// CreateUser inserts a user; ErrDuplicate on email collision.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return translateErr(s.db.Create(&model).Error)
}

// SaveUser updates an existing user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return translateErr(s.db.Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":         model.Email,
		"password_hash": model.PasswordHash,
		"first_name":    model.FirstName,
		"last_name":     model.LastName,
		"role":          model.Role,
		"active":        model.Active,
		"updated_at":    model.UpdatedAt,
	}).Error)
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// PurgeUser deletes the user's feedback, detaches their books, and deletes
// the user. All-or-nothing: a failure rolls back every step.
func (s *GormStore) PurgeUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&FeedbackModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&BookModel{}).
			Where("created_by = ?", id).
			Updates(map[string]any{
				"created_by": nil,
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		res := tx.Delete(&UserModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateBook inserts a book; ErrDuplicate on ISBN collision.
func (s *GormStore) CreateBook(b domain.Book) error {
	model := bookToModel(b)
	return translateErr(s.db.Create(&model).Error)
}

// SaveBook updates an existing book; ErrDuplicate on ISBN collision.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return translateErr(s.db.Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
		"title":      model.Title,
		"author":     model.Author,
		"isbn":       model.ISBN,
		"updated_at": model.UpdatedAt,
	}).Error)
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// GetBookByISBN retrieves a book by its ISBN.
func (s *GormStore) GetBookByISBN(isbn string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.Where("isbn = ?", isbn).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns one page of books, newest first, plus the total count.
func (s *GormStore) ListBooks(f BookFilter, p PageRequest) ([]domain.Book, int64, error) {
	q := s.db.Model(&BookModel{})
	if f.Title != "" {
		q = q.Where("title ILIKE ?", "%"+f.Title+"%")
	}
	if f.Author != "" {
		q = q.Where("author ILIKE ?", "%"+f.Author+"%")
	}
	if f.ISBN != "" {
		q = q.Where("isbn = ?", f.ISBN)
	}
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []BookModel
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, total, nil
}

// DeleteBook removes book and feedback rows in one transaction.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&FeedbackModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&BookModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateFeedback inserts feedback; ErrDuplicate when the (user, book) pair
// already has a row.
func (s *GormStore) CreateFeedback(f domain.Feedback) error {
	model := feedbackToModel(f)
	return translateErr(s.db.Create(&model).Error)
}

// SaveFeedback updates an existing feedback row.
func (s *GormStore) SaveFeedback(f domain.Feedback) error {
	model := feedbackToModel(f)
	return translateErr(s.db.Model(&FeedbackModel{}).Where("id = ?", f.ID).Updates(map[string]any{
		"rating":     model.Rating,
		"comment":    model.Comment,
		"status":     model.Status,
		"updated_at": model.UpdatedAt,
	}).Error)
}

// GetFeedback retrieves one feedback row.
func (s *GormStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	var model FeedbackModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Feedback{}, false, nil
		}
		return domain.Feedback{}, false, err
	}
	return feedbackFromModel(model), true, nil
}

// GetFeedbackByUserAndBook looks up the unique (user, book) feedback row.
func (s *GormStore) GetFeedbackByUserAndBook(userID, bookID string) (domain.Feedback, bool, error) {
	var model FeedbackModel
	if err := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Feedback{}, false, nil
		}
		return domain.Feedback{}, false, err
	}
	return feedbackFromModel(model), true, nil
}

// ListFeedback returns one page of feedback, newest first, plus the total count.
func (s *GormStore) ListFeedback(f FeedbackFilter, p PageRequest) ([]domain.Feedback, int64, error) {
	q := s.db.Model(&FeedbackModel{})
	if f.BookID != "" {
		q = q.Where("book_id = ?", f.BookID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []FeedbackModel
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Feedback, 0, len(models))
	for _, m := range models {
		res = append(res, feedbackFromModel(m))
	}
	return res, total, nil
}

// DeleteFeedback removes one feedback row.
func (s *GormStore) DeleteFeedback(id string) error {
	res := s.db.Delete(&FeedbackModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Role:         domain.UserRole(m.Role),
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		ISBN:      m.ISBN,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func feedbackToModel(f domain.Feedback) FeedbackModel {
	return FeedbackModel{
		ID:        f.ID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		Status:    string(f.Status),
		UserID:    f.UserID,
		BookID:    f.BookID,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func feedbackFromModel(m FeedbackModel) domain.Feedback {
	return domain.Feedback{
		ID:        m.ID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		Status:    domain.FeedbackStatus(m.Status),
		UserID:    m.UserID,
		BookID:    m.BookID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
