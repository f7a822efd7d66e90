package store

import (
	"sort"
	"strings"
	"sync"

	"libris/pkg/domain"
)

// MemoryStore keeps all rows in-process. It enforces the same uniqueness
// rules as the Postgres store and is the storage double used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	books    map[string]domain.Book
	isbn     map[string]string // isbn -> book ID
	feedback map[string]domain.Feedback
	pair     map[string]string // userID+"\x00"+bookID -> feedback ID
	seq      map[string]int    // row ID -> insertion sequence
	nextSeq  int
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		books:    make(map[string]domain.Book),
		isbn:     make(map[string]string),
		feedback: make(map[string]domain.Feedback),
		pair:     make(map[string]string),
		seq:      make(map[string]int),
	}
}

func pairKey(userID, bookID string) string {
	return userID + "\x00" + bookID
}

func (m *MemoryStore) track(id string) {
	m.nextSeq++
	m.seq[id] = m.nextSeq
}

// CreateUser inserts a user; ErrDuplicate on email collision.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[u.Email]; exists {
		return ErrDuplicate
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	m.track(u.ID)
	return nil
}

// SaveUser updates an existing user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if id, exists := m.email[u.Email]; exists && id != u.ID {
		return ErrDuplicate
	}
	if prev.Email != u.Email {
		delete(m.email, prev.Email)
		m.email[u.Email] = u.ID
	}
	m.users[u.ID] = u
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users in insertion order.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool {
		return m.seq[res[i].ID] < m.seq[res[j].ID]
	})
	return res, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// PurgeUser removes the user's feedback, detaches their books, and deletes
// the user. The existence check runs before any mutation so a missing user
// leaves the store untouched.
func (m *MemoryStore) PurgeUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	for fid, f := range m.feedback {
		if f.UserID == id {
			delete(m.feedback, fid)
			delete(m.pair, pairKey(f.UserID, f.BookID))
		}
	}
	for bid, b := range m.books {
		if b.CreatedBy != nil && *b.CreatedBy == id {
			b.CreatedBy = nil
			m.books[bid] = b
		}
	}
	delete(m.users, id)
	delete(m.email, user.Email)
	return nil
}

// CreateBook inserts a book; ErrDuplicate on ISBN collision.
func (m *MemoryStore) CreateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.isbn[b.ISBN]; exists {
		return ErrDuplicate
	}
	m.books[b.ID] = b
	m.isbn[b.ISBN] = b.ID
	m.track(b.ID)
	return nil
}

// SaveBook updates an existing book; ErrDuplicate on ISBN collision.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.books[b.ID]
	if !ok {
		return ErrNotFound
	}
	if id, exists := m.isbn[b.ISBN]; exists && id != b.ID {
		return ErrDuplicate
	}
	if prev.ISBN != b.ISBN {
		delete(m.isbn, prev.ISBN)
		m.isbn[b.ISBN] = b.ID
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// GetBookByISBN retrieves a book by ISBN.
func (m *MemoryStore) GetBookByISBN(isbn string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.isbn[isbn]; ok {
		b, exists := m.books[id]
		return b, exists, nil
	}
	return domain.Book{}, false, nil
}

// ListBooks filters, orders newest first, and paginates.
func (m *MemoryStore) ListBooks(f BookFilter, p PageRequest) ([]domain.Book, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if f.Title != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(f.Title)) {
			continue
		}
		if f.Author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(f.Author)) {
			continue
		}
		if f.ISBN != "" && b.ISBN != f.ISBN {
			continue
		}
		if f.CreatedBy != "" && b.Owner() != f.CreatedBy {
			continue
		}
		matched = append(matched, b)
	}
	sortNewestFirst(matched, m.seq, func(b domain.Book) (int64, string) {
		return b.CreatedAt.UnixNano(), b.ID
	})
	total := int64(len(matched))
	return pageOf(matched, p), total, nil
}

// DeleteBook removes a book and its feedback rows.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return ErrNotFound
	}
	for fid, f := range m.feedback {
		if f.BookID == id {
			delete(m.feedback, fid)
			delete(m.pair, pairKey(f.UserID, f.BookID))
		}
	}
	delete(m.books, id)
	delete(m.isbn, b.ISBN)
	return nil
}

// CreateFeedback inserts feedback; ErrDuplicate on a (user, book) repeat.
func (m *MemoryStore) CreateFeedback(f domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(f.UserID, f.BookID)
	if _, exists := m.pair[key]; exists {
		return ErrDuplicate
	}
	m.feedback[f.ID] = f
	m.pair[key] = f.ID
	m.track(f.ID)
	return nil
}

// SaveFeedback updates an existing feedback row.
func (m *MemoryStore) SaveFeedback(f domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.feedback[f.ID]; !ok {
		return ErrNotFound
	}
	m.feedback[f.ID] = f
	return nil
}

// GetFeedback retrieves one feedback row.
func (m *MemoryStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.feedback[id]
	return f, ok, nil
}

// GetFeedbackByUserAndBook looks up the unique (user, book) row.
func (m *MemoryStore) GetFeedbackByUserAndBook(userID, bookID string) (domain.Feedback, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.pair[pairKey(userID, bookID)]; ok {
		f, exists := m.feedback[id]
		return f, exists, nil
	}
	return domain.Feedback{}, false, nil
}

// ListFeedback filters, orders newest first, and paginates.
func (m *MemoryStore) ListFeedback(f FeedbackFilter, p PageRequest) ([]domain.Feedback, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Feedback, 0, len(m.feedback))
	for _, fb := range m.feedback {
		if f.BookID != "" && fb.BookID != f.BookID {
			continue
		}
		if f.UserID != "" && fb.UserID != f.UserID {
			continue
		}
		if f.Status != "" && fb.Status != f.Status {
			continue
		}
		matched = append(matched, fb)
	}
	sortNewestFirst(matched, m.seq, func(fb domain.Feedback) (int64, string) {
		return fb.CreatedAt.UnixNano(), fb.ID
	})
	total := int64(len(matched))
	return pageOf(matched, p), total, nil
}

// DeleteFeedback removes one feedback row.
func (m *MemoryStore) DeleteFeedback(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feedback[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.feedback, id)
	delete(m.pair, pairKey(f.UserID, f.BookID))
	return nil
}

// sortNewestFirst orders by creation time descending; insertion sequence
// breaks ties so rows created in the same instant stay deterministic.
func sortNewestFirst[T any](items []T, seq map[string]int, key func(T) (int64, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti != tj {
			return ti > tj
		}
		return seq[idi] > seq[idj]
	})
}

func pageOf[T any](items []T, p PageRequest) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if p.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
