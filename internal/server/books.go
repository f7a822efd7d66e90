package server

import (
	"net/http"
	"strings"

	"libris/internal/app"
	"libris/pkg/domain"
	"libris/pkg/store"
)

type bookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

type bookUpdateRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	ISBN   *string `json:"isbn"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func bookFilter(r *http.Request) store.BookFilter {
	q := r.URL.Query()
	return store.BookFilter{
		Title:  strings.TrimSpace(q.Get("title")),
		Author: strings.TrimSpace(q.Get("author")),
		ISBN:   strings.TrimSpace(q.Get("isbn")),
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		books, page, err := s.app.ListBooks(bookFilter(r), pageRequest(r))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pagedResponse{Items: books, Meta: page})
	case http.MethodPost:
		if !requireUser(w, user) {
			return
		}
		var req bookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.CreateBook(user, app.BookInput{
			Title:  req.Title,
			Author: req.Author,
			ISBN:   req.ISBN,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

// /books/my-books, /books/bulk, /books/{id} or /books/{id}/feedback
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w)
		return
	}

	switch id {
	case "my-books":
		s.handleMyBooks(w, r, user)
		return
	case "bulk":
		s.handleBulkDeleteBooks(w, r, user)
		return
	}
	if len(parts) == 2 && parts[1] == "feedback" {
		s.handleBookFeedback(w, r, user, id)
		return
	}
	if len(parts) == 2 {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPatch:
		if !requireUser(w, user) {
			return
		}
		var req bookUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		book, err := s.app.UpdateBook(user, id, app.BookUpdate{
			Title:  req.Title,
			Author: req.Author,
			ISBN:   req.ISBN,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if !requireUser(w, user) {
			return
		}
		if err := s.app.DeleteBook(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMyBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireUser(w, user) {
		return
	}
	books, page, err := s.app.ListBooksByUser(user.ID, bookFilter(r), pageRequest(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: books, Meta: page})
}

func (s *Server) handleBulkDeleteBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if !requireUser(w, user) {
		return
	}
	var req bulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := s.app.BulkDeleteBooks(r.Context(), user, req.IDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBookFeedback(w http.ResponseWriter, r *http.Request, user domain.User, bookID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, page, err := s.app.ListFeedbackByBook(user, bookID, pageRequest(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: items, Meta: page})
}
