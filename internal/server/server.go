package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"libris/internal/app"
	"libris/internal/ratelimit"
	"libris/internal/util"
	"libris/pkg/audit"
	"libris/pkg/auth"
	"libris/pkg/domain"
	"libris/pkg/policy"
	"libris/pkg/store"
)

// AuditReader exposes the recent admin action trail.
type AuditReader interface {
	Recent(ctx context.Context, n int) ([]audit.Event, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiter throttles feedback creation. nil disables rate limiting
	// entirely (test mode).
	Limiter        ratelimit.Limiter
	Audit          AuditReader
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP API.
type Server struct {
	app     *app.App
	limiter ratelimit.Limiter
	audit   AuditReader
	proxies *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		limiter: cfg.Limiter,
		audit:   cfg.Audit,
		proxies: cfg.TrustedProxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("libris", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.Handle("/auth/profile", s.withUser(s.handleProfile))

	// books
	s.mux.Handle("/books", s.withOptionalUser(s.handleBooks))
	s.mux.Handle("/books/", s.withOptionalUser(s.handleBookByID))

	// feedback
	s.mux.Handle("/feedback", s.withOptionalUser(s.handleFeedback))
	s.mux.Handle("/feedback/", s.withOptionalUser(s.handleFeedbackByID))

	// admin
	s.mux.Handle("/admin/users", s.withUser(s.handleAdminUsers))
	s.mux.Handle("/admin/users/", s.withUser(s.handleAdminUserByID))
	s.mux.Handle("/admin/audit", s.withUser(s.handleAdminAudit))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// withUser requires a valid session token and resolves the acting user.
func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAppError(w, app.ErrInvalidToken)
			return
		}
		user, err := s.app.UserFromToken(token)
		if err != nil {
			writeAppError(w, err)
			return
		}
		next(w, r, user)
	})
}

// withOptionalUser resolves the user when a token is present but lets
// anonymous requests through; reads are open while writes re-check inside
// the handler. A present-but-bad token is still rejected so a caller never
// silently degrades to anonymous.
func (s *Server) withOptionalUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next(w, r, domain.User{})
			return
		}
		user, err := s.app.UserFromToken(token)
		if err != nil {
			writeAppError(w, err)
			return
		}
		next(w, r, user)
	})
}

// requireUser guards write paths reached through withOptionalUser.
func requireUser(w http.ResponseWriter, user domain.User) bool {
	if user.ID == "" {
		writeAppError(w, app.ErrInvalidToken)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pageRequest(r *http.Request) store.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return store.PageRequest{Page: page, Limit: limit}
}

type pagedResponse struct {
	Items any             `json:"items"`
	Meta  domain.PageInfo `json:"meta"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      codeForStatus(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps service-layer errors onto HTTP statuses. Unrecognized
// errors become opaque 500s so internal details never reach the client.
func writeAppError(w http.ResponseWriter, err error) {
	var rateErr *app.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, struct {
			errorResponse
			RetryAfter int `json:"retryAfter"`
		}{
			errorResponse: errorResponse{
				Error:     rateErr.Error(),
				Code:      "RATE_LIMIT_EXCEEDED",
				RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
			},
			RetryAfter: rateErr.RetryAfter,
		})
		return
	}
	status, msg := statusForError(err)
	writeError(w, status, msg)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrAccountSuspended),
		errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, policy.ErrForbidden),
		errors.Is(err, app.ErrCannotChangeOwnRole),
		errors.Is(err, app.ErrCannotSuspendSelf):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrFeedbackNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrISBNAlreadyExists),
		errors.Is(err, app.ErrDuplicateFeedback):
		return http.StatusConflict, err.Error()
	case app.IsValidation(err), errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func codeForStatus(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(message, "email address or password"):
		return "AUTH_INVALID_CREDENTIALS"
	case message == "account suspended":
		return "AUTH_ACCOUNT_SUSPENDED"
	case message == "invalid or expired token":
		return "AUTH_INVALID_TOKEN"
	case strings.Contains(message, "email already exists"):
		return "USER_EMAIL_TAKEN"
	case message == "user not found":
		return "USER_NOT_FOUND"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case strings.Contains(message, "isbn already exists"):
		return "BOOK_ISBN_TAKEN"
	case message == "feedback not found":
		return "FEEDBACK_NOT_FOUND"
	case strings.Contains(message, "already left feedback"):
		return "FEEDBACK_DUPLICATE"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "REQUEST_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
