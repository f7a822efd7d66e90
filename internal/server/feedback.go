package server

import (
	"net/http"
	"strings"

	"libris/internal/app"
	"libris/internal/util"
	"libris/pkg/domain"
	"libris/pkg/store"
)

type feedbackRequest struct {
	BookID  string `json:"bookId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type feedbackUpdateRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type moderateRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := store.FeedbackFilter{
			BookID: strings.TrimSpace(q.Get("bookId")),
			UserID: strings.TrimSpace(q.Get("userId")),
			Status: domain.FeedbackStatus(strings.TrimSpace(q.Get("status"))),
		}
		items, page, err := s.app.ListFeedback(user, filter, pageRequest(r))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pagedResponse{Items: items, Meta: page})
	case http.MethodPost:
		s.handleCreateFeedback(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// handleCreateFeedback is the only rate-limited endpoint. The window is
// keyed per user, falling back to the client IP when no identity is
// available, and a nil limiter disables throttling entirely.
func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request, user domain.User) {
	// The throttle gate runs before the auth requirement, so anonymous
	// hammering is bounded by IP too.
	if s.limiter != nil {
		key := "feedback-user-" + user.ID
		if user.ID == "" {
			key = "feedback-ip-" + util.ClientIP(r, s.proxies)
		}
		if d := s.limiter.Allow(key); !d.Allowed {
			writeAppError(w, &app.RateLimitError{RetryAfter: d.RetryAfterSeconds()})
			return
		}
	}
	if !requireUser(w, user) {
		return
	}
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	feedback, err := s.app.CreateFeedback(user, app.FeedbackInput{
		BookID:  req.BookID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feedback)
}

// /feedback/{id} or /feedback/{id}/moderate
func (s *Server) handleFeedbackByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/feedback/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w)
		return
	}

	if len(parts) == 2 && parts[1] == "moderate" {
		s.handleModerateFeedback(w, r, user, id)
		return
	}
	if len(parts) == 2 {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		feedback, err := s.app.GetFeedback(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, feedback)
	case http.MethodPatch:
		if !requireUser(w, user) {
			return
		}
		var req feedbackUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		feedback, err := s.app.UpdateFeedback(user, id, app.FeedbackUpdate{
			Rating:  req.Rating,
			Comment: req.Comment,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, feedback)
	case http.MethodDelete:
		if !requireUser(w, user) {
			return
		}
		if err := s.app.DeleteFeedback(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleModerateFeedback(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	if !requireUser(w, user) {
		return
	}
	var req moderateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	feedback, err := s.app.ModerateFeedback(r.Context(), user, id, domain.FeedbackStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}
