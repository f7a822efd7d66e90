package server

import (
	"net/http"
	"strconv"
	"strings"

	"libris/pkg/domain"
)

type adminUserUpdateRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"isActive"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.app.ListUsers(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": users,
			"count": len(users),
		})
	case http.MethodPost:
		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		created, err := s.app.AdminCreateUser(user, req.Email, req.Password, req.FirstName, req.LastName, domain.UserRole(req.Role))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// /admin/users/bulk or /admin/users/{id}
func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w)
		return
	}
	if id == "bulk" {
		s.handleBulkDeleteUsers(w, r, user)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req adminUserUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var role *domain.UserRole
		if req.Role != nil {
			parsed := domain.UserRole(strings.TrimSpace(*req.Role))
			role = &parsed
		}
		updated, err := s.app.AdminUpdateUser(user, id, role, req.Active)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		report, err := s.app.PurgeUser(r.Context(), user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBulkDeleteUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	var req bulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := s.app.BulkDeleteUsers(r.Context(), user, req.IDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if user.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if n <= 0 || n > 100 {
		n = 50
	}
	if s.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}, "count": 0})
		return
	}
	events, err := s.audit.Recent(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": events,
		"count": len(events),
	})
}
