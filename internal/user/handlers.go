package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/westgate-auto/backend-westgate/internal/common"
)

// Store is the persistence the admin user endpoints need.
type Store interface {
	ListUsers(ctx context.Context, limit, offset int32) ([]User, int, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) (User, error)
}

// Handler exposes admin account management endpoints.
type Handler struct {
	Store Store
}

type rolePayload struct {
	Role string `json:"role"`
}

// List handles GET /api/v1/admin/users.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	users, total, err := h.Store.ListUsers(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list users", nil)
		return
	}
	if users == nil {
		users = []User{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       users,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/admin/users/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}

// UpdateRole handles PUT /api/v1/admin/users/{id}/role. Promoting an account
// takes effect on its next login since the role rides in the access token.
func (h Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload rolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Role != common.RoleUser && payload.Role != common.RoleAdmin {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "role must be USER or ADMIN", nil)
		return
	}
	u, err := h.Store.UpdateUserRole(r.Context(), id, payload.Role)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}

func (h Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h Handler) renderLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "user operation failed", nil)
}
