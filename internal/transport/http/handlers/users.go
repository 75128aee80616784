package http_handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/transport/http/dto"
	"github.com/baechuer/community-service/internal/transport/http/middleware"
	"github.com/baechuer/community-service/internal/transport/http/response"
)

type UsersHandler struct {
	svc *identity.Service
}

func NewUsersHandler(svc *identity.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Me handles GET /api/users/me/
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	p, err := h.svc.Profile(r.Context(), actor.ID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewProfileView(p))
}

// Get handles GET /api/users/{id}/
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		response.WriteError(w, r, domain.ErrUserDoesNotExist())
		return
	}

	p, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.NewProfileView(p))
}

// Update handles PUT and PATCH /api/users/{id}/. Both are partial.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}
	id, ok := userIDParam(r)
	if !ok {
		response.WriteError(w, r, domain.ErrUserDoesNotExist())
		return
	}

	var req dto.UpdateUserRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if _, err := h.svc.UpdateUserProfile(r.Context(), actor, id, req.ToUpdate()); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Delete handles DELETE /api/users/{id}/ (admin).
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}
	id, ok := userIDParam(r)
	if !ok {
		response.WriteError(w, r, domain.ErrUserDoesNotExist())
		return
	}

	if err := h.svc.RemoveUser(r.Context(), actor.ID, id); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

func actorFrom(r *http.Request) (identity.Actor, bool) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return identity.Actor{}, false
	}
	role, _ := middleware.RoleFromContext(r.Context())
	return identity.Actor{ID: uid, Role: domain.Role(role)}, true
}

// userIDParam parses {id}; anything that is not a positive integer cannot
// name a user.
func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
