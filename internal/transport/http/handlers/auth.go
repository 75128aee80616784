package http_handlers

import (
	"net/http"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/logger"
	"github.com/baechuer/community-service/internal/transport/http/dto"
	"github.com/baechuer/community-service/internal/transport/http/middleware"
	"github.com/baechuer/community-service/internal/transport/http/response"
)

type AuthHandler struct {
	svc *identity.Service
}

func NewAuthHandler(svc *identity.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// SignUp handles POST /api/sign-up/
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.CreateUser(r.Context(), req.ToInput())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	ev := logger.WithCtx(r.Context()).Info().
		Int64("user_id", res.User.ID).
		Str("username", res.User.Username)
	if len(res.Superseded) > 0 {
		ev = ev.Ints64("superseded", res.Superseded)
	}
	ev.Msg("user_registered")

	response.Created(w, dto.SignUpData{
		AuthToken:    res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		UserID:       res.User.ID,
	})
}

// Login handles POST /api/token/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Int64("user_id", res.User.ID).
		Msg("user_logged_in")

	response.WriteJSON(w, http.StatusOK, dto.TokenPairView{
		Access:  res.Tokens.AccessToken,
		Refresh: res.Tokens.RefreshToken,
	})
}

// Refresh handles POST /api/token/refresh/
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	toks, err := h.svc.Refresh(r.Context(), req.Refresh)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, dto.TokenPairView{Access: toks.AccessToken})
}

// Logout handles POST /api/token/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), req.Refresh); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}

// VerifyEmailRequest handles POST /api/users/me/verify-email/ (auth).
func (h *AuthHandler) VerifyEmailRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	if err := h.svc.RequestEmailVerification(r.Context(), uid); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Accepted(w)
}

// VerifyEmailConfirm handles POST /api/verify-email/confirm/
func (h *AuthHandler) VerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailConfirmRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.NoContent(w)
}
