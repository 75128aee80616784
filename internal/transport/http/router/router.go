package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	SignUp(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)

	VerifyEmailRequest(w http.ResponseWriter, r *http.Request)
	VerifyEmailConfirm(w http.ResponseWriter, r *http.Request)
}

type UsersHandler interface {
	Me(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler
	Users  UsersHandler

	// Global runs on every request, outermost first.
	Global []func(http.Handler) http.Handler

	AuthMW  func(http.Handler) http.Handler
	AdminMW func(http.Handler) http.Handler

	// Optional per-route limits; nil means unlimited.
	SignUpLimit  func(http.Handler) http.Handler
	LoginLimit   func(http.Handler) http.Handler
	DefaultLimit func(http.Handler) http.Handler

	// Metrics serves /metrics; defaults to the Prometheus default registry.
	Metrics http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func orPass(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return passthrough
	}
	return mw
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("nil Users handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	signUpLimit := orPass(deps.SignUpLimit)
	loginLimit := orPass(deps.LoginLimit)
	defaultLimit := orPass(deps.DefaultLimit)

	r := chi.NewRouter()
	for _, mw := range deps.Global {
		r.Use(mw)
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Route("/api", func(r chi.Router) {
		// --- Registration / tokens ---
		r.With(signUpLimit).Post("/sign-up/", deps.Auth.SignUp)
		r.With(loginLimit).Post("/token/", deps.Auth.Login)
		r.With(defaultLimit).Post("/token/refresh/", deps.Auth.Refresh)
		r.With(defaultLimit).Post("/token/logout/", deps.Auth.Logout)
		r.With(defaultLimit).Post("/verify-email/confirm/", deps.Auth.VerifyEmailConfirm)

		// --- Users ---
		r.Route("/users", func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Use(defaultLimit)

			r.Get("/me/", deps.Users.Me)
			r.Post("/me/verify-email/", deps.Auth.VerifyEmailRequest)

			r.Get("/{id}/", deps.Users.Get)
			r.Put("/{id}/", deps.Users.Update)
			r.Patch("/{id}/", deps.Users.Update)
			r.With(deps.AdminMW).Delete("/{id}/", deps.Users.Delete)
		})
	})

	return r, nil
}
