package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skykeeper/internal/core"
	"skykeeper/internal/types"
)

// AuthService defines the account operations the auth handler requires.
// Implemented by auth.Service; tests inject fakes.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*types.User, *types.Session, error)
	Login(ctx context.Context, email, password string) (*types.User, *types.Session, error)
}

// SignupRequest is the request body for POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the authenticated user and their session token.
// The client stores the token and presents it as a bearer credential.
type AuthResponse struct {
	User      *types.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	service   AuthService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(service AuthService, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		service:   service,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts auth routes on the provided chi.Router.
// Both endpoints are public; the auth middleware skips them.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
	})
}

// Signup handles POST /api/auth/signup. Returns 201 Created with the new
// user and a session token, or 409 Conflict if the email is taken.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: AuthResponse{
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}})
}

// Login handles POST /api/auth/login. Returns 200 OK with the user and a
// fresh session token, or 401 Unauthorized for bad credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: AuthResponse{
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}})
}
