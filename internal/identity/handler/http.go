// Package handler exposes the auth and user routes over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/identity/service"
	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/server/middleware"
	userdomain "workbench-api/internal/user/domain"
)

// AuthService is the subset of service.AuthService used by the handler.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, id string) (*userdomain.PublicUser, error)
	Register(ctx context.Context, in service.RegisterInput) (*userdomain.PublicUser, error)
	RegistrationEnabled() bool
}

// AuthHandler serves /auth and /users.
type AuthHandler struct {
	svc AuthService
	log logrus.FieldLogger
}

// NewAuthHandler returns an AuthHandler backed by svc.
func NewAuthHandler(svc AuthService, log logrus.FieldLogger) *AuthHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthHandler{svc: svc, log: log}
}

// Routes mounts the handler. requireAuth gates GET /auth/me.
func (h *AuthHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/token", h.Token)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/register", h.Register)
	r.With(requireAuth).Get("/auth/me", h.Me)
	r.Get("/users/{id}", h.GetUser)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *userdomain.PublicUser `json:"user"`
	RefreshToken string                 `json:"refreshToken"`
	AccessToken  string                 `json:"accessToken"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Email           string `json:"email"`
	ConfirmEmail    string `json:"confirmEmail"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Username        string `json:"username"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := apierror.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, loginResponse{User: res.User, RefreshToken: res.RefreshToken, AccessToken: res.AccessToken})
}

// Token handles POST /auth/token: exchanges the bearer refresh token for a new access token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	access, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, tokenResponse{Token: access})
}

// Logout handles POST /auth/logout with the refresh token as bearer.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		apierror.Write(w, apierror.New(apierror.NoToken))
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, caller)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.svc.RegistrationEnabled() {
		h.fail(w, r, service.ErrRegistrationDisabled)
		return
	}
	var req registerRequest
	if err := apierror.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		ConfirmEmail:    req.ConfirmEmail,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Username:        req.Username,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, u)
}

// GetUser handles GET /users/{id}.
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	mapped := mapError(err)
	if apierror.KindOf(mapped) == apierror.Generic {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("auth: request failed")
	}
	apierror.Write(w, mapped)
}

func mapError(err error) error {
	var ve *service.ValidationError
	var ae *apierror.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ve):
		return apierror.Invalid(ve.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apierror.New(apierror.InvalidCredentials)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return apierror.New(apierror.InvalidToken)
	case errors.Is(err, service.ErrRegistrationDisabled):
		return apierror.New(apierror.RegistrationDisabled)
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return apierror.Invalid("This email address is already in use")
	case errors.Is(err, service.ErrUserNotFound):
		return apierror.New(apierror.NotFound)
	default:
		return apierror.Wrap(apierror.Generic, err)
	}
}
