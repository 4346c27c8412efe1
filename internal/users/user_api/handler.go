package user_api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	users "venuly/internal/users/service"
	"venuly/internal/utils"
)

type Handler struct {
	UserService  *users.UserService
	Logger       *logger.Logger
	CookieName   string
	CookieSecure bool
}

// Routes mounts /api/auth. The rate limiter, when set, guards the
// credential endpoints.
func (h *Handler) Routes(limiter *auth.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Handler)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/reset/request", h.RequestReset)
		r.Post("/reset/confirm", h.ConfirmReset)
	})
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	r.Post("/change-password", h.ChangePassword)
	return r
}

// AdminRoutes mounts /api/admin/users.
func (h *Handler) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.WithRole(models.RoleAdmin, h.Logger))
	r.Get("/", h.ListUsers)
	r.Patch("/{id}", h.UpdateUser)
	r.Post("/{id}/reset-password", h.ResetUserPassword)
	return r
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	user, err := h.UserService.Register(r.Context(), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req users.LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	session, err := h.UserService.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.Token, session.ExpiresAt))
	utils.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0)))
	utils.WriteJSON(w, http.StatusOK, utils.MessageBody{Message: "Logged out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	user, err := h.UserService.Me(r.Context(), id.UserID)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req users.ResetRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	if err := h.UserService.RequestPasswordReset(r.Context(), req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.MessageBody{Message: users.ResetRequestedMessage})
}

func (h *Handler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req users.ResetConfirmRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	if err := h.UserService.ConfirmPasswordReset(r.Context(), req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.MessageBody{Message: "Password has been reset"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req users.ChangePasswordRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	if err := h.UserService.ChangePassword(r.Context(), id.UserID, req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.MessageBody{Message: "Password updated"})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.UserService.ListUsers(r.Context(),
		models.Role(q.Get("role")),
		q.Get("q"),
		utils.QueryInt(r, "page", 1),
		utils.QueryInt(r, "limit", 20),
	)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req users.AdminUpdateRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	user, err := h.UserService.AdminUpdate(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	var req users.AdminResetRequest
	// the body is optional here
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &req); err != nil {
			utils.WriteError(w, h.Logger, err)
			return
		}
	}

	password, err := h.UserService.AdminResetPassword(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message":           "Password has been reset",
		"temporaryPassword": password,
	})
}

func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     h.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
