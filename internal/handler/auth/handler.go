package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindcare/backend/internal/middleware"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	authService "github.com/zhouzirui/mindcare/backend/internal/service/auth"
	"github.com/zhouzirui/mindcare/backend/internal/store"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Service 是处理器依赖的账号接口
type Service interface {
	Register(ctx context.Context, in authService.RegisterInput) (user.User, error)
	Login(ctx context.Context, username, password string) (authService.Token, user.User, error)
	Revoke(c authService.Claims)
	CurrentUser(ctx context.Context, id string) (user.User, error)
	DeleteAccount(ctx context.Context, c authService.Claims) error
}

// Handler 用户注册、登录与注销
type Handler struct {
	svc     Service
	onLeave func(userID string)
}

// New 创建鉴权处理器，onLogout 在令牌注销后执行，用于清理该用户的会话状态
func New(svc Service, onLogout func(userID string)) *Handler {
	if onLogout == nil {
		onLogout = func(string) {}
	}
	return &Handler{svc: svc, onLeave: onLogout}
}

// RegisterPublicRoutes 注册无需鉴权的路由
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterRoutes 注册需要鉴权的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
	r.Delete("/auth/me", h.handleDelete)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload authService.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.svc.Register(r.Context(), payload)
	var vErr *authService.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.RespondError(w, http.StatusBadRequest, vErr.Message)
		return
	case errors.Is(err, store.ErrDuplicateUser):
		utils.RespondError(w, http.StatusConflict, "Username or email already exists.")
		return
	case err != nil:
		slog.Error("register failed", "component", "auth", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, u, err := h.svc.Login(r.Context(), payload.Username, payload.Password)
	if errors.Is(err, authService.ErrInvalidCredentials) {
		utils.RespondError(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}
	if err != nil {
		slog.Error("login failed", "component", "auth", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"token":     token.Value,
		"expiresAt": token.ExpiresAt,
		"user":      u,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Bearer token required")
		return
	}
	h.svc.Revoke(claims)
	h.onLeave(claims.UserID)

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.CurrentUser(r.Context(), middleware.UserID(r.Context()))
	if errors.Is(err, store.ErrUserNotFound) {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	utils.RespondJSON(w, http.StatusOK, u)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Bearer token required")
		return
	}
	err := h.svc.DeleteAccount(r.Context(), claims)
	if errors.Is(err, store.ErrUserNotFound) {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("delete account failed", "component", "auth", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	h.onLeave(claims.UserID)

	w.WriteHeader(http.StatusNoContent)
}
