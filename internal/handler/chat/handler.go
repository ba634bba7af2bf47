package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindcare/backend/internal/middleware"
	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

const internalErrorMessage = "Internal server error."

// TurnService 执行与重置对话
type TurnService interface {
	SubmitTurn(ctx context.Context, userID, message string, observe chatService.StageObserver) (chatService.Result, error)
	Reset(userID string)
}

// TipSource 根据情绪标签给出调节建议
type TipSource interface {
	SuggestTip(label string) string
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc TurnService
	tips    TipSource
}

// New 创建聊天处理器
func New(chatSvc TurnService, tips TipSource) *Handler {
	return &Handler{chatSvc: chatSvc, tips: tips}
}

// RegisterRoutes 注册聊天相关的路由，需挂在鉴权中间件之后
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/reset", h.handleReset)
	r.Get("/mood/tips", h.handleTips)
}

// handleChat 执行一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.SubmitTurn(r.Context(), middleware.UserID(r.Context()), payload.Message, nil)
	if err != nil {
		status, message := ErrorStatus(err)
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleReset 清空会话窗口，已持久化的记录保留
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.Reset(middleware.UserID(r.Context()))
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "reset",
		"message": "Chat session cleared.",
	})
}

func (h *Handler) handleTips(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("mood"))
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"mood": label,
		"tip":  h.tips.SuggestTip(label),
	})
}

// ErrorStatus 将对话错误映射为 HTTP 状态码与面向用户的提示
func ErrorStatus(err error) (int, string) {
	var vErr *chatService.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}
	return http.StatusInternalServerError, internalErrorMessage
}
