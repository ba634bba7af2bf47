package stream

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/mindcare/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcare/backend/internal/middleware"
	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Handler 通过 SSE 执行对话，在最终结果之前逐个推送流水线阶段
type Handler struct {
	chatSvc chatHandler.TurnService
}

// New 创建流式处理器
func New(chatSvc chatHandler.TurnService) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StageEvent 在对话的每个阶段推送一次
type StageEvent struct {
	Stage chatService.State `json:"stage"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if err := h.HandleStreamRequest(w, r, middleware.UserID(r.Context()), message); err != nil {
		slog.Error("stream request failed", "component", "stream", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
	}
}

// HandleStreamRequest 为 userID 执行一轮对话并推送进度
func (h *Handler) HandleStreamRequest(w http.ResponseWriter, r *http.Request, userID, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	result, err := h.chatSvc.SubmitTurn(r.Context(), userID, message, func(s chatService.State) {
		utils.SendSSEEvent(w, flusher, "stage", StageEvent{Stage: s})
	})
	if err != nil {
		status, msg := chatHandler.ErrorStatus(err)
		utils.SendSSEEvent(w, flusher, "error", map[string]any{"status": status, "error": msg})
		return nil
	}

	utils.SendSSEEvent(w, flusher, "result", result)
	return nil
}
