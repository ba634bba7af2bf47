package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/mindcare/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcare/backend/internal/middleware"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler WebSocket对话处理器
type WebSocketHandler struct {
	chatSvc  chatHandler.TurnService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc chatHandler.TurnService, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("component", "websocket"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("connection opened", "user", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", "user", userID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, userID, msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, userID string, msg inboundMessage) {
	switch msg.Type {
	case "chat":
		result, err := h.chatSvc.SubmitTurn(ctx, userID, msg.Message, nil)
		if err != nil {
			_, text := chatHandler.ErrorStatus(err)
			h.sendError(conn, text)
			return
		}
		h.send(conn, "result", result)
	case "reset":
		h.chatSvc.Reset(userID)
		h.send(conn, "reset", map[string]string{"message": "Chat session cleared."})
	default:
		h.sendError(conn, "unsupported message type")
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind string, data any) {
	msg := outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("write failed", "type", kind, "error", err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

