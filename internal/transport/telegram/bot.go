package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
)

const (
	welcomeText  = "👋 Hi! I'm here to listen. Tell me how you're feeling today.\n\n/reset clears our conversation."
	resetText    = "Conversation reset. 🌱"
	internalText = "Sorry, something went wrong on my side. Please try again in a moment."
)

// Accounts resolves Telegram senders to local users.
type Accounts interface {
	EnsureUser(ctx context.Context, username, email string) (user.User, error)
}

// Turns runs chat turns for a local user.
type Turns interface {
	SubmitTurn(ctx context.Context, userID, message string, observe chatService.StageObserver) (chatService.Result, error)
	Reset(userID string)
}

// Sender is the subset of *bot.Bot the handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Handler bridges private Telegram chats to the chat service.
type Handler struct {
	accounts Accounts
	turns    Turns
	logger   *slog.Logger
}

func NewHandler(accounts Accounts, turns Turns, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{accounts: accounts, turns: turns, logger: logger.With("component", "telegram")}
}

// Run starts long polling and blocks until ctx is cancelled.
func Run(ctx context.Context, token string, h *Handler) error {
	b, err := bot.New(token, bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}))
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}

	h.Register(b)

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: get bot info: %w", err)
	}
	h.logger.Info("telegram bot started", "id", me.ID, "username", me.Username)

	b.Start(ctx)
	return nil
}

// Register attaches command and text handlers to b.
func (h *Handler) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.HandleStart(ctx, b, update)
	})
	b.RegisterHandler(bot.HandlerTypeMessageText, "/reset", bot.MatchTypePrefix, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.HandleReset(ctx, b, update)
	})
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || strings.HasPrefix(update.Message.Text, "/") {
			return
		}
		h.HandleText(ctx, b, update)
	})
}

func (h *Handler) HandleStart(ctx context.Context, s Sender, update *models.Update) {
	if !private(update) {
		return
	}
	h.reply(ctx, s, update.Message.Chat.ID, welcomeText)
}

func (h *Handler) HandleReset(ctx context.Context, s Sender, update *models.Update) {
	if !private(update) {
		return
	}
	u, err := h.resolve(ctx, update.Message.From)
	if err != nil {
		h.logger.Error("resolve user failed", "error", err)
		h.reply(ctx, s, update.Message.Chat.ID, internalText)
		return
	}
	h.turns.Reset(u.ID)
	h.reply(ctx, s, update.Message.Chat.ID, resetText)
}

// HandleText runs one chat turn and replies with the augmented response.
func (h *Handler) HandleText(ctx context.Context, s Sender, update *models.Update) {
	if !private(update) {
		return
	}
	chatID := update.Message.Chat.ID

	u, err := h.resolve(ctx, update.Message.From)
	if err != nil {
		h.logger.Error("resolve user failed", "error", err)
		h.reply(ctx, s, chatID, internalText)
		return
	}

	result, err := h.turns.SubmitTurn(ctx, u.ID, update.Message.Text, nil)
	var vErr *chatService.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.reply(ctx, s, chatID, vErr.Message)
		return
	case err != nil:
		h.logger.Error("chat turn failed", "user_id", u.ID, "error", err)
		h.reply(ctx, s, chatID, internalText)
		return
	}

	h.reply(ctx, s, chatID, result.Response)
}

func (h *Handler) resolve(ctx context.Context, from *models.User) (user.User, error) {
	if from == nil {
		return user.User{}, errors.New("message has no sender")
	}
	name := "tg_" + strconv.FormatInt(from.ID, 10)
	return h.accounts.EnsureUser(ctx, name, name+"@telegram.local")
}

func (h *Handler) reply(ctx context.Context, s Sender, chatID int64, text string) {
	if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.logger.Warn("send message failed", "chat_id", chatID, "error", err)
	}
}

// private chats only
func private(update *models.Update) bool {
	return update != nil && update.Message != nil && update.Message.Chat.Type == "private"
}
