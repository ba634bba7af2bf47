package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zhouzirui/mindcare/backend/internal/config"
	"github.com/zhouzirui/mindcare/backend/internal/handler"
	"github.com/zhouzirui/mindcare/backend/internal/service/auth"
	"github.com/zhouzirui/mindcare/backend/internal/service/chat"
	"github.com/zhouzirui/mindcare/backend/internal/service/conversation"
	"github.com/zhouzirui/mindcare/backend/internal/service/gateway"
	"github.com/zhouzirui/mindcare/backend/internal/service/mood"
	"github.com/zhouzirui/mindcare/backend/internal/service/report"
	"github.com/zhouzirui/mindcare/backend/internal/service/sanitize"
	"github.com/zhouzirui/mindcare/backend/internal/service/therapist"
	"github.com/zhouzirui/mindcare/backend/internal/store"
	"github.com/zhouzirui/mindcare/backend/internal/transport/telegram"
)

const historySweepSpec = "@every 10m"

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store      store.Store
	Gateway    *gateway.Gateway
	History    *chat.HistoryStore
	Augmenter  *mood.Augmenter
	Auth       *auth.Service
	Chat       *chat.Service
	Reports    *report.Service
	Therapists *therapist.Directory
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New opens the store and wires every service. Model backends load lazily
// unless cfg.Model.WarmOnStartup is set.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	table := mood.DefaultTable()
	if cfg.Chat.MoodTablePath != "" {
		table, err = mood.LoadTable(cfg.Chat.MoodTablePath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load mood table: %w", err)
		}
	}
	augmenter := mood.NewAugmenter(table)

	gw := gateway.FromConfig(cfg.Model, cfg.Chat.EOSToken, gateway.Options{
		GenerationTimeout: cfg.Model.GenerationTimeout,
		ClassifyTimeout:   cfg.Model.ClassifyTimeout,
		Logger:            logger,
	})
	if cfg.Model.WarmOnStartup {
		// a failed warm-up does not block startup; the first request retries
		if err := gw.Warm(ctx); err != nil {
			logger.Warn("model warm-up failed, backends will load on first use", "error", err)
		}
	}

	history := chat.NewHistoryStore(cfg.Chat.HistoryWindow, cfg.Chat.HistoryIdleTTL)
	chatSvc := chat.NewService(chat.Dependencies{
		Assembler: conversation.NewAssembler(nil, conversation.Config{
			EOSToken:       cfg.Chat.EOSToken,
			MaxInputTokens: cfg.Chat.MaxInputTokens,
			ContextLimit:   cfg.Chat.ContextLimit,
			NewTokenBudget: cfg.Chat.NewTokenBudget,
		}),
		Gateway: gw,
		Sanitizer: sanitize.New(sanitize.Config{
			MinWords: cfg.Chat.MinResponseWords,
			MaxWords: cfg.Chat.MaxResponseWords,
		}),
		Augmenter: augmenter,
		History:   history,
		Records:   st,
		Logger:    logger,
	}, cfg.Chat.MaxMessageChars)

	authSvc := auth.NewService(st, auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})

	directory, err := newDirectory(ctx, cfg.Therapist, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Gateway:    gw,
		History:    history,
		Augmenter:  augmenter,
		Auth:       authSvc,
		Chat:       chatSvc,
		Reports:    report.NewService(st),
		Therapists: directory,
	}, nil
}

func newDirectory(ctx context.Context, cfg config.TherapistConfig, logger *slog.Logger) (*therapist.Directory, error) {
	var sources []therapist.Source
	if cfg.GooglePlacesAPIKey != "" {
		places, err := therapist.NewPlacesSource(ctx, cfg.GooglePlacesAPIKey, cfg.Keyword, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("create places source: %w", err)
		}
		sources = append(sources, places)
	} else {
		logger.Info("GOOGLE_PLACES_API_KEY not set, skipping google places source")
	}
	if cfg.PractoURL != "" {
		sources = append(sources, therapist.NewPractoSource(cfg.PractoURL, cfg.PractoLimit))
	}
	return therapist.NewDirectory(cfg.OutputPath, logger, sources...), nil
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Dependencies{
		Auth:           a.Auth,
		Chat:           a.Chat,
		Tips:           a.Augmenter,
		Reports:        a.Reports,
		Therapists:     a.Therapists,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	})
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Serve runs the HTTP server, background jobs and the optional Telegram bot
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	scheduler, err := a.startJobs(ctx)
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	if a.Config.Telegram.Enabled() {
		tg := telegram.NewHandler(a.Auth, a.Chat, a.Logger)
		go func() {
			if err := telegram.Run(ctx, a.Config.Telegram.BotToken, tg); err != nil {
				a.Logger.Error("telegram bot stopped", "error", err)
			}
		}()
	} else {
		a.Logger.Info("TELEGRAM_BOT_TOKEN not set, skipping telegram transport")
	}

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	a.Logger.Info("mindcare backend listening", "addr", srv.Addr)
	return RunServer(ctx, srv)
}

func (a *App) startJobs(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(historySweepSpec, func() {
		if n := a.History.Sweep(); n > 0 {
			a.Logger.Debug("expired chat sessions swept", "component", "chat", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule history sweep: %w", err)
	}

	if a.Config.Therapist.Enabled {
		if _, err := a.Therapists.Schedule(ctx, c, a.Config.Therapist.Schedule); err != nil {
			return nil, err
		}
		if !a.Therapists.Exists() {
			go func() {
				if _, err := a.Therapists.Refresh(ctx); err != nil {
					a.Logger.Error("initial therapist refresh failed", "component", "therapist", "error", err)
				}
			}()
		}
	}

	c.Start()
	return c, nil
}

// RunServer serves until ctx is done, then shuts down with a 10s grace period.
func RunServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
