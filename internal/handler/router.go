package handler

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/zhouzirui/mindcare/backend/internal/handler/auth"
	"github.com/zhouzirui/mindcare/backend/internal/handler/chat"
	"github.com/zhouzirui/mindcare/backend/internal/handler/report"
	"github.com/zhouzirui/mindcare/backend/internal/handler/stream"
	"github.com/zhouzirui/mindcare/backend/internal/handler/therapist"
	"github.com/zhouzirui/mindcare/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/mindcare/backend/internal/middleware"
	authService "github.com/zhouzirui/mindcare/backend/internal/service/auth"
	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
	reportService "github.com/zhouzirui/mindcare/backend/internal/service/report"
	therapistService "github.com/zhouzirui/mindcare/backend/internal/service/therapist"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Dependencies 是通过 HTTP 暴露的核心服务
type Dependencies struct {
	Auth           *authService.Service
	Chat           *chatService.Service
	Tips           chat.TipSource
	Reports        *reportService.Service
	Therapists     *therapistService.Directory
	AllowedOrigins []string
}

// NewRouter 将 HTTP 路由挂接到核心服务
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "mindcare",
		})
	})

	authH := authHandler.New(deps.Auth, deps.Chat.Reset)

	r.Route("/api", func(api chi.Router) {
		authH.RegisterPublicRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(middlewarePkg.Auth(deps.Auth))

			authH.RegisterRoutes(private)
			chat.New(deps.Chat, deps.Tips).RegisterRoutes(private)
			stream.New(deps.Chat).RegisterRoutes(private)
			ws.NewWebSocketHandler(deps.Chat, originChecker(deps.AllowedOrigins)).RegisterRoutes(private)
			report.New(deps.Reports).RegisterRoutes(private)
			therapist.New(deps.Therapists).RegisterRoutes(private)
		})
	})

	return r
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
