package report

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindcare/backend/internal/middleware"
	reportService "github.com/zhouzirui/mindcare/backend/internal/service/report"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Handler 提供当前用户的情绪看板、历史记录与导出
type Handler struct {
	svc    *reportService.Service
	logger *slog.Logger
}

func New(svc *reportService.Service) *Handler {
	return &Handler{svc: svc, logger: slog.Default().With("component", "report")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/mood-trends/data", h.handleMoodTrends)
	r.Get("/chat/history", h.handleHistory)
	r.Get("/export/json", h.handleExportAll)
	r.Get("/export/{kind}/{format}", h.handleExport)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.internalError(w, "dashboard", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, d)
}

func (h *Handler) handleMoodTrends(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.MoodTrends(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.internalError(w, "mood trends", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, points)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.History(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.internalError(w, "history", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := reportService.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	format, err := reportService.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetAttachment(w, format.ContentType(), reportService.Filename(kind, format))
	if err := h.svc.Export(r.Context(), middleware.UserID(r.Context()), kind, format, w); err != nil {
		// 响应头可能已发送，只记录日志
		h.logger.Error("export failed", "kind", kind, "format", format, "error", err)
	}
}

func (h *Handler) handleExportAll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.svc.ExportAll(r.Context(), middleware.UserID(r.Context()), w); err != nil {
		h.logger.Error("full export failed", "error", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, what string, err error) {
	h.logger.Error(what+" failed", "error", err)
	utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
}
