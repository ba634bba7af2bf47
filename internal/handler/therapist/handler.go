package therapist

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	therapistService "github.com/zhouzirui/mindcare/backend/internal/service/therapist"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Handler 咨询师目录
type Handler struct {
	dir *therapistService.Directory
}

func New(dir *therapistService.Directory) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/therapists", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.dir.Load())
}
