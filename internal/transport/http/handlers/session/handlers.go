package sessionhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/transport/http/api"
	"commissionflow/internal/transport/http/middleware"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAuth).Get("/session", h.handleSession)
}

type Session struct {
	UserID        string        `json:"userId"`
	Username      string        `json:"username,omitempty"`
	Role          workflow.Role `json:"role"`
	DashboardPath string        `json:"dashboardPath"`
	Permissions   []string      `json:"permissions"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, Session{
		UserID:        user.UserID,
		Username:      user.Username,
		Role:          user.Role,
		DashboardPath: workflow.DashboardPath(user.Role),
		Permissions:   auth.PermissionsFor(user.Role),
	}, middleware.GetRequestID(r.Context()))
}
