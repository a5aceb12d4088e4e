package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/transport/http/api"
	"commissionflow/internal/transport/http/middleware"
	"commissionflow/internal/transport/http/shared"
)

type DecisionLog interface {
	Enabled() bool
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Decision, error)
}

type Handler struct {
	Service DecisionLog
}

func NewHandler(service DecisionLog) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead)).Get("/decisions", h.handleListDecisions)
		r.With(middleware.RequirePermission(auth.PermAuditRead)).Get("/decisions/export", h.handleExportDecisions)
	})
}

var outcomes = []string{
	audit.OutcomeApplied,
	audit.OutcomeFailed,
	string(workflow.KindInvalidState),
	string(workflow.KindUnauthorized),
	string(workflow.KindMissingReason),
	string(workflow.KindConflict),
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (audit.Filter, shared.Page, bool) {
	query := r.URL.Query()
	filter := audit.Filter{
		CommissionID: query.Get("commissionId"),
		Outcome:      query.Get("outcome"),
		ActorID:      query.Get("actorUserId"),
	}
	v := shared.NewValidator()
	v.Enum("outcome", filter.Outcome, outcomes, "is not a known outcome")
	page := shared.ReadPage(r, v, 100, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return audit.Filter{}, shared.Page{}, false
	}
	return filter, page, true
}

func (h *Handler) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if !h.Service.Enabled() {
		api.Fail(w, http.StatusServiceUnavailable, "audit_disabled", "decision audit requires DATABASE_URL", reqID)
		return
	}
	filter, page, ok := h.filter(w, r)
	if !ok {
		return
	}

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("audit count failed")
	}

	decisions, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list decisions", reqID)
		return
	}
	if decisions == nil {
		decisions = []audit.Decision{}
	}

	shared.WriteTotal(w, total)
	api.Success(w, decisions, reqID)
}

func (h *Handler) handleExportDecisions(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Enabled() {
		api.Fail(w, http.StatusServiceUnavailable, "audit_disabled", "decision audit requires DATABASE_URL", middleware.GetRequestID(r.Context()))
		return
	}
	filter, _, ok := h.filter(w, r)
	if !ok {
		return
	}

	decisions, err := h.Service.List(r.Context(), filter, 10000, 0)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export decisions", middleware.GetRequestID(r.Context()))
		return
	}

	logger := zerolog.Ctx(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=workflow-decisions.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "commission_id", "actor_user_id", "role", "action", "from_state", "to_state", "outcome", "reason", "request_id", "ip", "created_at"}); err != nil {
		logger.Warn().Err(err).Msg("audit export header failed")
	}
	for _, d := range decisions {
		row := []string{d.ID, d.CommissionID, d.ActorID, d.Role, d.Action, d.FromState, d.ToState, d.Outcome, d.Reason, d.RequestID, d.IP, d.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(row); err != nil {
			logger.Warn().Err(err).Msg("audit export row failed")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.Warn().Err(err).Msg("audit export flush failed")
	}
}
