package commissionhandler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/commissionapi"
	"commissionflow/internal/platform/metrics"
	"commissionflow/internal/platform/statement"
	"commissionflow/internal/transport/http/api"
	"commissionflow/internal/transport/http/middleware"
	"commissionflow/internal/transport/http/shared"
)

// CommissionAPI is the external system of record.
type CommissionAPI interface {
	Get(ctx context.Context, id string) (commissionapi.Snapshot, error)
	ListPending(ctx context.Context, status string) ([]commissionapi.Snapshot, error)
	Apply(ctx context.Context, d workflow.Descriptor) error
}

type DecisionRecorder interface {
	Record(ctx context.Context, d audit.Decision) error
}

type Handler struct {
	API         CommissionAPI
	Labels      *workflow.LabelCatalog
	Audit       DecisionRecorder
	Metrics     *metrics.Collector
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(commissions CommissionAPI, labels *workflow.LabelCatalog, auditSvc DecisionRecorder, collector *metrics.Collector, idem *middleware.IdempotencyStore) *Handler {
	if labels == nil {
		labels = workflow.DefaultLabels()
	}
	return &Handler{API: commissions, Labels: labels, Audit: auditSvc, Metrics: collector, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/commissions", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCommissionsRead)).Get("/queue", h.handleQueue)
		r.With(middleware.RequirePermission(auth.PermCommissionsRead)).Get("/{commissionID}/workflow", h.handleWorkflow)
		r.With(middleware.RequirePermission(auth.PermCommissionsRead)).Get("/{commissionID}/statement.pdf", h.handleStatement)
		r.With(middleware.RequirePermission(auth.PermCommissionsTransition)).Post("/{commissionID}/transitions", h.handleTransition)
	})
}

// Item pairs the backend record with what the caller may do with it.
type Item struct {
	Commission commissionapi.Snapshot `json:"commission"`
	View       workflow.View          `json:"view"`
}

func (h *Handler) view(snap commissionapi.Snapshot, role workflow.Role) (workflow.View, error) {
	if !snap.Actionable() {
		return workflow.BuildDisplayView(snap.ID, snap.Status)
	}
	return workflow.BuildView(snap.Ref(), role, h.Labels), nil
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !workflow.IsDisplayOnlyStatus(status) {
		if _, err := workflow.ParseState(status); err != nil {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "status", Reason: "is not a known commission status"}})
			return
		}
	}
	actionableOnly, _ := strconv.ParseBool(r.URL.Query().Get("actionable"))

	snaps, err := h.API.ListPending(r.Context(), status)
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}

	items := make([]Item, 0, len(snaps))
	for _, snap := range snaps {
		view, err := h.view(snap, user.Role)
		if err != nil {
			h.failUpstream(w, r, err)
			return
		}
		if actionableOnly && len(view.Actions) == 0 {
			continue
		}
		items = append(items, Item{Commission: snap, View: view})
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	snap, err := h.API.Get(r.Context(), chi.URLParam(r, "commissionID"))
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}
	view, err := h.view(snap, user.Role)
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}
	api.Success(w, Item{Commission: snap, View: view}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	snap, err := h.API.Get(r.Context(), chi.URLParam(r, "commissionID"))
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}
	view, err := h.view(snap, user.Role)
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = statement.Render(&buf, statement.Statement{
		CommissionID:     snap.ID,
		ReferenceNumber:  snap.ReferenceNumber,
		Consultant:       snap.Consultant.Username,
		SaleAmount:       snap.SaleAmount,
		CalculatedAmount: snap.CalculatedAmount,
		Role:             user.Role,
		View:             view,
		GeneratedAt:      time.Now(),
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("commission_id", snap.ID).Msg("statement render failed")
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to render statement", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=commission-"+sanitizeFilename(snap.ID)+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// failUpstream maps errors from the commission backend. Unknown states in a
// backend payload are bad upstream data, not a caller mistake.
func (h *Handler) failUpstream(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var statusErr *commissionapi.StatusError
	switch {
	case errors.Is(err, commissionapi.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "commission not found", reqID)
	case errors.Is(err, commissionapi.ErrUpstreamDenied):
		api.Fail(w, http.StatusForbidden, "upstream_denied", "commission backend refused the request", reqID)
	case errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusGatewayTimeout, "upstream_timeout", "commission backend timed out", reqID)
	case errors.Is(err, workflow.ErrUnknownState):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("commission backend sent an unknown state")
		api.Fail(w, http.StatusBadGateway, "upstream_invalid", "commission backend returned an unknown status", reqID)
	case errors.As(err, &statusErr):
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("upstream_status", statusErr.StatusCode).Msg("commission backend error")
		api.Fail(w, http.StatusBadGateway, "upstream_error", "commission backend error", reqID)
	default:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("commission backend unavailable")
		api.Fail(w, http.StatusBadGateway, "upstream_unavailable", "commission backend unavailable", reqID)
	}
}

func sanitizeFilename(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "statement"
	}
	return b.String()
}
