package workflowhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/transport/http/api"
	"commissionflow/internal/transport/http/middleware"
	"commissionflow/internal/transport/http/shared"
)

type Handler struct {
	Labels *workflow.LabelCatalog
}

func NewHandler(labels *workflow.LabelCatalog) *Handler {
	if labels == nil {
		labels = workflow.DefaultLabels()
	}
	return &Handler{Labels: labels}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workflow", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermWorkflowRead)).Get("/policy", h.handlePolicy)
		r.With(middleware.RequirePermission(auth.PermWorkflowRead)).Get("/steps", h.handleSteps)
	})
}

type Rule struct {
	From   workflow.State  `json:"from"`
	Action workflow.Action `json:"action"`
	To     workflow.State  `json:"to"`
	Roles  []workflow.Role `json:"roles"`
}

type Policy struct {
	States         []workflow.State                     `json:"states"`
	HappyPath      []workflow.State                     `json:"happyPath"`
	TerminalStates []workflow.State                     `json:"terminalStates"`
	Rules          []Rule                               `json:"rules"`
	Actions        []workflow.ActionLabel               `json:"actions"`
	Dashboard      string                               `json:"dashboardPath"`
	Permitted      map[workflow.State][]workflow.Action `json:"permitted"`
}

// handlePolicy describes the rule table and what the caller's role may do in
// each state.
func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	policy := Policy{
		States:    workflow.States(),
		HappyPath: workflow.HappyPath(),
		Dashboard: workflow.DashboardPath(user.Role),
		Permitted: map[workflow.State][]workflow.Action{},
	}
	for _, s := range policy.States {
		if workflow.IsTerminal(s) {
			policy.TerminalStates = append(policy.TerminalStates, s)
		}
		policy.Permitted[s] = workflow.PermittedActions(user.Role, s)
		if policy.Permitted[s] == nil {
			policy.Permitted[s] = []workflow.Action{}
		}
	}
	for _, rule := range workflow.Rules() {
		policy.Rules = append(policy.Rules, Rule{From: rule.From, Action: rule.Action, To: rule.To, Roles: rule.Roles})
	}
	for _, action := range workflow.Actions() {
		policy.Actions = append(policy.Actions, h.Labels.Label(user.Role, action))
	}

	api.Success(w, policy, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSteps(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	raw := r.URL.Query().Get("status")

	v := shared.NewValidator()
	v.Required("status", raw, "is required")
	if v.Reject(w, reqID) {
		return
	}

	steps, err := workflow.StepsForStatus(raw)
	if errors.Is(err, workflow.ErrUnknownState) {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "status", Reason: "is not a known commission status"}})
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "steps_failed", "failed to render steps", reqID)
		return
	}
	api.Success(w, map[string]any{
		"status":      raw,
		"displayOnly": workflow.IsDisplayOnlyStatus(raw),
		"steps":       steps,
	}, reqID)
}
