package commissionhandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/commissionapi"
	"commissionflow/internal/requestctx"
	"commissionflow/internal/transport/http/api"
	"commissionflow/internal/transport/http/middleware"
	"commissionflow/internal/transport/http/shared"
)

const (
	transitionEndpoint = "commissions.transition"
	maxReasonLength    = 1000
)

type transitionRequest struct {
	Action          string `json:"action"`
	Reason          string `json:"reason"`
	ExpectedState   string `json:"expectedState"`
	ExpectedVersion string `json:"expectedVersion"`
}

// TransitionResult is returned once the backend accepted a transition. View
// and Commission reflect the backend after the write.
type TransitionResult struct {
	Descriptor workflow.Descriptor    `json:"descriptor"`
	Commission commissionapi.Snapshot `json:"commission"`
	View       workflow.View          `json:"view"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	user, ok := middleware.GetUser(ctx)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	id := chi.URLParam(r, "commissionID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_body", "failed to read request body", reqID)
		return
	}
	var req transitionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "invalid request body", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("action", req.Action, "is required")
	v.MaxLength("reason", req.Reason, maxReasonLength)
	var action workflow.Action
	if strings.TrimSpace(req.Action) != "" {
		if action, err = workflow.ParseAction(req.Action); err != nil {
			v.Add("action", "is not a known action")
		}
	}
	var expected workflow.State
	if strings.TrimSpace(req.ExpectedState) != "" {
		if expected, err = workflow.ParseState(req.ExpectedState); err != nil {
			v.Add("expectedState", "is not a known commission state")
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	idemKey := requestctx.GetIdempotencyKey(ctx)
	requestHash := middleware.RequestHash(append([]byte(id+"\n"), body...))
	stored, found, err := h.Idempotency.Check(ctx, user.UserID, transitionEndpoint, idemKey, requestHash)
	if errors.Is(err, middleware.ErrIdempotencyConflict) {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "Idempotency-Key was used with a different request", reqID)
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency check failed")
	}
	if found {
		api.Success(w, json.RawMessage(stored), reqID)
		return
	}

	decision := audit.Decision{
		CommissionID: id,
		ActorID:      user.UserID,
		Role:         string(user.Role),
		Action:       string(action),
		Reason:       strings.TrimSpace(req.Reason),
		RequestID:    reqID,
		IP:           shared.ClientIP(r),
	}

	snap, err := h.API.Get(ctx, id)
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}
	decision.FromState = snap.Status

	if !snap.Actionable() {
		h.respondRejection(w, r, decision, workflow.ErrInvalidState, snap)
		return
	}

	if expected != "" || req.ExpectedVersion != "" {
		probe := workflow.Descriptor{CommissionID: snap.ID, From: snap.State, Version: strings.TrimSpace(req.ExpectedVersion)}
		if expected != "" {
			probe.From = expected
		}
		if err := workflow.ConfirmFresh(probe, snap.Ref()); err != nil {
			h.respondRejection(w, r, decision, err, snap)
			return
		}
	}

	desc, err := workflow.RequestTransition(snap.Ref(), user.Role, action, req.Reason)
	if err != nil {
		h.respondRejection(w, r, decision, err, snap)
		return
	}
	decision = withActor(audit.FromDescriptor(desc, ""), decision)

	if err := h.API.Apply(ctx, desc); err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			refreshed, getErr := h.API.Get(ctx, id)
			if getErr != nil {
				zerolog.Ctx(ctx).Warn().Err(getErr).Str("commission_id", id).Msg("refresh after conflict failed")
				refreshed = snap
			}
			h.respondRejection(w, r, decision, err, refreshed)
			return
		}
		h.record(r, decision, audit.OutcomeFailed)
		h.failUpstream(w, r, err)
		return
	}
	h.record(r, decision, audit.OutcomeApplied)

	fresh, err := h.API.Get(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("commission_id", id).Msg("refresh after transition failed")
		fresh = snap
		fresh.State = desc.To
		fresh.Status = string(desc.To)
		fresh.Version = ""
	}
	view, err := h.view(fresh, user.Role)
	if err != nil {
		h.failUpstream(w, r, err)
		return
	}

	result := TransitionResult{Descriptor: desc, Commission: fresh, View: view}
	if idemKey != "" {
		encoded, err := json.Marshal(result)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency response marshal failed")
		} else if err := h.Idempotency.Save(ctx, user.UserID, transitionEndpoint, idemKey, requestHash, encoded); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency save failed")
		}
	}
	api.Success(w, result, reqID)
}

// respondRejection answers a business outcome. The current record is always
// included so the dashboard can redraw without another round trip.
func (h *Handler) respondRejection(w http.ResponseWriter, r *http.Request, decision audit.Decision, err error, snap commissionapi.Snapshot) {
	reqID := middleware.GetRequestID(r.Context())
	kind, ok := workflow.KindOf(err)
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_transition", err.Error(), reqID)
		return
	}
	h.record(r, decision, string(kind))

	view, viewErr := h.view(snap, middlewareRole(r))
	var data any
	if viewErr == nil {
		data = Item{Commission: snap, View: view}
	}

	switch kind {
	case workflow.KindInvalidState:
		api.FailWithData(w, http.StatusConflict, "invalid_state", workflow.ErrInvalidState.Message, data, reqID)
	case workflow.KindUnauthorized:
		api.FailWithData(w, http.StatusForbidden, "forbidden", rejectionMessage(err), data, reqID)
	case workflow.KindMissingReason:
		api.FailWithData(w, http.StatusUnprocessableEntity, "reason_required", workflow.ErrMissingReason.Message, data, reqID)
	case workflow.KindConflict:
		api.FailWithData(w, http.StatusConflict, "conflict", workflow.ErrConflict.Message, data, reqID)
	default:
		api.FailWithData(w, http.StatusBadRequest, string(kind), rejectionMessage(err), data, reqID)
	}
}

func (h *Handler) record(r *http.Request, decision audit.Decision, outcome string) {
	decision.Outcome = outcome
	h.Metrics.RecordDecision(decision.Action, decision.Role, outcome)
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), decision); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("commission_id", decision.CommissionID).Msg("audit record failed")
	}
}

// withActor carries the caller fields of from onto d.
func withActor(d, from audit.Decision) audit.Decision {
	d.ActorID = from.ActorID
	d.RequestID = from.RequestID
	d.IP = from.IP
	return d
}

func middlewareRole(r *http.Request) workflow.Role {
	user, _ := middleware.GetUser(r.Context())
	return user.Role
}

func rejectionMessage(err error) string {
	var rejection *workflow.Rejection
	if errors.As(err, &rejection) {
		return rejection.Message
	}
	return err.Error()
}
