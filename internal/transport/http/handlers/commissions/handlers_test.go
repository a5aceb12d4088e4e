package commissionhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/commissionapi"
	"commissionflow/internal/platform/metrics"
	"commissionflow/internal/transport/http/middleware"
)

type fakeAPI struct {
	mu       sync.Mutex
	items    map[string]commissionapi.Snapshot
	applyErr error
	applied  []workflow.Descriptor
	gets     int
}

func newFakeAPI(snaps ...commissionapi.Snapshot) *fakeAPI {
	f := &fakeAPI{items: map[string]commissionapi.Snapshot{}}
	for _, s := range snaps {
		f.items[s.ID] = s
	}
	return f
}

func snapshot(id string, state workflow.State) commissionapi.Snapshot {
	return commissionapi.Snapshot{ID: id, Status: string(state), State: state, Consultant: commissionapi.Consultant{Username: "jdoe"}}
}

func (f *fakeAPI) Get(_ context.Context, id string) (commissionapi.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	snap, ok := f.items[id]
	if !ok {
		return commissionapi.Snapshot{}, commissionapi.ErrNotFound
	}
	return snap, nil
}

func (f *fakeAPI) ListPending(_ context.Context, _ string) ([]commissionapi.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]commissionapi.Snapshot, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAPI) Apply(_ context.Context, d workflow.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, d)
	if f.applyErr != nil {
		return f.applyErr
	}
	snap := f.items[d.CommissionID]
	snap.State = d.To
	snap.Status = string(d.To)
	f.items[d.CommissionID] = snap
	return nil
}

type fakeAudit struct {
	mu        sync.Mutex
	decisions []audit.Decision
}

func (f *fakeAudit) Record(_ context.Context, d audit.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return nil
}

type harness struct {
	api     *fakeAPI
	audit   *fakeAudit
	metrics *metrics.Collector
	router  http.Handler
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()
	return newHarnessWithStore(t, api, nil)
}

func newHarnessWithStore(t *testing.T, api *fakeAPI, store *middleware.IdempotencyStore) *harness {
	t.Helper()
	h := &harness{api: api, audit: &fakeAudit{}, metrics: metrics.New()}
	handler := NewHandler(api, nil, h.audit, h.metrics, store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.IdempotencyKey)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role := req.Header.Get("X-Test-Role")
			if role == "" {
				next.ServeHTTP(w, req)
				return
			}
			user := auth.UserContext{UserID: "user-" + role, Role: workflow.Role(role)}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	handler.RegisterRoutes(r)
	h.router = r
	return h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path string, role workflow.Role, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return h.doWithKey(t, method, path, role, body, "")
}

func (h *harness) doWithKey(t *testing.T, method, path string, role workflow.Role, body, idemKey string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", string(role))
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeItem(t *testing.T, raw json.RawMessage) Item {
	t.Helper()
	var item Item
	require.NoError(t, json.Unmarshal(raw, &item))
	return item
}

func TestTransitionApproveByDirector(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StateAuthorized)))

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleDirector, `{"action":"approve","expectedState":"authorized"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var result TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, workflow.StateAuthorized, result.Descriptor.From)
	assert.Equal(t, workflow.StateApproved, result.Descriptor.To)
	assert.Equal(t, "approved", result.View.Status)
	assert.Empty(t, result.View.Actions)
	assert.Equal(t, "Awaiting Finance payment", result.View.Note)

	require.Len(t, h.api.applied, 1)
	require.Len(t, h.audit.decisions, 1)
	assert.Equal(t, audit.OutcomeApplied, h.audit.decisions[0].Outcome)
	assert.Equal(t, "approved", h.audit.decisions[0].ToState)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Decisions.WithLabelValues("approve", "director", "applied")))
}

func TestTransitionManagerApproveLabelAuthorizes(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StatePending)))

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleManager, `{"action":"authorize"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result TransitionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, workflow.StateAuthorized, result.Descriptor.To)
	assert.Equal(t, workflow.RoleManager, result.Descriptor.Role)
}

func TestTransitionRejections(t *testing.T) {
	cases := []struct {
		name    string
		state   workflow.State
		role    workflow.Role
		body    string
		status  int
		code    string
		outcome string
	}{
		{name: "manager cannot approve", state: workflow.StateAuthorized, role: workflow.RoleManager, body: `{"action":"approve"}`, status: http.StatusForbidden, code: "forbidden", outcome: "unauthorized"},
		{name: "reject needs reason", state: workflow.StatePending, role: workflow.RoleFinance, body: `{"action":"reject","reason":"   "}`, status: http.StatusUnprocessableEntity, code: "reason_required", outcome: "missing_reason"},
		{name: "paid is terminal", state: workflow.StatePaid, role: workflow.RoleFinance, body: `{"action":"mark_paid"}`, status: http.StatusConflict, code: "invalid_state", outcome: "invalid_state"},
		{name: "stale expected state", state: workflow.StateApproved, role: workflow.RoleDirector, body: `{"action":"approve","expectedState":"authorized"}`, status: http.StatusConflict, code: "conflict", outcome: "conflict"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, newFakeAPI(snapshot("c1", tc.state)))

			rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", tc.role, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
			assert.Empty(t, h.api.applied, "rejected transitions never reach the backend")

			item := decodeItem(t, env.Data)
			assert.Equal(t, string(tc.state), item.View.Status)

			require.Len(t, h.audit.decisions, 1)
			assert.Equal(t, tc.outcome, h.audit.decisions[0].Outcome)
		})
	}
}

func TestTransitionBackendConflictIsNotRetried(t *testing.T) {
	api := newFakeAPI(snapshot("c1", workflow.StatePending))
	api.applyErr = workflow.ErrConflict
	h := newHarness(t, api)

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleFinance, `{"action":"authorize"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Code)
	assert.Equal(t, "this record changed, refreshing", env.Error.Message)
	assert.Len(t, api.applied, 1)
	assert.Equal(t, "pending", decodeItem(t, env.Data).View.Status)
}

func TestTransitionBackendFailure(t *testing.T) {
	api := newFakeAPI(snapshot("c1", workflow.StateApproved))
	api.applyErr = &commissionapi.StatusError{Operation: "apply", StatusCode: http.StatusInternalServerError}
	h := newHarness(t, api)

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleFinance, `{"action":"mark_paid"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", env.Error.Code)
	require.Len(t, h.audit.decisions, 1)
	assert.Equal(t, audit.OutcomeFailed, h.audit.decisions[0].Outcome)
}

func TestTransitionValidation(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StatePending)))

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleFinance, `{"action":"escalate"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleFinance, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", env.Error.Code)
	assert.Empty(t, h.audit.decisions)
}

func TestTransitionRequiresPermission(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StatePending)))

	rec, _ := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleConsultant, `{"action":"authorize"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/commissions/c1/transitions", "", `{"action":"authorize"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransitionNotFound(t *testing.T) {
	h := newHarness(t, newFakeAPI())

	rec, env := h.do(t, http.MethodPost, "/commissions/missing/transitions", workflow.RoleFinance, `{"action":"authorize"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestTransitionOnProcessingIsInvalidState(t *testing.T) {
	h := newHarness(t, newFakeAPI(commissionapi.Snapshot{ID: "c1", Status: "processing"}))

	rec, env := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleFinance, `{"action":"mark_paid"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", env.Error.Code)
	assert.Equal(t, "processing", decodeItem(t, env.Data).View.Status)
}

func TestAdminInheritsDirectorAndFinance(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StateAuthorized), snapshot("c2", workflow.StateApproved)))

	rec, _ := h.do(t, http.MethodPost, "/commissions/c1/transitions", workflow.RoleAdmin, `{"action":"approve"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = h.do(t, http.MethodPost, "/commissions/c2/transitions", workflow.RoleAdmin, `{"action":"mark_paid"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestQueueActionableFilter(t *testing.T) {
	h := newHarness(t, newFakeAPI(
		snapshot("c1", workflow.StatePending),
		snapshot("c2", workflow.StateAuthorized),
		snapshot("c3", workflow.StateApproved),
		commissionapi.Snapshot{ID: "c4", Status: "processing"},
	))

	rec, env := h.do(t, http.MethodGet, "/commissions/queue", workflow.RoleFinance, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []Item
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 4)

	rec, env = h.do(t, http.MethodGet, "/commissions/queue?actionable=true", workflow.RoleFinance, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var actionable []Item
	require.NoError(t, json.Unmarshal(env.Data, &actionable))
	require.Len(t, actionable, 2)
	assert.Equal(t, "c1", actionable[0].Commission.ID)
	assert.Equal(t, "c3", actionable[1].Commission.ID)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
}

func TestQueueRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, newFakeAPI())

	rec, env := h.do(t, http.MethodGet, "/commissions/queue?status=archived", workflow.RoleFinance, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestWorkflowView(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StatePending)))

	rec, env := h.do(t, http.MethodGet, "/commissions/c1/workflow", workflow.RoleManager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	item := decodeItem(t, env.Data)
	require.Len(t, item.View.Actions, 2)
	assert.Equal(t, workflow.ActionAuthorize, item.View.Actions[0].Action)
	assert.Equal(t, "Approve", item.View.Actions[0].Label)
	assert.Equal(t, workflow.ActionReject, item.View.Actions[1].Action)
}

func TestStatementPDF(t *testing.T) {
	h := newHarness(t, newFakeAPI(snapshot("c1", workflow.StateApproved)))

	rec, _ := h.do(t, http.MethodGet, "/commissions/c1/statement.pdf", workflow.RoleFinance, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "c-1", sanitizeFilename("c-1"))
	assert.Equal(t, "etcpasswd", sanitizeFilename("../etc/passwd"))
	assert.Equal(t, "statement", sanitizeFilename("///"))
}
