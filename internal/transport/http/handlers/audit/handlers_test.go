package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"commissionflow/internal/domain/audit"
	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/transport/http/middleware"
)

type fakeLog struct {
	enabled   bool
	decisions []audit.Decision
	lastQuery audit.Filter
	lastPage  [2]int
}

func (f *fakeLog) Enabled() bool { return f.enabled }

func (f *fakeLog) Count(_ context.Context, filter audit.Filter) (int, error) {
	return len(f.decisions), nil
}

func (f *fakeLog) List(_ context.Context, filter audit.Filter, limit, offset int) ([]audit.Decision, error) {
	f.lastQuery = filter
	f.lastPage = [2]int{limit, offset}
	return f.decisions, nil
}

func serve(t *testing.T, log DecisionLog, role workflow.Role, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(log).RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListDecisionsAdminOnly(t *testing.T) {
	log := &fakeLog{enabled: true}
	if rec := serve(t, log, workflow.RoleFinance, "/audit/decisions"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for finance, got %d", rec.Code)
	}
	rec := serve(t, log, workflow.RoleAdmin, "/audit/decisions?commissionId=c1&outcome=conflict")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	if log.lastQuery.CommissionID != "c1" || log.lastQuery.Outcome != "conflict" {
		t.Fatalf("unexpected filter: %+v", log.lastQuery)
	}
	if rec.Header().Get("X-Total-Count") != "0" {
		t.Fatalf("expected total header, got %q", rec.Header().Get("X-Total-Count"))
	}
}

func TestListDecisionsRejectsUnknownOutcome(t *testing.T) {
	rec := serve(t, &fakeLog{enabled: true}, workflow.RoleAdmin, "/audit/decisions?outcome=maybe")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListDecisionsPaging(t *testing.T) {
	log := &fakeLog{enabled: true}
	rec := serve(t, log, workflow.RoleAdmin, "/audit/decisions?limit=900&offset=20")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if log.lastPage != [2]int{500, 20} {
		t.Fatalf("expected clamped page, got %v", log.lastPage)
	}

	rec = serve(t, log, workflow.RoleAdmin, "/audit/decisions?limit=ten")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed limit, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"limit"`) {
		t.Fatalf("expected limit issue, got %s", rec.Body.String())
	}
}

func TestListDecisionsDisabledWithoutDatabase(t *testing.T) {
	rec := serve(t, &fakeLog{}, workflow.RoleAdmin, "/audit/decisions")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestExportDecisionsCSV(t *testing.T) {
	log := &fakeLog{enabled: true, decisions: []audit.Decision{{
		ID: "d1", CommissionID: "c1", Role: "director", Action: "approve", FromState: "authorized", ToState: "approved",
		Outcome: audit.OutcomeApplied, CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}}
	rec := serve(t, log, workflow.RoleAdmin, "/audit/decisions/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "d1" || rows[1][11] != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
