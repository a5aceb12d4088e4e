package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commissionflow/internal/domain/workflow"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs   []execCall
	execErr error
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestRecordWithoutDBIsNoop(t *testing.T) {
	var nilService *Service
	assert.NoError(t, nilService.Record(context.Background(), Decision{}))
	assert.NoError(t, New(nil).Record(context.Background(), Decision{}))

	total, err := New(nil).Count(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRecordInsertsDecision(t *testing.T) {
	db := &fakeQuerier{}
	svc := New(db)

	d := FromDescriptor(workflow.Descriptor{
		CommissionID: "c-1",
		From:         workflow.StateAuthorized,
		To:           workflow.StateRejected,
		Action:       workflow.ActionReject,
		Role:         workflow.RoleDirector,
		Reason:       "incomplete docs",
	}, OutcomeApplied)
	d.ActorID = "u-7"
	d.RequestID = "req-1"

	require.NoError(t, svc.Record(context.Background(), d))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO workflow_decisions")
	assert.Equal(t, []any{"c-1", "u-7", "director", "reject", "authorized", "rejected", OutcomeApplied, "incomplete docs", "req-1", ""}, db.execs[0].args)
}

func TestRecordWrapsError(t *testing.T) {
	boom := errors.New("boom")
	svc := New(&fakeQuerier{execErr: boom})
	err := svc.Record(context.Background(), Decision{CommissionID: "c"})
	assert.ErrorIs(t, err, boom)
}

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{})
	assert.Equal(t, "SELECT COUNT(1) FROM workflow_decisions WHERE 1=1", query)
	assert.Empty(t, args)

	query, args = buildBaseQuery("SELECT COUNT(1)", Filter{CommissionID: "c-1", ActorID: "u-1"})
	assert.Equal(t, "SELECT COUNT(1) FROM workflow_decisions WHERE 1=1 AND commission_id = $1 AND actor_user_id = $2", query)
	assert.Equal(t, []any{"c-1", "u-1"}, args)
}

func TestPruneDeletesBeforeCutoff(t *testing.T) {
	db := &fakeQuerier{}
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := New(db).Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "DELETE FROM workflow_decisions")
	assert.Equal(t, []any{cutoff}, db.execs[0].args)
}

func TestPruneWithoutDBIsNoop(t *testing.T) {
	n, err := New(nil).Prune(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
