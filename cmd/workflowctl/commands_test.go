package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commissionflow/internal/domain/auth"
	"commissionflow/internal/domain/workflow"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPolicyPrintsRules(t *testing.T) {
	out, err := execute(t, "policy")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM")
	assert.Contains(t, out, "mark_paid")
}

func TestPolicyForManager(t *testing.T) {
	out, err := execute(t, "policy", "--role", "Manager")
	require.NoError(t, err)
	assert.Contains(t, out, "Approve (authorize)")
	assert.Contains(t, out, "dashboard: /manager")
}

func TestCheckAccepted(t *testing.T) {
	out, err := execute(t, "check", "--role", "director", "--state", "authorized", "--action", "approve", "--id", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, `"toState": "approved"`)
}

func TestCheckRejected(t *testing.T) {
	out, err := execute(t, "check", "--role", "finance", "--state", "pending", "--action", "reject")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrMissingReason)
	assert.Contains(t, out, "rejected (missing_reason)")
}

func TestStepsProcessing(t *testing.T) {
	out, err := execute(t, "steps", "processing")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[>] Approved", lines[2])
}

func TestTokenRoundTrip(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--user", "u9", "--role", "finance")
	require.NoError(t, err)

	user, err := auth.Authenticate("s3cret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u9", user.UserID)
	assert.Equal(t, workflow.RoleFinance, user.Role)
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	_, err := execute(t, "token", "--secret", "s3cret", "--role", "intern")
	assert.ErrorIs(t, err, workflow.ErrUnknownRole)
}

func TestMigrateDryRun(t *testing.T) {
	out, err := execute(t, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "0001_workflow_decisions")
	assert.Contains(t, out, "0002_idempotency_keys")
}
