package audit

import (
	"context"
	"fmt"
	"time"

	"commissionflow/internal/domain/workflow"
	"commissionflow/internal/platform/querier"
)

const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "upstream_failed"
)

// Decision is one transition attempt as seen by the gateway. Outcome is either
// one of the Outcome constants or a workflow rejection kind.
type Decision struct {
	ID           string    `json:"id"`
	CommissionID string    `json:"commissionId"`
	ActorID      string    `json:"actorId"`
	Role         string    `json:"role"`
	Action       string    `json:"action"`
	FromState    string    `json:"fromState"`
	ToState      string    `json:"toState,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"requestId"`
	IP           string    `json:"ip"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FromDescriptor fills the transition fields of a decision.
func FromDescriptor(d workflow.Descriptor, outcome string) Decision {
	return Decision{
		CommissionID: d.CommissionID,
		Role:         string(d.Role),
		Action:       string(d.Action),
		FromState:    string(d.From),
		ToState:      string(d.To),
		Outcome:      outcome,
		Reason:       d.Reason,
	}
}

type Filter struct {
	CommissionID string
	Outcome      string
	ActorID      string
}

// Service records decisions in Postgres. A Service without a DB discards
// everything, so the gateway can run without storage.
type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Service) Record(ctx context.Context, d Decision) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO workflow_decisions (commission_id, actor_user_id, role, action, from_state, to_state, outcome, reason, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, d.CommissionID, d.ActorID, d.Role, d.Action, d.FromState, d.ToState, d.Outcome, d.Reason, d.RequestID, d.IP)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Prune deletes decisions recorded before cutoff and reports how many went.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM workflow_decisions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Decision, error) {
	if !s.Enabled() {
		return nil, nil
	}
	query, args := buildBaseQuery(`SELECT id, commission_id, actor_user_id, role, action, from_state, to_state, outcome, reason, request_id, ip, created_at`, filter)
	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.CommissionID, &d.ActorID, &d.Role, &d.Action, &d.FromState, &d.ToState, &d.Outcome, &d.Reason, &d.RequestID, &d.IP, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM workflow_decisions WHERE 1=1"
	var args []any
	if filter.CommissionID != "" {
		args = append(args, filter.CommissionID)
		query += fmt.Sprintf(" AND commission_id = $%d", len(args))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args))
	}
	return query, args
}
