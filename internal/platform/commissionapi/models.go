package commissionapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"commissionflow/internal/domain/workflow"
)

// backend vocabulary that differs from the workflow states
const (
	backendSubmitted  = "submitted"
	backendProcessing = "processing"
)

type Consultant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Snapshot is a commission as the backend reported it. State is empty when
// Status is display-only and the policy must not act on it.
type Snapshot struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	State            workflow.State `json:"state,omitempty"`
	Version          string         `json:"version,omitempty"`
	ReferenceNumber  string         `json:"referenceNumber,omitempty"`
	CommissionType   string         `json:"commissionType,omitempty"`
	TransactionDate  string         `json:"transactionDate,omitempty"`
	SaleAmount       string         `json:"saleAmount,omitempty"`
	CommissionRate   string         `json:"commissionRate,omitempty"`
	CalculatedAmount string         `json:"calculatedAmount,omitempty"`
	Consultant       Consultant     `json:"consultant"`
	RejectionReason  string         `json:"rejectionReason,omitempty"`
	CreatedAt        string         `json:"createdAt,omitempty"`
}

func (s Snapshot) Actionable() bool {
	return s.State != ""
}

func (s Snapshot) Ref() workflow.CommissionRef {
	return workflow.CommissionRef{ID: s.ID, State: s.State, Version: s.Version}
}

// flexString accepts JSON strings, numbers and null. The backend serializes
// ids as integers and decimals as strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

type wireConsultant struct {
	ID       flexString `json:"id"`
	Username string     `json:"username"`
}

type wireCommission struct {
	ID               flexString     `json:"id"`
	State            string         `json:"state"`
	Status           string         `json:"status"`
	Version          flexString     `json:"version"`
	ReferenceNumber  string         `json:"reference_number"`
	CommissionType   string         `json:"commission_type"`
	TransactionDate  string         `json:"transaction_date"`
	SaleAmount       flexString     `json:"sale_amount"`
	CommissionRate   flexString     `json:"commission_rate"`
	CalculatedAmount flexString     `json:"calculated_amount"`
	Consultant       wireConsultant `json:"consultant"`
	RejectionReason  string         `json:"rejection_reason"`
	CreatedAt        string         `json:"created_at"`
}

func (w wireCommission) snapshot() (Snapshot, error) {
	raw := w.State
	if strings.TrimSpace(raw) == "" {
		raw = w.Status
	}
	status, state, err := parseBackendStatus(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("commission %s: %w", w.ID, err)
	}
	return Snapshot{
		ID:               string(w.ID),
		Status:           status,
		State:            state,
		Version:          string(w.Version),
		ReferenceNumber:  w.ReferenceNumber,
		CommissionType:   w.CommissionType,
		TransactionDate:  w.TransactionDate,
		SaleAmount:       string(w.SaleAmount),
		CommissionRate:   string(w.CommissionRate),
		CalculatedAmount: string(w.CalculatedAmount),
		Consultant:       Consultant{ID: string(w.Consultant.ID), Username: w.Consultant.Username},
		RejectionReason:  w.RejectionReason,
		CreatedAt:        w.CreatedAt,
	}, nil
}

func parseBackendStatus(raw string) (string, workflow.State, error) {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch status {
	case backendSubmitted:
		return string(workflow.StatePending), workflow.StatePending, nil
	case backendProcessing:
		return status, "", nil
	}
	state, err := workflow.ParseState(status)
	if err != nil {
		return "", "", err
	}
	return status, state, nil
}

// backendState translates a workflow state into the value the backend stores.
func backendState(s workflow.State) string {
	if s == workflow.StatePending {
		return backendSubmitted
	}
	return string(s)
}

var actionVerbs = map[workflow.Action]string{
	workflow.ActionAuthorize: "submit",
	workflow.ActionApprove:   "approve",
	workflow.ActionReject:    "reject",
	workflow.ActionMarkPaid:  "mark-paid",
}

type transitionRequest struct {
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	ExpectedState   string `json:"expected_state"`
	Version         string `json:"version,omitempty"`
}

// pendingItem is one approvals-queue entry. Some backends wrap the commission
// in an approval record; others return it flat.
type pendingItem struct {
	wireCommission
	Commission *wireCommission `json:"commission"`
}

// commission unwraps the nested record when present. The approval record's
// created_at wins over the commission's own.
func (p pendingItem) commission() wireCommission {
	if p.Commission == nil {
		return p.wireCommission
	}
	c := *p.Commission
	if p.CreatedAt != "" {
		c.CreatedAt = p.CreatedAt
	}
	return c
}

type pagedCommissions struct {
	Results []pendingItem `json:"results"`
}
