package workflow

import (
	"fmt"
	"strings"
)

// Step is one entry of the progress indicator.
type Step struct {
	State     State  `json:"state"`
	Label     string `json:"label"`
	Completed bool   `json:"isCompleted"`
	Current   bool   `json:"isCurrent"`
	Rejected  bool   `json:"isRejected,omitempty"`
}

var stepLabels = map[State]string{
	StatePending:    "Pending",
	StateAuthorized: "Authorized",
	StateApproved:   "Approved",
	StatePaid:       "Paid",
	StateRejected:   "Rejected",
}

// RenderableSteps returns the happy-path progress for state. A rejected
// commission gets a single rejection marker instead of the progress list.
func RenderableSteps(state State) []Step {
	if state == StateRejected {
		return []Step{{State: StateRejected, Label: stepLabels[StateRejected], Current: true, Rejected: true}}
	}
	current := -1
	for i, s := range happyPath {
		if s == state {
			current = i
		}
	}
	steps := make([]Step, 0, len(happyPath))
	for i, s := range happyPath {
		steps = append(steps, Step{
			State:     s,
			Label:     stepLabels[s],
			Completed: current >= 0 && i < current,
			Current:   i == current,
		})
	}
	return steps
}

// StepsForStatus renders a raw backend status. The legacy "processing" status
// is drawn on the approved step; it never reaches the policy.
func StepsForStatus(raw string) ([]Step, error) {
	if strings.EqualFold(strings.TrimSpace(raw), legacyStatusProcessing) {
		return RenderableSteps(StateApproved), nil
	}
	state, err := ParseState(raw)
	if err != nil {
		return nil, err
	}
	return RenderableSteps(state), nil
}

// IsDisplayOnlyStatus reports whether raw is a status that can be shown but
// never acted on.
func IsDisplayOnlyStatus(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), legacyStatusProcessing)
}

// ActionLabel is a permitted action with the text a dashboard shows for it.
type ActionLabel struct {
	Action Action `json:"action"`
	Label  string `json:"label"`
	Tone   string `json:"tone,omitempty"`
}

// AvailableActionLabels lists the permitted actions for role in state, labelled
// from the default catalog.
func AvailableActionLabels(role Role, state State) []ActionLabel {
	return DefaultLabels().ActionLabels(role, state)
}

// StatusNote is the caption shown when role has nothing to do in state.
func StatusNote(role Role, state State) string {
	if notes, ok := statusNotes[role]; ok {
		if note, ok := notes[state]; ok {
			return note
		}
	}
	return viewerNotes[state]
}

// Captions for a role with no available action, keyed by who is waiting on whom.
var (
	pipelineNotes = map[State]string{
		StateAuthorized: "Awaiting Director approval",
		StatePaid:       "Completed",
		StateRejected:   "Rejected",
	}
	directorNotes = map[State]string{
		StatePending:  "Awaiting Finance authorization",
		StateApproved: "Awaiting Finance payment",
		StatePaid:     "Completed",
		StateRejected: "Rejected",
	}
	viewerNotes = map[State]string{
		StatePending:    "Awaiting Finance review",
		StateAuthorized: "Awaiting Director approval",
		StateApproved:   "Awaiting payment processing",
		StatePaid:       "Payment completed",
		StateRejected:   "Rejected",
	}
	statusNotes = map[Role]map[State]string{
		RoleFinance:  pipelineNotes,
		RoleAdmin:    pipelineNotes,
		RoleManager:  mergeNotes(pipelineNotes, map[State]string{StateApproved: "Awaiting Finance payment"}),
		RoleDirector: directorNotes,
	}
)

func mergeNotes(base, extra map[State]string) map[State]string {
	out := make(map[State]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var dashboards = map[Role]string{
	RoleConsultant: "/consultant",
	RoleManager:    "/manager",
	RoleFinance:    "/finance",
	RoleDirector:   "/director",
	RoleAdmin:      "/finance",
}

// DashboardPath is the landing page for role; unknown roles get the access
// denied page.
func DashboardPath(role Role) string {
	if path, ok := dashboards[role]; ok {
		return path
	}
	return "/403"
}

// View is everything a dashboard needs to draw one commission.
type View struct {
	CommissionID string        `json:"commissionId"`
	Status       string        `json:"status"`
	Steps        []Step        `json:"steps"`
	Actions      []ActionLabel `json:"actions"`
	Note         string        `json:"note,omitempty"`
	Terminal     bool          `json:"terminal"`
}

// BuildView renders ref for role. Actions is never nil so it encodes as [].
func BuildView(ref CommissionRef, role Role, catalog *LabelCatalog) View {
	if catalog == nil {
		catalog = DefaultLabels()
	}
	v := View{
		CommissionID: ref.ID,
		Status:       string(ref.State),
		Steps:        RenderableSteps(ref.State),
		Actions:      catalog.ActionLabels(role, ref.State),
		Terminal:     IsTerminal(ref.State),
	}
	if v.Actions == nil {
		v.Actions = []ActionLabel{}
	}
	if len(v.Actions) == 0 {
		v.Note = StatusNote(role, ref.State)
	}
	return v
}

// BuildDisplayView renders a status the policy cannot act on, such as the
// legacy processing alias.
func BuildDisplayView(id, rawStatus string) (View, error) {
	steps, err := StepsForStatus(rawStatus)
	if err != nil {
		return View{}, fmt.Errorf("render %s: %w", id, err)
	}
	return View{
		CommissionID: id,
		Status:       strings.ToLower(strings.TrimSpace(rawStatus)),
		Steps:        steps,
		Actions:      []ActionLabel{},
		Note:         viewerNotes[StateApproved],
	}, nil
}
