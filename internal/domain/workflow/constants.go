package workflow

// State is the lifecycle state of a commission claim.
type State string

const (
	StatePending    State = "pending"
	StateAuthorized State = "authorized"
	StateApproved   State = "approved"
	StatePaid       State = "paid"
	StateRejected   State = "rejected"
)

// Role is the canonical role of the acting user. Raw session roles must go
// through NormalizeRole before they reach the policy.
type Role string

const (
	RoleConsultant Role = "consultant"
	RoleManager    Role = "manager"
	RoleFinance    Role = "finance"
	RoleDirector   Role = "director"
	RoleAdmin      Role = "admin"
)

// Action is a requested move between states.
type Action string

const (
	ActionAuthorize Action = "authorize"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionMarkPaid  Action = "mark_paid"
)

// Display-only status reported by some backends for approved commissions
// awaiting payout. It is not a State.
const legacyStatusProcessing = "processing"

var allStates = []State{StatePending, StateAuthorized, StateApproved, StatePaid, StateRejected}

var allRoles = []Role{RoleConsultant, RoleManager, RoleFinance, RoleDirector, RoleAdmin}

// actionOrder fixes the order in which permitted actions are reported.
var actionOrder = []Action{ActionAuthorize, ActionApprove, ActionMarkPaid, ActionReject}

var happyPath = []State{StatePending, StateAuthorized, StateApproved, StatePaid}

func States() []State {
	return append([]State(nil), allStates...)
}

func Roles() []Role {
	return append([]Role(nil), allRoles...)
}

func Actions() []Action {
	return append([]Action(nil), actionOrder...)
}

// HappyPath returns the forward progression pending → authorized → approved → paid.
func HappyPath() []State {
	return append([]State(nil), happyPath...)
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateAuthorized, StateApproved, StatePaid, StateRejected:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleConsultant, RoleManager, RoleFinance, RoleDirector, RoleAdmin:
		return true
	}
	return false
}

func (a Action) Valid() bool {
	switch a {
	case ActionAuthorize, ActionApprove, ActionReject, ActionMarkPaid:
		return true
	}
	return false
}
