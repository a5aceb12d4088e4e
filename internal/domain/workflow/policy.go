package workflow

// rules is the authoritative policy. Admin is folded in wherever finance or
// director appear; see TransitionRule.allows.
var rules = []TransitionRule{
	{From: StatePending, Action: ActionAuthorize, To: StateAuthorized, Roles: []Role{RoleFinance, RoleManager}},
	{From: StatePending, Action: ActionReject, To: StateRejected, Roles: []Role{RoleFinance, RoleManager}},
	{From: StateAuthorized, Action: ActionApprove, To: StateApproved, Roles: []Role{RoleDirector}},
	{From: StateAuthorized, Action: ActionReject, To: StateRejected, Roles: []Role{RoleDirector}},
	{From: StateApproved, Action: ActionMarkPaid, To: StatePaid, Roles: []Role{RoleFinance}},
}

type ruleKey struct {
	from   State
	action Action
}

var ruleIndex = func() map[ruleKey]TransitionRule {
	idx := make(map[ruleKey]TransitionRule, len(rules))
	for _, r := range rules {
		idx[ruleKey{from: r.From, action: r.Action}] = r
	}
	return idx
}()

// Rules returns a copy of the rule table.
func Rules() []TransitionRule {
	out := make([]TransitionRule, len(rules))
	for i, r := range rules {
		r.Roles = append([]Role(nil), r.Roles...)
		out[i] = r
	}
	return out
}

// RuleFor returns a copy of the unique rule for (from, action).
func RuleFor(from State, action Action) (TransitionRule, bool) {
	r, ok := ruleIndex[ruleKey{from: from, action: action}]
	if ok {
		r.Roles = append([]Role(nil), r.Roles...)
	}
	return r, ok
}

// PermittedActions lists what role may do to a commission in state. An empty
// result means view only.
func PermittedActions(role Role, state State) []Action {
	if IsTerminal(state) {
		return nil
	}
	var out []Action
	for _, action := range actionOrder {
		r, ok := ruleIndex[ruleKey{from: state, action: action}]
		if ok && r.allows(role) {
			out = append(out, action)
		}
	}
	return out
}

func Can(role Role, state State, action Action) bool {
	for _, a := range PermittedActions(role, state) {
		if a == action {
			return true
		}
	}
	return false
}
