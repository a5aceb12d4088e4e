package workflow

// TransitionRule is one edge of the policy: From --Action--> To, performed by
// any of Roles. Rules are never mutated after init.
type TransitionRule struct {
	From   State
	Action Action
	To     State
	Roles  []Role
}

func (r TransitionRule) allows(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
		if role == RoleAdmin && (allowed == RoleFinance || allowed == RoleDirector) {
			return true
		}
	}
	return false
}

// CommissionRef is the part of an externally owned commission the policy reads.
// Version is an opaque concurrency token; empty when the backend has none.
type CommissionRef struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Version string `json:"version,omitempty"`
}

// Descriptor describes an accepted transition. The caller sends it to the
// commission backend; nothing here has been applied yet.
type Descriptor struct {
	CommissionID string `json:"commissionId"`
	From         State  `json:"fromState"`
	To           State  `json:"toState"`
	Action       Action `json:"action"`
	Role         Role   `json:"actingRole"`
	Reason       string `json:"reason,omitempty"`
	Version      string `json:"version,omitempty"`
}
