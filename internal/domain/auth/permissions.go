package auth

import "commissionflow/internal/domain/workflow"

const (
	PermCommissionsRead       = "commissions.read"
	PermCommissionsTransition = "commissions.transition"
	PermWorkflowRead          = "workflow.read"
	PermAuditRead             = "audit.read"
)

var DefaultPermissions = []string{
	PermCommissionsRead,
	PermCommissionsTransition,
	PermWorkflowRead,
	PermAuditRead,
}

// RolePermissions gates gateway routes. Whether a role may move a particular
// commission is decided by the workflow policy, not here.
var RolePermissions = map[workflow.Role][]string{
	workflow.RoleConsultant: {
		PermCommissionsRead,
		PermWorkflowRead,
	},
	workflow.RoleManager: {
		PermCommissionsRead,
		PermCommissionsTransition,
		PermWorkflowRead,
	},
	workflow.RoleDirector: {
		PermCommissionsRead,
		PermCommissionsTransition,
		PermWorkflowRead,
	},
	workflow.RoleFinance: {
		PermCommissionsRead,
		PermCommissionsTransition,
		PermWorkflowRead,
	},
	workflow.RoleAdmin: {
		PermCommissionsRead,
		PermCommissionsTransition,
		PermWorkflowRead,
		PermAuditRead,
	},
}

func HasPermission(role workflow.Role, permission string) bool {
	for _, perm := range RolePermissions[role] {
		if perm == permission {
			return true
		}
	}
	return false
}

func PermissionsFor(role workflow.Role) []string {
	return append([]string(nil), RolePermissions[role]...)
}
