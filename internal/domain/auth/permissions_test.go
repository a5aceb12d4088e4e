package auth

import (
	"testing"

	"commissionflow/internal/domain/workflow"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestEveryRoleHasPermissions(t *testing.T) {
	for _, role := range workflow.Roles() {
		if len(RolePermissions[role]) == 0 {
			t.Fatalf("role %s missing from RolePermissions", role)
		}
	}
}

func TestTransitionPermissionMatchesPolicy(t *testing.T) {
	for _, role := range workflow.Roles() {
		canAct := false
		for _, state := range workflow.States() {
			if len(workflow.PermittedActions(role, state)) > 0 {
				canAct = true
			}
		}
		if has := HasPermission(role, PermCommissionsTransition); canAct != has {
			t.Fatalf("role %s: policy actions=%v, transition permission=%v", role, canAct, has)
		}
	}
}
