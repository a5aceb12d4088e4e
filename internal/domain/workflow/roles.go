package workflow

import (
	"fmt"
	"strings"
)

// NormalizeRole maps a session role string to a Role. Legacy accounts carry an
// unknown role plus an is_manager flag; those become RoleManager. Call it once
// where the session is established, not per request handler.
func NormalizeRole(raw string, isManager bool) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r.Valid() {
		return r, nil
	}
	if isManager {
		return RoleManager, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}
