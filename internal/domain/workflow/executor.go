package workflow

import (
	"fmt"
	"strings"
)

// RequestTransition validates action against the snapshot and role and
// describes the resulting transition. It performs no I/O.
//
// Business outcomes come back as *Rejection. Unknown enum values are reported
// as plain errors since they mean the caller skipped parsing.
func RequestTransition(ref CommissionRef, role Role, action Action, reason string) (Descriptor, error) {
	if !ref.State.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownState, ref.State)
	}
	if !role.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if !action.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if IsTerminal(ref.State) {
		return Descriptor{}, reject(KindInvalidState, "commission %s is %s and can no longer be modified", ref.ID, ref.State)
	}
	if !Can(role, ref.State, action) {
		return Descriptor{}, reject(KindUnauthorized, "%s may not %s a %s commission", role, action, ref.State)
	}

	reason = strings.TrimSpace(reason)
	if action == ActionReject && reason == "" {
		return Descriptor{}, reject(KindMissingReason, "a rejection reason is required")
	}

	rule, _ := RuleFor(ref.State, action)
	d := Descriptor{
		CommissionID: ref.ID,
		From:         ref.State,
		To:           rule.To,
		Action:       action,
		Role:         role,
		Version:      ref.Version,
	}
	if action == ActionReject {
		d.Reason = reason
	}
	return d, nil
}

// ConfirmFresh checks that the descriptor was built from the current snapshot.
// A mismatch is a Conflict: refresh and re-evaluate, never resend d.
func ConfirmFresh(d Descriptor, current CommissionRef) error {
	if d.CommissionID != current.ID {
		return reject(KindConflict, "descriptor for %s does not match commission %s", d.CommissionID, current.ID)
	}
	if d.From != current.State {
		return reject(KindConflict, "commission %s moved from %s to %s", current.ID, d.From, current.State)
	}
	if d.Version != "" && current.Version != "" && d.Version != current.Version {
		return reject(KindConflict, "commission %s changed since version %s", current.ID, d.Version)
	}
	return nil
}
