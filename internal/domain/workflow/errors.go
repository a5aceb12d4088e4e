package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownState  = errors.New("unknown commission state")
	ErrUnknownRole   = errors.New("unknown role")
	ErrUnknownAction = errors.New("unknown action")
)

// Kind classifies an expected business outcome that stops a transition.
type Kind string

const (
	KindInvalidState  Kind = "invalid_state"
	KindUnauthorized  Kind = "unauthorized"
	KindMissingReason Kind = "missing_reason"
	KindConflict      Kind = "conflict"
)

// Sentinels for errors.Is against a *Rejection of the same kind.
var (
	ErrInvalidState  = &Rejection{Kind: KindInvalidState, Message: "this commission can no longer be modified"}
	ErrUnauthorized  = &Rejection{Kind: KindUnauthorized, Message: "role is not permitted to perform this action"}
	ErrMissingReason = &Rejection{Kind: KindMissingReason, Message: "a rejection reason is required"}
	ErrConflict      = &Rejection{Kind: KindConflict, Message: "this record changed, refreshing"}
)

// Rejection is returned instead of a Descriptor when a transition may not
// proceed. Callers branch on Kind; none of these are programming errors.
type Rejection struct {
	Kind    Kind
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind
}

func reject(kind Kind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the rejection kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind, true
	}
	return "", false
}
