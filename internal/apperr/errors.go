// Package apperr defines the error kinds surfaced by the ledger.
//
// Every validation failure is reported as an *Error carrying a Kind, so callers
// can branch with errors.Is against the package-level sentinels:
//
//	if errors.Is(err, apperr.ErrAlreadyConfirmed) { ... }
//
// Two errors match when their kinds match; the message is informational only.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger error.
type Kind string

const (
	KindInvalidStatus      Kind = "invalid_status"
	KindNotInvolved        Kind = "not_involved"
	KindInvalidAmount      Kind = "invalid_amount"
	KindInvalidSplit       Kind = "invalid_split"
	KindReceiverNotFound   Kind = "receiver_not_found"
	KindUserNotFound       Kind = "user_not_found"
	KindExpenseNotFound    Kind = "expense_not_found"
	KindSettlementNotFound Kind = "settlement_not_found"
	KindGroupNotFound      Kind = "group_not_found"
	KindAlreadyConfirmed   Kind = "already_confirmed"
	KindInvalidState       Kind = "invalid_state"
	KindNotAuthorized      Kind = "not_authorized"
	KindNotAMember         Kind = "not_a_member"
	KindNoOutstandingDebt  Kind = "no_outstanding_debt"
	KindInvalidGroup       Kind = "invalid_group"
)

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidStatus      = &Error{Kind: KindInvalidStatus, Message: "status must be one of accepted, pending, rejected"}
	ErrNotInvolved        = &Error{Kind: KindNotInvolved, Message: "user is not involved in this expense"}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount, Message: "amount must be a positive decimal"}
	ErrInvalidSplit       = &Error{Kind: KindInvalidSplit, Message: "invalid split"}
	ErrReceiverNotFound   = &Error{Kind: KindReceiverNotFound, Message: "receiver not found"}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrExpenseNotFound    = &Error{Kind: KindExpenseNotFound, Message: "expense not found"}
	ErrSettlementNotFound = &Error{Kind: KindSettlementNotFound, Message: "settlement not found"}
	ErrGroupNotFound      = &Error{Kind: KindGroupNotFound, Message: "group not found"}
	ErrAlreadyConfirmed   = &Error{Kind: KindAlreadyConfirmed, Message: "settlement is already confirmed"}
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state transition"}
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized, Message: "not authorized"}
	ErrNotAMember         = &Error{Kind: KindNotAMember, Message: "you are not a member of this group"}
	ErrNoOutstandingDebt  = &Error{Kind: KindNoOutstandingDebt, Message: "nothing is owed to this receiver"}
	ErrInvalidGroup       = &Error{Kind: KindInvalidGroup, Message: "group is not active"}
)

// Error is a classified ledger error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
