// Package verification tracks per-user acceptance of an expense and derives
// whether the expense is approved.
package verification

import (
	"sort"

	"github.com/mmynk/splitledger/internal/apperr"
)

// Status is one user's verdict on an expense.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAccepted, StatusPending, StatusRejected:
		return Status(s), nil
	default:
		return "", apperr.New(apperr.KindInvalidStatus, "unknown verification status %q", s)
	}
}

// State is the verification record owned by a single expense.
// The zero value is not usable; build one with New or Restore.
type State struct {
	payer    string
	statuses map[string]Status
	approved bool
}

// New initializes verification for a freshly created expense: the payer is
// accepted and every other participant is pending.
func New(payerID string, participants []string) *State {
	s := &State{
		payer:    payerID,
		statuses: map[string]Status{payerID: StatusAccepted},
	}
	for _, p := range participants {
		if p == payerID {
			continue
		}
		s.statuses[p] = StatusPending
	}
	s.recompute()
	return s
}

// Restore rebuilds a State from persisted statuses. Involved users with no
// stored status are treated as pending; stored statuses for users that are no
// longer involved are dropped.
func Restore(payerID string, participants []string, stored map[string]Status) (*State, error) {
	s := &State{payer: payerID, statuses: make(map[string]Status, len(participants)+1)}
	involved := append([]string{payerID}, participants...)
	for _, u := range involved {
		st, ok := stored[u]
		if !ok {
			st = StatusPending
		}
		if _, err := ParseStatus(string(st)); err != nil {
			return nil, err
		}
		s.statuses[u] = st
	}
	s.recompute()
	return s, nil
}

// SetStatus records user's verdict and recomputes approval.
func (s *State) SetStatus(userID string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	if _, ok := s.statuses[userID]; !ok {
		return apperr.New(apperr.KindNotInvolved, "user %s is not involved in this expense", userID)
	}
	s.statuses[userID] = status
	s.recompute()
	return nil
}

// recompute applies the approval rule: a single rejection vetoes, otherwise
// every involved user must have accepted.
func (s *State) recompute() {
	for _, st := range s.statuses {
		if st == StatusRejected {
			s.approved = false
			return
		}
	}
	for _, st := range s.statuses {
		if st != StatusAccepted {
			s.approved = false
			return
		}
	}
	s.approved = true
}

// Approved reports whether every involved user has accepted.
func (s *State) Approved() bool {
	return s.approved
}

// Rejected reports whether any involved user has rejected.
func (s *State) Rejected() bool {
	for _, st := range s.statuses {
		if st == StatusRejected {
			return true
		}
	}
	return false
}

// Status returns the verdict of userID and whether the user is involved.
func (s *State) Status(userID string) (Status, bool) {
	st, ok := s.statuses[userID]
	return st, ok
}

// Involved returns the involved user IDs in sorted order.
func (s *State) Involved() []string {
	users := make([]string, 0, len(s.statuses))
	for u := range s.statuses {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Snapshot returns a copy of every involved user's status.
func (s *State) Snapshot() map[string]Status {
	out := make(map[string]Status, len(s.statuses))
	for u, st := range s.statuses {
		out[u] = st
	}
	return out
}
