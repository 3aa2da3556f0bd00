package models

import "time"

// Group is a set of users that share expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Members is the list of member user IDs.
	Members []string

	// Active is false once the group has been archived. Archived groups keep
	// their history but accept no new expenses or settlements.
	Active bool

	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
