package domain

import "strings"

// Status enumerates ticket lifecycle states. Comparisons are case-insensitive
// everywhere; the canonical display strings are kept for persistence.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

// Statuses lists every valid status in display order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
}

// ParseStatus resolves free-form input to a canonical status.
func ParseStatus(raw string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, status := range Statuses() {
		if strings.ToLower(string(status)) == normalized {
			return status, true
		}
	}
	return "", false
}

// Equals compares statuses ignoring case.
func (s Status) Equals(other string) bool {
	return strings.EqualFold(string(s), strings.TrimSpace(other))
}

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// String returns the display form.
func (s Status) String() string {
	return string(s)
}
