package domain

import internaldomain "github.com/mwtmurphy/go-playbook/internal/domain"

// Status represents lifecycle states for playbook standards.
type Status = internaldomain.Status

const (
	// StatusDraft indicates a standard still under preparation.
	StatusDraft = internaldomain.StatusDraft
	// StatusPublished identifies a standard available to consumers.
	StatusPublished = internaldomain.StatusPublished
	// StatusArchived marks a standard retained for history but no longer current guidance.
	StatusArchived = internaldomain.StatusArchived
)

// NormalizeStatus coerces arbitrary status strings into a known value.
func NormalizeStatus(input string) Status {
	return internaldomain.NormalizeStatus(input)
}

// IsValidStatus reports whether the value is one of the known lifecycle states.
func IsValidStatus(status Status) bool {
	return internaldomain.IsValidStatus(status)
}
