package domain

import "strings"

// Status represents lifecycle states for playbook standards
type Status string

const (
	// StatusDraft indicates a standard still under preparation
	StatusDraft Status = "draft"
	// StatusPublished identifies a standard available to consumers
	StatusPublished Status = "published"
	// StatusArchived marks a standard retained for history but no longer current guidance
	StatusArchived Status = "archived"
)

// NormalizeStatus coerces arbitrary status strings into a known value,
// defaulting empty input to draft.
func NormalizeStatus(input string) Status {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return StatusDraft
	}
	return Status(trimmed)
}

// IsValidStatus reports whether the value is one of the known lifecycle states.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}
