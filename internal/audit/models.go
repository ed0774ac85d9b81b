package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Severity orders rule findings from informational to blocking.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank maps the severity onto a comparable scale; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run is one evaluation of the rule catalog over the corpus.
type Run struct {
	bun.BaseModel `bun:"table:audit_runs,alias:ar"`

	ID         uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	Status     string         `bun:"status,notnull,default:'running'" json:"status"`
	Documents  int            `bun:"documents,notnull,default:0" json:"documents"`
	Errors     int            `bun:"errors,notnull,default:0" json:"errors"`
	Warnings   int            `bun:"warnings,notnull,default:0" json:"warnings"`
	Infos      int            `bun:"infos,notnull,default:0" json:"infos"`
	Meta       map[string]any `bun:"meta,type:jsonb" json:"meta,omitempty"`
	StartedAt  time.Time      `bun:"started_at,nullzero" json:"started_at"`
	FinishedAt *time.Time     `bun:"finished_at,nullzero" json:"finished_at,omitempty"`
}

// Issue is one rule finding persisted with its run.
type Issue struct {
	bun.BaseModel `bun:"table:audit_issues,alias:ai"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	RunID     uuid.UUID `bun:"run_id,notnull,type:uuid" json:"run_id"`
	Code      string    `bun:"code,notnull" json:"code"`
	Severity  Severity  `bun:"severity,notnull" json:"severity"`
	Slug      string    `bun:"slug" json:"slug,omitempty"`
	Path      string    `bun:"path" json:"path,omitempty"`
	Line      int       `bun:"line,notnull,default:0" json:"line"`
	Message   string    `bun:"message,notnull" json:"message"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Report is the in-memory view of a finished run.
type Report struct {
	Run    *Run     `json:"run"`
	Issues []*Issue `json:"issues"`
}

// HasSeverityAtLeast reports whether any issue meets the threshold; callers
// map this onto process exit codes.
func (r *Report) HasSeverityAtLeast(threshold Severity) bool {
	if r == nil {
		return false
	}
	for _, issue := range r.Issues {
		if issue.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}
