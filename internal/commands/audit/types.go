package auditcmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mwtmurphy/go-playbook/internal/audit"
)

const auditCorpusMessageType = "playbook.audit.run"

// ResultCallback receives the report produced by an audit run. The callback is
// optional and is invoked synchronously from the handler.
type ResultCallback func(ResultEnvelope)

// ResultEnvelope captures the outcome of an audit command execution.
type ResultEnvelope struct {
	Result   *audit.Report
	Metadata map[string]any
}

// AuditCorpusCommand evaluates the rule catalog over the stored corpus.
type AuditCorpusCommand struct {
	Disabled       []string       `json:"disabled,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (AuditCorpusCommand) Type() string { return auditCorpusMessageType }

// Validate ensures disabled rule codes are well-formed.
func (m AuditCorpusCommand) Validate() error {
	errs := validation.Errors{}
	for _, code := range m.Disabled {
		if strings.TrimSpace(code) == "" {
			errs["disabled"] = validation.NewError("playbook.audit.run.rule_code_invalid", "disabled must not contain empty rule codes")
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
