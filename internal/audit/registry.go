package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwtmurphy/go-playbook/internal/profile"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

// Finding is one rule hit before it is attached to a run.
type Finding struct {
	Slug    string
	Path    string
	Line    int
	Message string
}

// DocumentContext is the per-document input handed to document rules. The
// structure is a fresh scan of the stored body, so its lines are
// body-relative; FileLine converts them to source file coordinates.
type DocumentContext struct {
	Standard  *standards.Standard
	Structure *interfaces.DocumentStructure
	Now       time.Time
}

// FileLine shifts a body-relative line by the document's front matter span.
func (dc *DocumentContext) FileLine(bodyLine int) int {
	if bodyLine <= 0 {
		return 0
	}
	return bodyLine + dc.Standard.BodyOffset
}

// CorpusContext is the corpus-wide input handed to corpus rules.
type CorpusContext struct {
	Standards []*standards.Standard
	Broken    []*refgraph.BrokenReference
	// Documents holds the freshly loaded source corpus when the service has
	// a document source; rules that compare source files use it.
	Documents []*interfaces.Document
}

// Rule is one entry of the audit catalog. Exactly one of Document or Corpus
// is set; document rules run once per standard, corpus rules once per run.
type Rule struct {
	Code     string
	Name     string
	Severity Severity
	Document func(*DocumentContext) []Finding
	Corpus   func(*CorpusContext) []Finding
}

// RuleConfig tunes the thresholds the default catalog evaluates against.
type RuleConfig struct {
	// MaxLines is the PB005 file length limit.
	MaxLines int
	// StaleAfterDays is the PB004 freshness window for last_updated.
	StaleAfterDays int
	// Profile validates front matter for PB009; nil disables the rule's
	// findings.
	Profile *profile.Profile
}

const (
	defaultMaxLines       = 500
	defaultStaleAfterDays = 365
)

func (c RuleConfig) withDefaults() RuleConfig {
	if c.MaxLines <= 0 {
		c.MaxLines = defaultMaxLines
	}
	if c.StaleAfterDays <= 0 {
		c.StaleAfterDays = defaultStaleAfterDays
	}
	return c
}

// Registry holds the rule catalog keyed by stable code.
type Registry struct {
	rules []Rule
	codes map[string]struct{}
}

// NewRegistry builds a registry from the given rules in order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	registry := &Registry{codes: make(map[string]struct{}, len(rules))}
	for _, rule := range rules {
		if err := registry.Register(rule); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register appends a rule; codes must be unique and non-empty.
func (r *Registry) Register(rule Rule) error {
	code := strings.TrimSpace(rule.Code)
	if code == "" {
		return fmt.Errorf("audit: rule code is required")
	}
	if _, exists := r.codes[code]; exists {
		return fmt.Errorf("audit: rule %s already registered", code)
	}
	if rule.Document == nil && rule.Corpus == nil {
		return fmt.Errorf("audit: rule %s has no check function", code)
	}
	rule.Code = code
	r.codes[code] = struct{}{}
	r.rules = append(r.rules, rule)
	return nil
}

// Rules returns the catalog in registration order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Enabled returns the catalog minus the disabled codes.
func (r *Registry) Enabled(disabled ...string) []Rule {
	if len(disabled) == 0 {
		return r.Rules()
	}
	skip := make(map[string]struct{}, len(disabled))
	for _, code := range disabled {
		skip[strings.TrimSpace(code)] = struct{}{}
	}
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if _, skipped := skip[rule.Code]; skipped {
			continue
		}
		out = append(out, rule)
	}
	return out
}
