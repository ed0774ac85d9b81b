package exportcmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mwtmurphy/go-playbook/internal/exporter"
)

const exportSiteMessageType = "playbook.export.site"

// ResultCallback receives export results produced by exporter runs. The
// callback is optional and is invoked synchronously from the handler.
type ResultCallback func(ResultEnvelope)

// ResultEnvelope captures the outcome of an export command execution.
type ResultEnvelope struct {
	Result   *exporter.ExportResult
	Metadata map[string]any
}

// ExportSiteCommand renders the corpus into the static site output.
type ExportSiteCommand struct {
	Slugs          []string       `json:"slugs,omitempty"`
	Force          bool           `json:"force,omitempty"`
	DryRun         bool           `json:"dry_run,omitempty"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (ExportSiteCommand) Type() string { return exportSiteMessageType }

// Validate ensures slug filters are well-formed.
func (m ExportSiteCommand) Validate() error {
	errs := validation.Errors{}
	for _, slug := range m.Slugs {
		if strings.TrimSpace(slug) == "" {
			errs["slugs"] = validation.NewError("playbook.export.site.slug_invalid", "slugs must not contain empty values")
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FeatureGates exposes runtime switches used to guard handler execution.
type FeatureGates struct {
	ExportEnabled func() bool
}

func (g FeatureGates) exportEnabled() bool {
	if g.ExportEnabled == nil {
		return false
	}
	return g.ExportEnabled()
}
