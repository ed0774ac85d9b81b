package corpuscmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mwtmurphy/go-playbook/internal/domain"
	"github.com/mwtmurphy/go-playbook/standards"
)

const (
	syncCorpusMessageType        = "playbook.corpus.sync"
	reindexReferencesMessageType = "playbook.corpus.reindex"
)

// SyncResultCallback receives the sync outcome produced by the corpus service.
// The callback is optional and is invoked synchronously from the handler when
// a SyncResult is available, including partial results from failed runs.
type SyncResultCallback func(SyncResultEnvelope)

// SyncResultEnvelope captures the outcome of a corpus sync execution.
type SyncResultEnvelope struct {
	Result   *standards.SyncResult
	Metadata map[string]any
}

// SyncCorpusCommand synchronises the stored corpus with the document source.
type SyncCorpusCommand struct {
	Status         string             `json:"status,omitempty"`
	DryRun         bool               `json:"dry_run,omitempty"`
	DeleteOrphaned bool               `json:"delete_orphaned,omitempty"`
	UpdateExisting *bool              `json:"update_existing,omitempty"`
	ResultCallback SyncResultCallback `json:"-"`
}

// Type implements command.Message.
func (SyncCorpusCommand) Type() string { return syncCorpusMessageType }

// Validate ensures the default status, when set, is a known lifecycle state.
func (m SyncCorpusCommand) Validate() error {
	errs := validation.Errors{}
	if trimmed := strings.TrimSpace(m.Status); trimmed != "" {
		if !domain.IsValidStatus(domain.NormalizeStatus(trimmed)) {
			errs["status"] = validation.NewError("playbook.corpus.sync.status_invalid", "status must be draft, published, or archived")
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ReindexResultCallback receives the reindex outcome. Optional, invoked
// synchronously from the handler.
type ReindexResultCallback func(ReindexResultEnvelope)

// ReindexResultEnvelope captures the outcome of a structure rebuild.
type ReindexResultEnvelope struct {
	Result   *standards.ReindexResult
	Metadata map[string]any
}

// ReindexReferencesCommand rebuilds section and reference rows from the
// stored document bodies without touching the source files.
type ReindexReferencesCommand struct {
	ResultCallback ReindexResultCallback `json:"-"`
}

// Type implements command.Message.
func (ReindexReferencesCommand) Type() string { return reindexReferencesMessageType }

// Validate satisfies command.Message; there are no payload constraints.
func (ReindexReferencesCommand) Validate() error { return nil }
