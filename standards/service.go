package standards

import (
	"context"
	"strings"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/google/uuid"
)

// StandardRepository abstracts storage for standards and their extracted
// structure. Structure rows are replaced atomically so readers never observe
// a standard whose sections belong to an older body.
type StandardRepository interface {
	Create(ctx context.Context, record *Standard) (*Standard, error)
	Update(ctx context.Context, record *Standard) (*Standard, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Standard, error)
	GetBySlug(ctx context.Context, slug string) (*Standard, error)
	List(ctx context.Context) ([]*Standard, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceStructure(ctx context.Context, standardID uuid.UUID, sections []*Section, references []*Reference) error
	ListSections(ctx context.Context, standardID uuid.UUID) ([]*Section, error)
	ListReferences(ctx context.Context, standardID uuid.UUID) ([]*Reference, error)
	ListAllReferences(ctx context.Context) ([]*Reference, error)
	CreateRevision(ctx context.Context, revision *Revision) (*Revision, error)
	ListRevisions(ctx context.Context, standardID uuid.UUID) ([]*Revision, error)
	GetLatestRevision(ctx context.Context, standardID uuid.UUID) (*Revision, error)
}

// DocumentSource supplies the parsed corpus documents for ImportAll and Sync
// runs. The Markdown loader satisfies this through a thin adapter; embedders
// can plug any other origin.
type DocumentSource interface {
	Load(ctx context.Context) ([]*interfaces.Document, error)
}

// Service exposes the corpus use cases: importing standards files and reading
// them back with their extracted structure.
type Service interface {
	Import(ctx context.Context, doc *interfaces.Document, opts ImportOptions) (*ImportResult, error)
	ImportAll(ctx context.Context, opts ImportOptions) (*ImportResult, error)
	Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error)
	Reindex(ctx context.Context) (*ReindexResult, error)
	Get(ctx context.Context, slug string, opts ...GetOption) (*Standard, error)
	GetByID(ctx context.Context, id uuid.UUID, opts ...GetOption) (*Standard, error)
	List(ctx context.Context, filter ListFilter, opts ...ListOption) ([]*Standard, error)
	Search(ctx context.Context, query string, opts ...ListOption) ([]*Standard, error)
	Outline(ctx context.Context, slug string) (*Outline, error)
	Revisions(ctx context.Context, slug string) ([]*Revision, error)
	Stats(ctx context.Context) (*Stats, error)
}

// ListOption configures list/get behavior. It is an alias to string so option
// tokens survive config unmarshalling and command payloads.
type ListOption = string

// GetOption reuses list option tokens.
type GetOption = ListOption

const (
	listWithSections   ListOption = "standards:list:with_sections"
	listWithReferences ListOption = "standards:list:with_references"
	listWithRevisions  ListOption = "standards:list:with_revisions"
	listIncludeDrafts  ListOption = "standards:list:include_drafts"
)

// WithSections preloads the outline rows for each returned standard.
func WithSections() ListOption { return listWithSections }

// WithReferences preloads the extracted hyperlink rows.
func WithReferences() ListOption { return listWithReferences }

// WithRevisions preloads the revision history.
func WithRevisions() ListOption { return listWithRevisions }

// IncludeDrafts widens reads to cover drafts and archived entries. Read
// surfaces default to published standards only.
func IncludeDrafts() ListOption { return listIncludeDrafts }

// HasOption reports whether the token list carries the given option.
func HasOption(opts []ListOption, token ListOption) bool {
	for _, opt := range opts {
		if strings.EqualFold(strings.TrimSpace(opt), token) {
			return true
		}
	}
	return false
}

// ListFilter narrows List results. Zero value means "all published".
type ListFilter struct {
	Category string
	Tag      string
	Status   string
}

// ImportOptions controls how a parsed document becomes a standard record.
type ImportOptions struct {
	// Status applied to new records when the front matter does not set one.
	Status string
	DryRun bool
}

// SyncOptions extends ImportOptions with update/delete semantics for repeated
// synchronisation runs against the corpus source.
type SyncOptions struct {
	ImportOptions
	DeleteOrphaned bool
	UpdateExisting bool
}

// ImportResult reports the outcome of an import batch. Per-file failures are
// accumulated so one bad file does not abort the batch; metadata profile
// violations surface as warnings rather than failures.
type ImportResult struct {
	CreatedIDs []uuid.UUID
	UpdatedIDs []uuid.UUID
	SkippedIDs []uuid.UUID
	Warnings   []string
	Errors     []error
}

// SyncResult summarises a full sync run across the corpus source.
type SyncResult struct {
	Created  int
	Updated  int
	Deleted  int
	Skipped  int
	Warnings []string
	Errors   []error
}

// ReindexResult summarises a structure rebuild. Reindex re-scans the stored
// bodies, so record content and revision history stay untouched.
type ReindexResult struct {
	Documents  int
	Sections   int
	References int
	Failed     int
	Errors     []error
}
