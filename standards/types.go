package standards

import (
	"time"

	"github.com/mwtmurphy/go-playbook/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Standard is the canonical record for an imported standards file.
type Standard struct {
	bun.BaseModel `bun:"table:standards,alias:s"`

	ID          uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	Slug        string         `bun:"slug,notnull" json:"slug"`
	Title       string         `bun:"title,notnull" json:"title"`
	Summary     *string        `bun:"summary" json:"summary,omitempty"`
	Category    string         `bun:"category,notnull,default:'general'" json:"category"`
	Tags        []string       `bun:"tags,type:jsonb" json:"tags,omitempty"`
	Status      string         `bun:"status,notnull,default:'draft'" json:"status"`
	SourcePath  string         `bun:"source_path,notnull" json:"source_path"`
	Checksum    string         `bun:"checksum,notnull" json:"checksum"`
	Body        string         `bun:"body,notnull" json:"body"`
	Lines       int            `bun:"lines,notnull,default:0" json:"lines"`
	BodyOffset  int            `bun:"body_offset,notnull,default:0" json:"body_offset"`
	LastUpdated *time.Time     `bun:"last_updated,nullzero" json:"last_updated,omitempty"`
	Meta        map[string]any `bun:"meta,type:jsonb" json:"meta,omitempty"`
	DeletedAt   *time.Time     `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`

	Sections   []*Section   `bun:"rel:has-many,join:id=standard_id" json:"sections,omitempty"`
	References []*Reference `bun:"rel:has-many,join:id=standard_id" json:"references,omitempty"`
	Revisions  []*Revision  `bun:"rel:has-many,join:id=standard_id" json:"revisions,omitempty"`
}

// IsPublished reports whether the standard is visible to read surfaces.
func (s *Standard) IsPublished() bool {
	return s != nil && s.Status == string(domain.StatusPublished)
}

// Section is one heading of a standard's outline, ordered by Position.
type Section struct {
	bun.BaseModel `bun:"table:standard_sections,alias:ss"`

	ID         uuid.UUID `bun:",pk,type:uuid" json:"id"`
	StandardID uuid.UUID `bun:"standard_id,notnull,type:uuid" json:"standard_id"`
	Level      int       `bun:"level,notnull" json:"level"`
	Text       string    `bun:"text,notnull" json:"text"`
	Anchor     string    `bun:"anchor,notnull" json:"anchor"`
	Position   int       `bun:"position,notnull" json:"position"`
	Line       int       `bun:"line,notnull,default:0" json:"line"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// ReferenceKind classifies a hyperlink found in a standard's body.
type ReferenceKind string

const (
	// ReferenceInternal points at another standards file (`./python_style.md`).
	ReferenceInternal ReferenceKind = "internal"
	// ReferenceExternal points outside the corpus (absolute URL).
	ReferenceExternal ReferenceKind = "external"
	// ReferenceAnchor points at a heading in the same document (`#branching`).
	ReferenceAnchor ReferenceKind = "anchor"
)

// Reference is one hyperlink extracted from a standard's body. Internal
// references carry the resolved target slug; resolution does not imply the
// target exists.
type Reference struct {
	bun.BaseModel `bun:"table:standard_references,alias:sr"`

	ID         uuid.UUID     `bun:",pk,type:uuid" json:"id"`
	StandardID uuid.UUID     `bun:"standard_id,notnull,type:uuid" json:"standard_id"`
	RawDest    string        `bun:"raw_dest,notnull" json:"raw_dest"`
	Kind       ReferenceKind `bun:"kind,notnull" json:"kind"`
	TargetSlug *string       `bun:"target_slug" json:"target_slug,omitempty"`
	Fragment   *string       `bun:"fragment" json:"fragment,omitempty"`
	IsImage    bool          `bun:"is_image,notnull,default:false" json:"is_image"`
	Position   int           `bun:"position,notnull" json:"position"`
	Line       int           `bun:"line,notnull,default:0" json:"line"`
	CreatedAt  time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Revision snapshots a standard's raw content each time its checksum changes.
type Revision struct {
	bun.BaseModel `bun:"table:standard_revisions,alias:sv"`

	ID         uuid.UUID `bun:",pk,type:uuid" json:"id"`
	StandardID uuid.UUID `bun:"standard_id,notnull,type:uuid" json:"standard_id"`
	Version    int       `bun:"version,notnull" json:"version"`
	Checksum   string    `bun:"checksum,notnull" json:"checksum"`
	Raw        string    `bun:"raw,notnull" json:"raw"`
	CreatedAt  time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Outline is the ordered heading tree of a single standard.
type Outline struct {
	Slug     string        `json:"slug"`
	Title    string        `json:"title"`
	Headings []OutlineNode `json:"headings"`
}

// OutlineNode is one heading with its nested children.
type OutlineNode struct {
	Level    int           `json:"level"`
	Text     string        `json:"text"`
	Anchor   string        `json:"anchor"`
	Line     int           `json:"line"`
	Children []OutlineNode `json:"children,omitempty"`
}

// Stats summarises the corpus for dashboards and the MCP index resource.
type Stats struct {
	Documents     int            `json:"documents"`
	Published     int            `json:"published"`
	Drafts        int            `json:"drafts"`
	Archived      int            `json:"archived"`
	ByCategory    map[string]int `json:"by_category"`
	References    int            `json:"references"`
	InternalRefs  int            `json:"internal_refs"`
	ExternalRefs  int            `json:"external_refs"`
	LastImportAt  *time.Time     `json:"last_import_at,omitempty"`
	OldestUpdated *time.Time     `json:"oldest_updated,omitempty"`
}
