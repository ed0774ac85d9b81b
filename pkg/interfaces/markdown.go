package interfaces

import (
	"time"
)

// MarkdownParser defines how raw Markdown bytes are converted into HTML.
// Implementations should support reusable parser instances and extension
// toggles so hosts can tailor rendering without rewriting the core services.
type MarkdownParser interface {
	// Parse converts Markdown into HTML using the parser's default settings.
	Parse(markdown []byte) ([]byte, error)
	// ParseWithOptions converts Markdown into HTML using the supplied overrides.
	ParseWithOptions(markdown []byte, opts ParseOptions) ([]byte, error)
}

// ParseOptions customises Markdown parsing behaviour, keeping option names
// readable for configuration unmarshalling and CLI flags.
type ParseOptions struct {
	Extensions []string
	HardWraps  bool
	// SafeMode escapes raw HTML found in the source instead of passing it
	// through. Corpus content renders in safe mode unless configured otherwise.
	SafeMode bool
}

// StructureScanner extracts the queryable shape of a Markdown document:
// its heading outline, hyperlinks, fenced code blocks, and tables.
type StructureScanner interface {
	Scan(doc *Document) (*DocumentStructure, error)
}

// FrontMatterValidator checks a document's metadata against the corpus
// profile. Violations are advisory; importers record them as warnings.
type FrontMatterValidator interface {
	ValidateDocument(doc *Document) []string
}

// Document represents a Markdown standards file with parsed metadata and
// content. The struct is shared between the interfaces package and internal
// implementations so consumers can depend on a stable contract.
type Document struct {
	FilePath     string
	FrontMatter  FrontMatter
	Body         []byte
	Raw          []byte
	LastModified time.Time
	// Checksum stores a digest of the original file content (typically SHA-256)
	// so sync workflows can detect changes without re-importing unchanged files.
	Checksum []byte
}

// FrontMatter models metadata extracted from standards files. The typed
// fields cover the playbook metadata profile; Custom keeps residual keys so
// domain-specific values survive the round trip.
type FrontMatter struct {
	Title       string         `yaml:"title" json:"title"`
	Slug        string         `yaml:"slug" json:"slug"`
	Summary     string         `yaml:"summary" json:"summary"`
	Category    string         `yaml:"category" json:"category"`
	Status      string         `yaml:"status" json:"status"`
	Tags        []string       `yaml:"tags" json:"tags"`
	Version     string         `yaml:"version" json:"version"`
	LastUpdated time.Time      `yaml:"last_updated" json:"last_updated"`
	Draft       bool           `yaml:"draft" json:"draft"`
	Custom      map[string]any `yaml:",inline" json:"custom"`
	Raw         map[string]any `yaml:"-" json:"raw"`
}

// HasLastUpdated reports whether the file declared a Last Updated date.
func (fm FrontMatter) HasLastUpdated() bool {
	return !fm.LastUpdated.IsZero()
}

// DocumentStructure is the scanner's view of a single document body.
type DocumentStructure struct {
	Headings   []Heading
	Links      []Link
	CodeFences []CodeFence
	Tables     []TableShape
	LineCount  int
}

// Heading is one outline entry. Anchor carries the auto-generated heading id
// used by fragment links.
type Heading struct {
	Level  int
	Text   string
	Anchor string
	Line   int
}

// LinkKind classifies a hyperlink destination.
type LinkKind string

const (
	// LinkInternal is a relative reference to another corpus file.
	LinkInternal LinkKind = "internal"
	// LinkExternal is an absolute URL outside the corpus.
	LinkExternal LinkKind = "external"
	// LinkAnchor is a same-document fragment reference.
	LinkAnchor LinkKind = "anchor"
)

// Link is one hyperlink or image reference found in the body.
type Link struct {
	Dest     string
	Kind     LinkKind
	Fragment string
	IsImage  bool
	Line     int
}

// CodeFence is one fenced code block. The body is opaque data; fences are
// never executed or evaluated.
type CodeFence struct {
	Language string
	Body     string
	Line     int
}

// TableShape captures the column counts of one pipe table so malformed rows
// can be reported with their source line.
type TableShape struct {
	Line          int
	HeaderColumns int
	Rows          []TableRow
}

// TableRow records the cell count observed on one table row.
type TableRow struct {
	Line  int
	Cells int
}

// LoadOptions fine-tunes how documents are discovered and parsed from the
// corpus filesystem.
type LoadOptions struct {
	Recursive *bool
	Patterns  []string
	// MaxFileBytes guards against oversized files; zero applies the loader
	// default.
	MaxFileBytes int64
}
