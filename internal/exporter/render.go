package exporter

import (
	"html/template"
	"time"

	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/standards"
)

// SiteMetadata exposes site-wide information to theme templates.
type SiteMetadata struct {
	Title       string
	Description string
	BaseURL     string
	GeneratedAt time.Time
}

// ThemeContext surfaces the active theme selection to templates.
type ThemeContext struct {
	Name        string
	Variant     string
	Tokens      map[string]string
	CSSVars     map[string]string
	Stylesheets []string
}

// PageContext is the data contract for the standard page template.
type PageContext struct {
	Site     SiteMetadata
	Theme    ThemeContext
	Standard *standards.Standard
	Body     template.HTML
	TOC      []render.TOCEntry
	URL      string
}

// IndexEntry is one document row on the index page and in the llms.txt
// agent index.
type IndexEntry struct {
	Slug        string
	Title       string
	Summary     string
	URL         string
	Tags        []string
	LastUpdated time.Time
}

// CategoryGroup collects the documents of one category, title-sorted.
type CategoryGroup struct {
	Category string
	Entries  []IndexEntry
}

// IndexContext is the data contract for the index template.
type IndexContext struct {
	Site   SiteMetadata
	Theme  ThemeContext
	Groups []CategoryGroup
	Total  int
}

// RenderedPage captures one built page before it is persisted.
type RenderedPage struct {
	Slug           string
	Title          string
	URL            string
	Output         string
	HTML           string
	SourceChecksum string
	Checksum       string
	LastModified   time.Time
	Duration       time.Duration
}

// PageDiagnostic records timing and errors for a single page render.
type PageDiagnostic struct {
	Slug     string
	Duration time.Duration
	Skipped  bool
	Err      error
}

type renderOutcome struct {
	page       RenderedPage
	diagnostic PageDiagnostic
	err        error
	skipped    bool
}

// pageJob pairs a document with its resolved page URL for the render pool.
type pageJob struct {
	doc *standards.Standard
	url string
}
