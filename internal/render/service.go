package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	urlkit "github.com/goliatone/go-urlkit"
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/standards"
)

// Route defaults for corpus page URLs.
const (
	DefaultRouteGroup = "playbook"
	DefaultRouteName  = "standard"
	DefaultSlugParam  = "slug"
)

// Config controls HTML output and link rewriting.
type Config struct {
	// AllowUnsafeHTML passes raw HTML in source bodies through to the
	// output. Off by default; raw HTML is dropped.
	AllowUnsafeHTML bool
	// HardWraps turns single newlines into <br> tags.
	HardWraps bool
	// Group names the urlkit route group carrying the standard route.
	Group string
	// Route names the page route inside the group.
	Route string
	// SlugParam is the route parameter receiving the document slug.
	SlugParam string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Group) == "" {
		c.Group = DefaultRouteGroup
	}
	if strings.TrimSpace(c.Route) == "" {
		c.Route = DefaultRouteName
	}
	if strings.TrimSpace(c.SlugParam) == "" {
		c.SlugParam = DefaultSlugParam
	}
	return c
}

// DefaultRouteConfig returns a route table serving the corpus page route.
// Hosts with their own routing hand urlkit a wider config instead.
func DefaultRouteConfig(baseURL string) *urlkit.Config {
	return &urlkit.Config{
		Groups: []urlkit.GroupConfig{
			{
				Name:    DefaultRouteGroup,
				BaseURL: strings.TrimRight(baseURL, "/"),
				Paths: map[string]string{
					DefaultRouteName: "/standards/:slug",
				},
			},
		},
	}
}

// RenderOptions adjusts a single render call.
type RenderOptions struct {
	// IncludeTOC attaches the table of contents built from the stored
	// outline rows.
	IncludeTOC bool
}

// TOCEntry is one table of contents row. Entries stay flat; templates
// indent by level.
type TOCEntry struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// Result is a rendered document.
type Result struct {
	Standard *standards.Standard `json:"standard"`
	HTML     string              `json:"html"`
	TOC      []TOCEntry          `json:"toc,omitempty"`
}

// Service renders stored standards to HTML with corpus-aware links.
type Service interface {
	Render(ctx context.Context, slug string, opts RenderOptions) (*Result, error)
	// PageURL builds the route URL for a document slug; the exporter and
	// sitemap reuse it so every surface agrees on page locations.
	PageURL(slug string) (string, error)
}

type service struct {
	standards standards.StandardRepository
	manager   *urlkit.RouteManager
	cfg       Config
	engine    goldmark.Markdown

	groupOnce sync.Once
	group     *urlkit.Group
	groupErr  error
}

// NewService wires the renderer over the corpus store and a urlkit route
// manager.
func NewService(repo standards.StandardRepository, manager *urlkit.RouteManager, cfg Config) (Service, error) {
	if repo == nil {
		return nil, standards.ErrRepositoryRequired
	}
	if manager == nil {
		return nil, fmt.Errorf("render: route manager is required")
	}

	cfg = cfg.withDefaults()
	return &service{
		standards: repo,
		manager:   manager,
		cfg:       cfg,
		engine:    newEngine(cfg),
	}, nil
}

// Render converts the stored body to HTML. Internal links come out as page
// route URLs with their fragments preserved; unresolved links stay as
// written so the audit remains the single place that reports them.
func (s *service) Render(ctx context.Context, slug string, opts RenderOptions) (*Result, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, standards.ErrSlugRequired
	}

	record, err := s.standards.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	known, err := s.knownSlugs(ctx)
	if err != nil {
		return nil, err
	}

	state := &rewriteState{
		fromPath: record.SourcePath,
		known:    known,
		pageURL:  s.PageURL,
	}
	pctx := parser.NewContext()
	pctx.Set(rewriteStateKey, state)

	var buf bytes.Buffer
	if err := s.engine.Convert([]byte(record.Body), &buf, parser.WithContext(pctx)); err != nil {
		return nil, fmt.Errorf("render %s: %w", record.Slug, err)
	}
	if state.err != nil {
		return nil, fmt.Errorf("render %s: %w", record.Slug, state.err)
	}

	result := &Result{Standard: record, HTML: buf.String()}
	if opts.IncludeTOC {
		sections, err := s.standards.ListSections(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		result.TOC = buildTOC(sections)
	}
	return result, nil
}

// PageURL builds the absolute page URL for a slug via the route manager.
func (s *service) PageURL(slug string) (string, error) {
	group, err := s.routeGroup()
	if err != nil {
		return "", err
	}
	builder, err := safeBuilder(group, s.cfg.Route)
	if err != nil {
		return "", err
	}
	builder.WithParam(s.cfg.SlugParam, slug)
	return builder.Build()
}

func (s *service) knownSlugs(ctx context.Context) (map[string]struct{}, error) {
	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("render: load corpus: %w", err)
	}
	known := make(map[string]struct{}, len(records))
	for _, record := range records {
		known[record.Slug] = struct{}{}
	}
	return known, nil
}

func (s *service) routeGroup() (*urlkit.Group, error) {
	s.groupOnce.Do(func() {
		s.group, s.groupErr = lookupGroup(s.manager, s.cfg.Group)
	})
	return s.group, s.groupErr
}

// buildTOC flattens the stored outline rows. Level-1 headings are omitted;
// the page chrome already shows the title.
func buildTOC(sections []*standards.Section) []TOCEntry {
	out := make([]TOCEntry, 0, len(sections))
	for _, section := range sections {
		if section.Level <= 1 {
			continue
		}
		out = append(out, TOCEntry{
			Level:  section.Level,
			Text:   section.Text,
			Anchor: section.Anchor,
		})
	}
	return out
}

// newEngine builds the goldmark instance shared by every render call.
// Per-document state travels through the parser context, so one engine
// serves concurrent renders.
func newEngine(cfg Config) goldmark.Markdown {
	parserOptions := []parser.Option{
		parser.WithAutoHeadingID(),
		parser.WithASTTransformers(util.Prioritized(&linkRewriter{}, 500)),
	}

	rendererOptions := []renderer.Option{}
	if cfg.HardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}
	if cfg.AllowUnsafeHTML {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}

	engineOptions := []goldmark.Option{
		goldmark.WithParserOptions(parserOptions...),
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.TaskList),
	}
	if len(rendererOptions) > 0 {
		engineOptions = append(engineOptions, goldmark.WithRendererOptions(rendererOptions...))
	}

	return goldmark.New(engineOptions...)
}

var rewriteStateKey = parser.NewContextKey()

// rewriteState carries per-document rewrite inputs through the parser
// context. The first URL build failure aborts the render.
type rewriteState struct {
	fromPath string
	known    map[string]struct{}
	pageURL  func(slug string) (string, error)
	err      error
}

func (st *rewriteState) rewrite(dest []byte) []byte {
	if st.err != nil {
		return dest
	}

	resolution := refgraph.Resolve(st.fromPath, string(dest))
	if resolution.Kind != refgraph.KindInternal || resolution.Slug == "" {
		return dest
	}
	if _, ok := st.known[resolution.Slug]; !ok {
		return dest
	}

	url, err := st.pageURL(resolution.Slug)
	if err != nil {
		st.err = err
		return dest
	}
	if resolution.Fragment != "" {
		url += "#" + resolution.Fragment
	}
	return []byte(url)
}

// linkRewriter swaps internal Markdown destinations for page route URLs
// during parsing. Images keep their source-relative paths; the exporter
// copies assets alongside pages.
type linkRewriter struct{}

func (t *linkRewriter) Transform(doc *gast.Document, _ text.Reader, pc parser.Context) {
	state, _ := pc.Get(rewriteStateKey).(*rewriteState)
	if state == nil {
		return
	}

	_ = gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		if link, ok := n.(*gast.Link); ok {
			link.Destination = state.rewrite(link.Destination)
		}
		return gast.WalkContinue, nil
	})
}

func lookupGroup(manager *urlkit.RouteManager, name string) (group *urlkit.Group, err error) {
	if manager == nil {
		return nil, fmt.Errorf("render: route manager not configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render: route group %q not found", name)
		}
	}()
	group = manager.Group(name)
	return group, err
}

func safeBuilder(group *urlkit.Group, route string) (builder *urlkit.Builder, err error) {
	if group == nil {
		return nil, fmt.Errorf("render: urlkit group is nil")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render: urlkit builder panic: %v", rec)
		}
	}()
	builder = group.Builder(route)
	return builder, err
}
