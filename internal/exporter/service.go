// Package exporter renders the published corpus into a static site: one HTML
// page per standard, a category index, theme assets, and the agent-facing
// sitemap.xml, llms.txt, and robots.txt artifacts. A build manifest keyed by
// source checksum makes repeat exports incremental; an unchanged corpus
// produces zero writes.
package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/pkg/activity"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

var (
	// ErrServiceDisabled is returned by the disabled service stub.
	ErrServiceDisabled = errors.New("exporter: service is disabled")
	// ErrRendererRequired is returned when no render service is wired.
	ErrRendererRequired = errors.New("exporter: render service is required")
)

// DefaultWorkers bounds the page render pool when the config leaves it unset.
const DefaultWorkers = 4

// Service builds the static site from the stored corpus.
type Service interface {
	Export(ctx context.Context, opts ExportOptions) (*ExportResult, error)
}

// Config holds the site identity and output layout.
type Config struct {
	// OutputDir is the destination prefix inside the storage provider.
	OutputDir string
	// BaseURL is the canonical site origin used for links, the sitemap,
	// and robots.txt.
	BaseURL string
	// SiteTitle labels the index page and page titles; empty means
	// "Playbook".
	SiteTitle string
	// SiteDescription feeds the index page and llms.txt blockquote.
	SiteDescription string
	// Theme selects and configures the page templates and assets.
	Theme ThemeConfig
	// Workers bounds the render pool; zero applies DefaultWorkers.
	Workers int
}

// ThemeConfig names the active theme. Dir points at an external theme
// directory with a manifest; empty keeps the embedded minimal theme.
type ThemeConfig struct {
	Name    string
	Variant string
	Dir     string
}

// ExportOptions adjusts a single export run.
type ExportOptions struct {
	// Slugs narrows the run to the named documents. Narrowed runs refresh
	// pages only: site-wide artifacts stay as they are and nothing is
	// pruned.
	Slugs []string
	// Force rebuilds every page and asset regardless of the manifest.
	Force bool
	// DryRun renders pages but writes nothing.
	DryRun bool
}

// ExportResult summarises one export run.
type ExportResult struct {
	PagesBuilt    int
	PagesSkipped  int
	AssetsBuilt   int
	AssetsSkipped int
	Pruned        int
	Duration      time.Duration
	Rendered      []RenderedPage
	Diagnostics   []PageDiagnostic
	Errors        []error
	DryRun        bool
}

// Dependencies carries the collaborators the exporter builds on. Standards
// and Renderer are required; Templates defaults to the theme renderer and a
// nil Storage turns all writes into no-ops.
type Dependencies struct {
	Standards standards.StandardRepository
	Renderer  render.Service
	Templates interfaces.TemplateRenderer
	Storage   interfaces.StorageProvider
	Emitter   *activity.Emitter
	Logger    interfaces.Logger
}

type service struct {
	cfg   Config
	deps  Dependencies
	theme *themeSelector
	now   func() time.Time
}

// NewService wires the static site exporter.
func NewService(cfg Config, deps Dependencies) (Service, error) {
	if deps.Standards == nil {
		return nil, standards.ErrRepositoryRequired
	}
	if deps.Renderer == nil {
		return nil, ErrRendererRequired
	}

	theme, err := newThemeSelector(cfg.Theme)
	if err != nil {
		return nil, err
	}
	if deps.Templates == nil {
		deps.Templates = newThemeRenderer(theme.sources)
	}

	return &service{
		cfg:   cfg,
		deps:  deps,
		theme: theme,
		now:   time.Now,
	}, nil
}

// NewDisabledService returns a stub that rejects every export.
func NewDisabledService() Service {
	return disabledService{}
}

type disabledService struct{}

func (disabledService) Export(context.Context, ExportOptions) (*ExportResult, error) {
	return nil, ErrServiceDisabled
}

func (s *service) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	generatedAt := s.now().UTC()

	docs, err := s.loadDocuments(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{DryRun: opts.DryRun}
	site := SiteMetadata{
		Title:       s.siteTitle(),
		Description: strings.TrimSpace(s.cfg.SiteDescription),
		BaseURL:     strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/"),
		GeneratedAt: generatedAt,
	}
	theme := s.theme.themeContext(site.BaseURL)
	baseDir := strings.Trim(s.cfg.OutputDir, "/")

	var (
		mu          sync.Mutex
		rendered    []RenderedPage
		errorsSlice []error
		pageKeys    = map[string]struct{}{}
	)

	manifest, err := s.loadManifest(ctx)
	if err != nil {
		errorsSlice = append(errorsSlice, err)
		manifest = newExportManifest()
	}

	collect := func(outcome renderOutcome) {
		mu.Lock()
		defer mu.Unlock()

		if slug := outcome.diagnostic.Slug; slug != "" {
			pageKeys[manifest.pageKey(slug)] = struct{}{}
		}
		result.Diagnostics = append(result.Diagnostics, outcome.diagnostic)
		switch {
		case outcome.err != nil:
			errorsSlice = append(errorsSlice, outcome.err)
			if s.deps.Logger != nil {
				s.deps.Logger.Warn("page export failed", "slug", outcome.diagnostic.Slug, "error", outcome.err)
			}
		case outcome.skipped:
			result.PagesSkipped++
		default:
			result.PagesBuilt++
			if !opts.DryRun {
				rendered = append(rendered, outcome.page)
			}
		}
	}

	jobs := make([]*pageJob, 0, len(docs))
	for _, doc := range docs {
		url, err := s.deps.Renderer.PageURL(doc.Slug)
		if err != nil {
			collect(renderOutcome{
				diagnostic: PageDiagnostic{Slug: doc.Slug, Err: err},
				err:        fmt.Errorf("exporter: page url for %s: %w", doc.Slug, err),
			})
			continue
		}
		jobs = append(jobs, &pageJob{doc: doc, url: url})
	}

	groups := buildCategoryGroups(jobs)

	renderJob := func(job *pageJob) renderOutcome {
		return s.renderPage(ctx, site, theme, job, manifest, baseDir, opts.Force)
	}

	workerCount := s.effectiveWorkerCount(len(jobs))
	if workerCount <= 1 || len(jobs) <= 1 {
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				collect(renderOutcome{diagnostic: PageDiagnostic{Slug: job.doc.Slug, Err: err}, err: err})
				break
			}
			collect(renderJob(job))
		}
	} else if err := renderConcurrently(ctx, jobs, workerCount, renderJob, collect); err != nil {
		errorsSlice = append(errorsSlice, err)
	}

	if opts.DryRun {
		sortRendered(rendered)
		sortDiagnostics(result.Diagnostics)
		result.Rendered = rendered
		result.Duration = time.Since(start)
		if len(errorsSlice) > 0 {
			result.Errors = errorsSlice
			return result, errors.Join(errorsSlice...)
		}
		return result, nil
	}

	writer := newArtifactWriter(s.deps.Storage)

	if err := s.persistPages(ctx, writer, baseDir, rendered); err != nil {
		errorsSlice = append(errorsSlice, err)
	}

	assetSummary, err := s.copyAssets(ctx, writer, manifest, baseDir, opts.Force)
	if err != nil {
		errorsSlice = append(errorsSlice, err)
	}
	result.AssetsBuilt = assetSummary.Built
	result.AssetsSkipped = assetSummary.Skipped

	// Site-wide artifacts are rebuilt only on full runs; a narrowed run sees
	// a partial document set and would shrink the index and sitemap.
	if len(opts.Slugs) == 0 {
		if err := s.writeIndex(ctx, writer, manifest, baseDir, site, theme, groups, opts.Force); err != nil {
			errorsSlice = append(errorsSlice, err)
		}
		if err := s.writeSitemap(ctx, writer, manifest, baseDir, site, jobs, opts.Force); err != nil {
			errorsSlice = append(errorsSlice, err)
		}
		if err := s.writeLLMSIndex(ctx, writer, manifest, baseDir, site, groups, opts.Force); err != nil {
			errorsSlice = append(errorsSlice, err)
		}
		if err := s.writeRobots(ctx, writer, manifest, baseDir, site, opts.Force); err != nil {
			errorsSlice = append(errorsSlice, err)
		}
	}

	if len(errorsSlice) == 0 {
		for _, page := range rendered {
			manifest.setPage(manifestPage{
				Slug:           page.Slug,
				URL:            page.URL,
				Output:         page.Output,
				SourceChecksum: page.SourceChecksum,
				Checksum:       page.Checksum,
				RenderedAt:     generatedAt,
			})
		}

		if len(opts.Slugs) == 0 {
			pruned, err := s.pruneOrphans(ctx, writer, manifest, baseDir, pageKeys, assetSummary.Keys)
			result.Pruned = pruned
			if err != nil {
				errorsSlice = append(errorsSlice, err)
			}
		}

		if len(errorsSlice) == 0 && manifest.dirty() {
			manifest.GeneratedAt = generatedAt
			if err := s.persistManifest(ctx, writer, manifest); err != nil {
				errorsSlice = append(errorsSlice, err)
			}
		}
	}

	sortRendered(rendered)
	sortDiagnostics(result.Diagnostics)
	result.Rendered = rendered
	result.Duration = time.Since(start)

	if len(errorsSlice) > 0 {
		result.Errors = errorsSlice
		return result, errors.Join(errorsSlice...)
	}

	if s.deps.Logger != nil {
		s.deps.Logger.Info("site export complete",
			"pages_built", result.PagesBuilt,
			"pages_skipped", result.PagesSkipped,
			"assets_built", result.AssetsBuilt,
			"pruned", result.Pruned,
			"duration", result.Duration,
		)
	}
	s.emitExportEvent(ctx, result)
	return result, nil
}

// loadDocuments lists the published corpus, narrowed to opts.Slugs when set.
// Unknown or unpublished requested slugs fail the run up front.
func (s *service) loadDocuments(ctx context.Context, opts ExportOptions) ([]*standards.Standard, error) {
	records, err := s.deps.Standards.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporter: list standards: %w", err)
	}

	published := make([]*standards.Standard, 0, len(records))
	for _, record := range records {
		if record.IsPublished() {
			published = append(published, record)
		}
	}

	if len(opts.Slugs) > 0 {
		bySlug := make(map[string]*standards.Standard, len(published))
		for _, record := range published {
			bySlug[strings.ToLower(strings.TrimSpace(record.Slug))] = record
		}

		var (
			selected []*standards.Standard
			missing  []error
			seen     = map[string]struct{}{}
		)
		for _, slug := range opts.Slugs {
			key := strings.ToLower(strings.TrimSpace(slug))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			record, ok := bySlug[key]
			if !ok {
				missing = append(missing, &standards.NotFoundError{Resource: "standard", Key: slug})
				continue
			}
			selected = append(selected, record)
		}
		if len(missing) > 0 {
			return nil, errors.Join(missing...)
		}
		published = selected
	}

	sort.Slice(published, func(i, j int) bool {
		return published[i].Slug < published[j].Slug
	})
	return published, nil
}

// renderPage builds one page: markdown render, theme template, checksum. The
// manifest short-circuits pages whose source and destination are unchanged.
func (s *service) renderPage(ctx context.Context, site SiteMetadata, theme ThemeContext, job *pageJob, manifest *exportManifest, baseDir string, force bool) renderOutcome {
	start := time.Now()
	slug := job.doc.Slug

	select {
	case <-ctx.Done():
		err := ctx.Err()
		return renderOutcome{diagnostic: PageDiagnostic{Slug: slug, Err: err}, err: err}
	default:
	}

	output := joinOutputPath(baseDir, slugOutputPath(slug))
	if !force && manifest.shouldSkipPage(slug, job.doc.Checksum, output) {
		return renderOutcome{
			diagnostic: PageDiagnostic{Slug: slug, Duration: time.Since(start), Skipped: true},
			skipped:    true,
		}
	}

	page, err := s.deps.Renderer.Render(ctx, slug, render.RenderOptions{IncludeTOC: true})
	if err != nil {
		wrapped := fmt.Errorf("exporter: render %s: %w", slug, err)
		return renderOutcome{diagnostic: PageDiagnostic{Slug: slug, Duration: time.Since(start), Err: wrapped}, err: wrapped}
	}

	templateCtx := PageContext{
		Site:     site,
		Theme:    theme,
		Standard: page.Standard,
		Body:     template.HTML(page.HTML),
		TOC:      page.TOC,
		URL:      job.url,
	}
	html, err := s.deps.Templates.RenderTemplate(s.theme.templateName("standard"), templateCtx)
	if err != nil {
		wrapped := fmt.Errorf("exporter: render template for %s: %w", slug, err)
		return renderOutcome{diagnostic: PageDiagnostic{Slug: slug, Duration: time.Since(start), Err: wrapped}, err: wrapped}
	}

	return renderOutcome{
		page: RenderedPage{
			Slug:           slug,
			Title:          job.doc.Title,
			URL:            job.url,
			Output:         output,
			HTML:           html,
			SourceChecksum: job.doc.Checksum,
			Checksum:       computeHashFromString(html),
			LastModified:   docLastModified(job.doc),
			Duration:       time.Since(start),
		},
		diagnostic: PageDiagnostic{Slug: slug, Duration: time.Since(start)},
	}
}

// renderConcurrently fans jobs out to a bounded worker pool. Cancellation
// drains cleanly: queued jobs stop dispatching and in-flight workers record
// the context error for their current job.
func renderConcurrently(ctx context.Context, jobs []*pageJob, workers int, run func(*pageJob) renderOutcome, collect func(renderOutcome)) error {
	queue := make(chan *pageJob)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				select {
				case <-ctx.Done():
					err := ctx.Err()
					collect(renderOutcome{diagnostic: PageDiagnostic{Slug: job.doc.Slug, Err: err}, err: err})
					return
				default:
				}
				collect(run(job))
			}
		}()
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return ctx.Err()
		case queue <- job:
		}
	}
	close(queue)
	wg.Wait()
	return nil
}

func (s *service) persistPages(ctx context.Context, writer artifactWriter, baseDir string, pages []RenderedPage) error {
	if len(pages) == 0 {
		return nil
	}

	dirCache := map[string]struct{}{}
	if err := ensureDir(ctx, writer, dirCache, baseDir); err != nil {
		return fmt.Errorf("exporter: ensure output dir: %w", err)
	}

	var errs []error
	for _, page := range pages {
		if err := ensureDir(ctx, writer, dirCache, path.Dir(page.Output)); err != nil {
			errs = append(errs, fmt.Errorf("exporter: ensure dir for %s: %w", page.Slug, err))
			continue
		}
		err := writer.WriteFile(ctx, writeFileRequest{
			Path:        page.Output,
			Content:     strings.NewReader(page.HTML),
			Size:        int64(len(page.HTML)),
			Category:    categoryPage,
			ContentType: "text/html; charset=utf-8",
			Checksum:    page.Checksum,
			Metadata: map[string]string{
				"slug": page.Slug,
				"url":  page.URL,
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("exporter: write page %s: %w", page.Slug, err))
		}
	}
	return errors.Join(errs...)
}

type assetCopySummary struct {
	Built   int
	Skipped int
	Keys    map[string]struct{}
}

// copyAssets mirrors the theme's asset files under assets/ in the output.
// Unchanged assets are skipped via the manifest checksum.
func (s *service) copyAssets(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, force bool) (assetCopySummary, error) {
	summary := assetCopySummary{Keys: map[string]struct{}{}}
	themeName := s.theme.name()

	dirCache := map[string]struct{}{}
	var errs []error
	for _, asset := range s.theme.assets() {
		summary.Keys[manifest.assetKey(themeName, asset)] = struct{}{}

		data, err := s.theme.openAsset(asset)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		output := joinOutputPath(baseDir, assetOutputPath(asset))
		checksum := computeHash(data)
		if !force && manifest.shouldSkipAsset(themeName, asset, checksum, output) {
			summary.Skipped++
			continue
		}

		if err := ensureDir(ctx, writer, dirCache, path.Dir(output)); err != nil {
			errs = append(errs, fmt.Errorf("exporter: ensure dir for asset %s: %w", asset, err))
			continue
		}
		err = writer.WriteFile(ctx, writeFileRequest{
			Path:        output,
			Content:     strings.NewReader(string(data)),
			Size:        int64(len(data)),
			Category:    categoryAsset,
			ContentType: detectAssetContentType(asset),
			Checksum:    checksum,
			Metadata:    map[string]string{"theme": themeName, "source": asset},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("exporter: write asset %s: %w", asset, err))
			continue
		}

		manifest.setAsset(manifestAsset{
			Theme:    themeName,
			Source:   asset,
			Output:   output,
			Checksum: checksum,
			Size:     int64(len(data)),
			CopiedAt: s.now().UTC(),
		})
		summary.Built++
	}
	return summary, errors.Join(errs...)
}

func (s *service) writeIndex(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, site SiteMetadata, theme ThemeContext, groups []CategoryGroup, force bool) error {
	total := 0
	for _, group := range groups {
		total += len(group.Entries)
	}
	content, err := s.deps.Templates.RenderTemplate(s.theme.templateName("index"), IndexContext{
		Site:   site,
		Theme:  theme,
		Groups: groups,
		Total:  total,
	})
	if err != nil {
		return fmt.Errorf("exporter: render index: %w", err)
	}
	return s.writeSiteOutput(ctx, writer, manifest, baseDir, "index", "index.html", content, "text/html; charset=utf-8", categoryIndex, force)
}

func (s *service) writeSitemap(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, site SiteMetadata, jobs []*pageJob, force bool) error {
	entries := make([]sitemapEntry, 0, len(jobs)+1)
	var newest time.Time
	for _, job := range jobs {
		modified := docLastModified(job.doc)
		if modified.After(newest) {
			newest = modified
		}
		entries = append(entries, sitemapEntry{Location: job.url, LastMod: modified})
	}
	if site.BaseURL != "" {
		entries = append(entries, sitemapEntry{Location: site.BaseURL + "/", LastMod: newest})
	}
	content := buildSitemap(entries)
	return s.writeSiteOutput(ctx, writer, manifest, baseDir, "sitemap", "sitemap.xml", content, "application/xml", categorySitemap, force)
}

func (s *service) writeLLMSIndex(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, site SiteMetadata, groups []CategoryGroup, force bool) error {
	content := buildLLMSIndex(site.Title, site.Description, groups)
	return s.writeSiteOutput(ctx, writer, manifest, baseDir, "llms", "llms.txt", content, "text/plain; charset=utf-8", categoryLLMS, force)
}

func (s *service) writeRobots(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, site SiteMetadata, force bool) error {
	content := buildRobots(site.BaseURL)
	return s.writeSiteOutput(ctx, writer, manifest, baseDir, "robots", "robots.txt", content, "text/plain; charset=utf-8", categoryRobots, force)
}

// writeSiteOutput persists one corpus-wide artifact, skipping the write when
// the manifest already records identical content at the same destination.
func (s *service) writeSiteOutput(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir, name, destRel, content, contentType string, category writeCategory, force bool) error {
	output := joinOutputPath(baseDir, destRel)
	checksum := computeHashFromString(content)
	if !force && manifest.shouldSkipOutput(name, checksum, output) {
		return nil
	}

	if err := writer.EnsureDir(ctx, path.Dir(output)); err != nil {
		return fmt.Errorf("exporter: ensure dir for %s: %w", name, err)
	}
	err := writer.WriteFile(ctx, writeFileRequest{
		Path:        output,
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
		Category:    category,
		ContentType: contentType,
		Checksum:    checksum,
	})
	if err != nil {
		return fmt.Errorf("exporter: write %s: %w", name, err)
	}

	manifest.setOutput(manifestOutput{
		Name:      name,
		Output:    output,
		Checksum:  checksum,
		WrittenAt: s.now().UTC(),
	})
	return nil
}

// pruneOrphans removes outputs whose source documents or theme assets are
// gone. Page removals target the page directory so slug folders do not leak.
func (s *service) pruneOrphans(ctx context.Context, writer artifactWriter, manifest *exportManifest, baseDir string, pageKeys, assetKeys map[string]struct{}) (int, error) {
	pruned := 0
	var errs []error

	for _, entry := range manifest.prunePages(pageKeys) {
		if entry.Output == "" {
			continue
		}
		target := entry.Output
		if path.Base(target) == "index.html" {
			if dir := path.Dir(target); dir != "." && dir != baseDir {
				target = dir
			}
		}
		if err := writer.Remove(ctx, target); err != nil {
			errs = append(errs, fmt.Errorf("exporter: prune page %s: %w", entry.Slug, err))
			continue
		}
		pruned++
		if s.deps.Logger != nil {
			s.deps.Logger.Debug("pruned page output", "slug", entry.Slug, "path", target)
		}
	}

	for _, entry := range manifest.pruneAssets(assetKeys) {
		if entry.Output == "" {
			continue
		}
		if err := writer.Remove(ctx, entry.Output); err != nil {
			errs = append(errs, fmt.Errorf("exporter: prune asset %s: %w", entry.Source, err))
			continue
		}
		pruned++
	}

	return pruned, errors.Join(errs...)
}

// loadManifest reads the previous run's manifest from storage. A missing
// manifest starts a fresh full build.
func (s *service) loadManifest(ctx context.Context) (*exportManifest, error) {
	if s.deps.Storage == nil {
		return newExportManifest(), nil
	}

	rows, err := s.deps.Storage.Query(ctx, storageOpRead, s.manifestTargetPath())
	if err != nil {
		return nil, fmt.Errorf("exporter: read manifest: %w", err)
	}
	if rows == nil {
		return newExportManifest(), nil
	}
	defer rows.Close()

	if !rows.Next() {
		return newExportManifest(), nil
	}
	var data []byte
	if err := rows.Scan(&data); err != nil {
		return nil, fmt.Errorf("exporter: scan manifest: %w", err)
	}
	return parseManifest(data)
}

func (s *service) manifestTargetPath() string {
	return joinOutputPath(strings.Trim(s.cfg.OutputDir, "/"), manifestFileName)
}

func (s *service) persistManifest(ctx context.Context, writer artifactWriter, manifest *exportManifest) error {
	data, err := manifest.marshal()
	if err != nil {
		return fmt.Errorf("exporter: marshal manifest: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	target := s.manifestTargetPath()
	if err := writer.EnsureDir(ctx, path.Dir(target)); err != nil {
		return fmt.Errorf("exporter: ensure manifest dir: %w", err)
	}

	metadata := map[string]string{"version": strconv.Itoa(manifest.Version)}
	if !manifest.GeneratedAt.IsZero() {
		metadata["generated_at"] = manifest.GeneratedAt.Format(time.RFC3339)
	}
	err = writer.WriteFile(ctx, writeFileRequest{
		Path:        target,
		Content:     strings.NewReader(string(data)),
		Size:        int64(len(data)),
		Category:    categoryManifest,
		ContentType: "application/json",
		Checksum:    computeHash(data),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("exporter: persist manifest: %w", err)
	}
	return nil
}

func (s *service) emitExportEvent(ctx context.Context, result *ExportResult) {
	if s.deps.Emitter == nil || !s.deps.Emitter.Enabled() {
		return
	}
	_ = s.deps.Emitter.Emit(ctx, activity.Event{
		Verb:       "export",
		ObjectType: "site",
		ObjectID:   s.cfg.OutputDir,
		Metadata: map[string]any{
			"pages_built":   result.PagesBuilt,
			"pages_skipped": result.PagesSkipped,
			"assets_built":  result.AssetsBuilt,
			"pruned":        result.Pruned,
		},
	})
}

func (s *service) effectiveWorkerCount(jobCount int) int {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if jobCount > 0 && workers > jobCount {
		workers = jobCount
	}
	return workers
}

func (s *service) siteTitle() string {
	if title := strings.TrimSpace(s.cfg.SiteTitle); title != "" {
		return title
	}
	return "Playbook"
}

// buildCategoryGroups folds the run's documents into category sections for
// the index page and llms.txt, categories and entries title-sorted.
func buildCategoryGroups(jobs []*pageJob) []CategoryGroup {
	byCategory := map[string][]IndexEntry{}
	for _, job := range jobs {
		category := strings.TrimSpace(job.doc.Category)
		if category == "" {
			category = "general"
		}
		summary := ""
		if job.doc.Summary != nil {
			summary = strings.TrimSpace(*job.doc.Summary)
		}
		byCategory[category] = append(byCategory[category], IndexEntry{
			Slug:        job.doc.Slug,
			Title:       job.doc.Title,
			Summary:     summary,
			URL:         job.url,
			Tags:        job.doc.Tags,
			LastUpdated: docLastModified(job.doc),
		})
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]CategoryGroup, 0, len(names))
	for _, name := range names {
		entries := byCategory[name]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Title == entries[j].Title {
				return entries[i].Slug < entries[j].Slug
			}
			return entries[i].Title < entries[j].Title
		})
		groups = append(groups, CategoryGroup{Category: name, Entries: entries})
	}
	return groups
}

func ensureDir(ctx context.Context, writer artifactWriter, cache map[string]struct{}, dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, ok := cache[dir]; ok {
		return nil
	}
	if err := writer.EnsureDir(ctx, dir); err != nil {
		return err
	}
	cache[dir] = struct{}{}
	return nil
}

func joinOutputPath(base, rel string) string {
	if base == "" {
		return rel
	}
	return path.Join(base, rel)
}

func slugOutputPath(slug string) string {
	return path.Join("standards", strings.TrimSpace(slug), "index.html")
}

func docLastModified(doc *standards.Standard) time.Time {
	if doc.LastUpdated != nil && !doc.LastUpdated.IsZero() {
		return *doc.LastUpdated
	}
	return doc.UpdatedAt
}

func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func computeHashFromString(content string) string {
	return computeHash([]byte(content))
}

func sortRendered(pages []RenderedPage) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Slug < pages[j].Slug })
}

func sortDiagnostics(diags []PageDiagnostic) {
	sort.Slice(diags, func(i, j int) bool { return diags[i].Slug < diags[j].Slug })
}
