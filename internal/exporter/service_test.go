package exporter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	urlkit "github.com/goliatone/go-urlkit"

	"github.com/mwtmurphy/go-playbook/internal/corpus"
	"github.com/mwtmurphy/go-playbook/internal/markdown"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/pkg/activity"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

func TestExportBuildsSite(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	result, err := svc.Export(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if result.PagesBuilt != 3 {
		t.Fatalf("expected 3 pages built, got %d", result.PagesBuilt)
	}
	if result.PagesSkipped != 0 || result.Pruned != 0 {
		t.Fatalf("unexpected skip/prune counts: %+v", result)
	}
	if result.AssetsBuilt != 1 {
		t.Fatalf("expected the builtin stylesheet to be copied, got %d assets", result.AssetsBuilt)
	}
	if len(result.Rendered) != 3 || len(result.Diagnostics) != 3 {
		t.Fatalf("expected 3 rendered pages with diagnostics, got %d/%d", len(result.Rendered), len(result.Diagnostics))
	}
	for i := 1; i < len(result.Rendered); i++ {
		if result.Rendered[i-1].Slug > result.Rendered[i].Slug {
			t.Fatalf("rendered pages not slug-sorted: %+v", result.Rendered)
		}
	}

	page := storage.mustFile(t, "public/standards/sql-style/index.html")
	if !strings.Contains(page, "<title>SQL Style Standards · Playbook Standards</title>") {
		t.Fatalf("page title missing:\n%s", page)
	}
	if !strings.Contains(page, `href="https://playbook.example.com/standards/python-style#naming"`) {
		t.Fatalf("internal link not rewritten:\n%s", page)
	}
	if !strings.Contains(page, `<link rel="canonical" href="https://playbook.example.com/standards/sql-style">`) {
		t.Fatalf("canonical link missing:\n%s", page)
	}
	if !strings.Contains(page, `href="https://playbook.example.com/assets/site.css"`) {
		t.Fatalf("stylesheet link missing:\n%s", page)
	}

	toc := storage.mustFile(t, "public/standards/python-style/index.html")
	if !strings.Contains(toc, `href="#naming"`) || !strings.Contains(toc, "toc-level-3") {
		t.Fatalf("table of contents missing:\n%s", toc)
	}

	index := storage.mustFile(t, "public/index.html")
	for _, want := range []string{
		"<h2>style</h2>",
		"<h2>testing</h2>",
		`href="https://playbook.example.com/standards/sql-style"`,
		"Keep SQL readable and consistent.",
		"3 standards",
	} {
		if !strings.Contains(index, want) {
			t.Fatalf("index missing %q:\n%s", want, index)
		}
	}
	if strings.Contains(index, "Draft Notes") {
		t.Fatalf("draft leaked into index:\n%s", index)
	}
	if _, ok := storage.file("public/standards/draft-notes/index.html"); ok {
		t.Fatal("draft should not be exported")
	}

	sitemap := storage.mustFile(t, "public/sitemap.xml")
	for _, want := range []string{
		"<loc>https://playbook.example.com/</loc>",
		"<loc>https://playbook.example.com/standards/sql-style</loc>",
		"<lastmod>2026-02-10T00:00:00Z</lastmod>",
		"<lastmod>2026-02-14T00:00:00Z</lastmod>",
	} {
		if !strings.Contains(sitemap, want) {
			t.Fatalf("sitemap missing %q:\n%s", want, sitemap)
		}
	}

	llms := storage.mustFile(t, "public/llms.txt")
	if !strings.HasPrefix(llms, "# Playbook Standards\n") {
		t.Fatalf("llms.txt header missing:\n%s", llms)
	}
	for _, want := range []string{
		"> Engineering standards for the team.",
		"## style",
		"- [SQL Style Standards](https://playbook.example.com/standards/sql-style): Keep SQL readable and consistent.",
		"- [Testing Practices](https://playbook.example.com/standards/testing-practices)",
	} {
		if !strings.Contains(llms, want) {
			t.Fatalf("llms.txt missing %q:\n%s", want, llms)
		}
	}

	robots := storage.mustFile(t, "public/robots.txt")
	if !strings.Contains(robots, "Sitemap: https://playbook.example.com/sitemap.xml") {
		t.Fatalf("robots.txt missing sitemap line:\n%s", robots)
	}

	css := storage.mustFile(t, "public/assets/site.css")
	if !strings.Contains(css, "--pb-") {
		t.Fatalf("stylesheet content unexpected:\n%s", css)
	}

	manifest := storage.mustManifest(t)
	if manifest.Version != manifestFileVersion {
		t.Fatalf("unexpected manifest version %d", manifest.Version)
	}
	if len(manifest.Pages) != 3 {
		t.Fatalf("expected 3 manifest pages, got %d", len(manifest.Pages))
	}
	if !manifest.GeneratedAt.Equal(exportTestNow) {
		t.Fatalf("expected manifest stamped %s, got %s", exportTestNow, manifest.GeneratedAt)
	}
	for _, name := range []string{"index", "sitemap", "llms", "robots"} {
		if _, ok := manifest.lookupOutput(name); !ok {
			t.Fatalf("manifest missing output %q", name)
		}
	}
}

func TestExportSecondRunSkipsUnchanged(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	if _, err := svc.Export(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("first export: %v", err)
	}
	before := storage.mutationCount()

	result, err := svc.Export(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}

	if result.PagesBuilt != 0 || result.PagesSkipped != 3 {
		t.Fatalf("expected all pages skipped, got built=%d skipped=%d", result.PagesBuilt, result.PagesSkipped)
	}
	if result.AssetsBuilt != 0 || result.AssetsSkipped != 1 {
		t.Fatalf("expected asset skipped, got built=%d skipped=%d", result.AssetsBuilt, result.AssetsSkipped)
	}
	if after := storage.mutationCount(); after != before {
		t.Fatalf("unchanged corpus should write nothing, got %d new mutations", after-before)
	}
}

func TestExportForceRebuilds(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	if _, err := svc.Export(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("first export: %v", err)
	}
	before := storage.mutationCount()

	result, err := svc.Export(context.Background(), ExportOptions{Force: true})
	if err != nil {
		t.Fatalf("force export: %v", err)
	}

	if result.PagesBuilt != 3 || result.PagesSkipped != 0 {
		t.Fatalf("force should rebuild every page, got built=%d skipped=%d", result.PagesBuilt, result.PagesSkipped)
	}
	if result.AssetsBuilt != 1 {
		t.Fatalf("force should recopy assets, got %d", result.AssetsBuilt)
	}
	if storage.mutationCount() == before {
		t.Fatal("force export should issue writes")
	}
}

func TestExportRebuildsChangedDocument(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	if _, err := svc.Export(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("first export: %v", err)
	}

	updated := exportSQLStyleSource + "\nNever quote identifiers without cause.\n"
	importExportDocument(t, repo, "standards/sql_style.md", updated)

	result, err := svc.Export(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}

	if result.PagesBuilt != 1 || result.PagesSkipped != 2 {
		t.Fatalf("expected one rebuild, got built=%d skipped=%d", result.PagesBuilt, result.PagesSkipped)
	}
	page := storage.mustFile(t, "public/standards/sql-style/index.html")
	if !strings.Contains(page, "Never quote identifiers without cause.") {
		t.Fatalf("rebuilt page missing new content:\n%s", page)
	}
}

func TestExportPrunesRemovedDocuments(t *testing.T) {
	ctx := context.Background()
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	if _, err := svc.Export(ctx, ExportOptions{}); err != nil {
		t.Fatalf("first export: %v", err)
	}

	record, err := repo.GetBySlug(ctx, "testing-practices")
	if err != nil {
		t.Fatalf("get standard: %v", err)
	}
	if err := repo.Delete(ctx, record.ID); err != nil {
		t.Fatalf("delete standard: %v", err)
	}

	result, err := svc.Export(ctx, ExportOptions{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}

	if result.Pruned != 1 {
		t.Fatalf("expected one pruned output, got %d", result.Pruned)
	}
	if result.PagesSkipped != 2 {
		t.Fatalf("expected remaining pages skipped, got %d", result.PagesSkipped)
	}
	if _, ok := storage.file("public/standards/testing-practices/index.html"); ok {
		t.Fatal("pruned page output still present")
	}

	removes := storage.opCalls(storageOpRemove)
	if len(removes) != 1 {
		t.Fatalf("expected one remove call, got %d", len(removes))
	}
	if target, _ := removes[0].Args[0].(string); target != "public/standards/testing-practices" {
		t.Fatalf("remove should target the page directory, got %q", target)
	}

	manifest := storage.mustManifest(t)
	if len(manifest.Pages) != 2 {
		t.Fatalf("manifest should drop the pruned page, got %d entries", len(manifest.Pages))
	}
}

func TestExportDryRunWritesNothing(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	result, err := svc.Export(context.Background(), ExportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	if !result.DryRun {
		t.Fatal("result should be marked dry run")
	}
	if result.PagesBuilt != 3 {
		t.Fatalf("dry run should still count pages, got %d", result.PagesBuilt)
	}
	if len(result.Rendered) != 0 {
		t.Fatalf("dry run should not retain rendered output, got %d", len(result.Rendered))
	}
	if n := storage.mutationCount(); n != 0 {
		t.Fatalf("dry run should not write, got %d mutations", n)
	}
	if files := storage.fileCount(); files != 0 {
		t.Fatalf("dry run should leave storage empty, got %d files", files)
	}
}

func TestExportSlugsNarrowRun(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}
	svc := newExportService(t, repo, storage)

	result, err := svc.Export(context.Background(), ExportOptions{Slugs: []string{"sql-style"}})
	if err != nil {
		t.Fatalf("narrowed export: %v", err)
	}

	if result.PagesBuilt != 1 {
		t.Fatalf("expected one page built, got %d", result.PagesBuilt)
	}
	if _, ok := storage.file("public/standards/sql-style/index.html"); !ok {
		t.Fatal("requested page missing")
	}
	if _, ok := storage.file("public/standards/python-style/index.html"); ok {
		t.Fatal("narrowed run should not build other pages")
	}
	if _, ok := storage.file("public/index.html"); ok {
		t.Fatal("narrowed run should not rewrite the site index")
	}
	if result.Pruned != 0 {
		t.Fatalf("narrowed run should not prune, got %d", result.Pruned)
	}
}

func TestExportUnknownSlugFails(t *testing.T) {
	repo := seedExportCorpus(t)
	svc := newExportService(t, repo, &recordingStorage{})

	result, err := svc.Export(context.Background(), ExportOptions{Slugs: []string{"no-such-doc"}})
	if result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
	if !standards.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportTemplateFailureKeepsGoodPages(t *testing.T) {
	repo := seedExportCorpus(t)
	storage := &recordingStorage{}

	theme, err := newThemeSelector(ThemeConfig{})
	if err != nil {
		t.Fatalf("theme selector: %v", err)
	}
	svc, err := NewService(exportTestConfig(), Dependencies{
		Standards: repo,
		Renderer:  newExportRenderer(t, repo),
		Templates: &flakyTemplateRenderer{inner: newThemeRenderer(theme.sources), failSlug: "python-style"},
		Storage:   storage,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.(*service).now = func() time.Time { return exportTestNow }

	result, err := svc.Export(context.Background(), ExportOptions{})
	if err == nil {
		t.Fatal("expected export error")
	}
	if result == nil {
		t.Fatal("partial result expected alongside error")
	}

	if result.PagesBuilt != 2 {
		t.Fatalf("expected two pages built, got %d", result.PagesBuilt)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one accumulated error, got %d: %v", len(result.Errors), result.Errors)
	}
	if _, ok := storage.file("public/standards/sql-style/index.html"); !ok {
		t.Fatal("healthy page should still be written")
	}
	if _, ok := storage.file("public/.playbook-manifest.json"); ok {
		t.Fatal("failed run must not persist the manifest")
	}
}

func TestExportEmitsActivity(t *testing.T) {
	repo := seedExportCorpus(t)
	hook := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{hook}, activity.Config{Enabled: true, Channel: "playbook"})

	svc, err := NewService(exportTestConfig(), Dependencies{
		Standards: repo,
		Renderer:  newExportRenderer(t, repo),
		Storage:   &recordingStorage{},
		Emitter:   emitter,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.(*service).now = func() time.Time { return exportTestNow }

	if _, err := svc.Export(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(hook.Events) != 1 {
		t.Fatalf("expected one activity event, got %d", len(hook.Events))
	}
	event := hook.Events[0]
	if event.Verb != "export" || event.ObjectType != "site" {
		t.Fatalf("unexpected event shape: %+v", event)
	}
	if built, _ := event.Metadata["pages_built"].(int); built != 3 {
		t.Fatalf("expected pages_built metadata, got %+v", event.Metadata)
	}
}

func TestNewServiceValidation(t *testing.T) {
	repo := seedExportCorpus(t)

	if _, err := NewService(exportTestConfig(), Dependencies{Renderer: newExportRenderer(t, repo)}); err != standards.ErrRepositoryRequired {
		t.Fatalf("expected repository required, got %v", err)
	}
	if _, err := NewService(exportTestConfig(), Dependencies{Standards: repo}); err != ErrRendererRequired {
		t.Fatalf("expected renderer required, got %v", err)
	}
}

func TestDisabledService(t *testing.T) {
	svc := NewDisabledService()
	if _, err := svc.Export(context.Background(), ExportOptions{}); err != ErrServiceDisabled {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

// Helper constructors ---------------------------------------------------------

var exportTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const exportSQLStyleSource = `---
title: SQL Style Standards
slug: sql-style
category: style
status: published
summary: Keep SQL readable and consistent.
last_updated: 2026-02-10
tags:
  - sql
  - style
---

# SQL Style Standards

Follow [Python naming](./python_style.md#naming) where both apply.

## Formatting

Uppercase keywords, lowercase identifiers.
`

const exportPythonStyleSource = `---
title: Python Style Standards
slug: python-style
category: style
status: published
last_updated: 2026-02-12
---

# Python Style Standards

## Naming

### Constants

## Imports
`

const exportTestingSource = `---
title: Testing Practices
slug: testing-practices
category: testing
status: published
last_updated: 2026-02-14
---

# Testing Practices

## Unit Tests
`

const exportDraftSource = `---
title: Draft Notes
slug: draft-notes
category: general
status: draft
---

# Draft Notes
`

func seedExportCorpus(tb testing.TB) *corpus.MemoryStandardRepository {
	tb.Helper()

	repo := corpus.NewMemoryStandardRepository()
	for path, source := range map[string]string{
		"standards/sql_style.md":         exportSQLStyleSource,
		"standards/python_style.md":      exportPythonStyleSource,
		"standards/testing_practices.md": exportTestingSource,
		"standards/draft_notes.md":       exportDraftSource,
	} {
		importExportDocument(tb, repo, path, source)
	}
	return repo
}

func importExportDocument(tb testing.TB, repo *corpus.MemoryStandardRepository, path, source string) {
	tb.Helper()

	svc, err := corpus.NewService(repo, markdown.NewScanner())
	if err != nil {
		tb.Fatalf("new corpus service: %v", err)
	}
	doc, err := markdown.BuildDocument(path, []byte(source), time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		tb.Fatalf("build document %s: %v", path, err)
	}
	sum := sha256.Sum256([]byte(source))
	doc.Checksum = sum[:]
	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		tb.Fatalf("import %s: %v", path, err)
	}
}

func exportTestConfig() Config {
	return Config{
		OutputDir:       "public",
		BaseURL:         "https://playbook.example.com",
		SiteTitle:       "Playbook Standards",
		SiteDescription: "Engineering standards for the team.",
	}
}

func newExportRenderer(tb testing.TB, repo standards.StandardRepository) render.Service {
	tb.Helper()

	manager := urlkit.NewRouteManager(render.DefaultRouteConfig("https://playbook.example.com"))
	svc, err := render.NewService(repo, manager, render.Config{})
	if err != nil {
		tb.Fatalf("new render service: %v", err)
	}
	return svc
}

func newExportService(tb testing.TB, repo standards.StandardRepository, storage interfaces.StorageProvider) Service {
	tb.Helper()

	svc, err := NewService(exportTestConfig(), Dependencies{
		Standards: repo,
		Renderer:  newExportRenderer(tb, repo),
		Storage:   storage,
	})
	if err != nil {
		tb.Fatalf("new exporter service: %v", err)
	}
	svc.(*service).now = func() time.Time { return exportTestNow }
	return svc
}

type flakyTemplateRenderer struct {
	inner    interfaces.TemplateRenderer
	failSlug string
}

func (f *flakyTemplateRenderer) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	if ctx, ok := data.(PageContext); ok && ctx.Standard != nil && ctx.Standard.Slug == f.failSlug {
		return "", fmt.Errorf("template exploded for %s", f.failSlug)
	}
	return f.inner.RenderTemplate(name, data, out...)
}

func (f *flakyTemplateRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	return f.RenderTemplate(name, data, out...)
}

func (f *flakyTemplateRenderer) RenderString(content string, data any, out ...io.Writer) (string, error) {
	return f.inner.RenderString(content, data, out...)
}

// recordingStorage keeps written artifacts in memory and records every
// operation so tests can assert write behaviour.
type recordingStorage struct {
	mu    sync.Mutex
	calls []storageCall
	files map[string][]byte
}

type storageCall struct {
	Op   string
	Args []any
}

func (s *recordingStorage) Exec(_ context.Context, op string, args ...any) (interfaces.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case storageOpWrite:
		if len(args) >= 2 {
			if target, ok := args[0].(string); ok {
				if reader, ok := args[1].(io.Reader); ok && reader != nil {
					if data, err := io.ReadAll(reader); err == nil {
						if s.files == nil {
							s.files = map[string][]byte{}
						}
						s.files[target] = append([]byte(nil), data...)
					}
				}
			}
		}
	case storageOpRemove:
		if len(args) >= 1 {
			if target, ok := args[0].(string); ok {
				prefix := strings.TrimRight(target, "/") + "/"
				for path := range s.files {
					if path == target || strings.HasPrefix(path, prefix) {
						delete(s.files, path)
					}
				}
			}
		}
	}

	s.calls = append(s.calls, storageCall{Op: op, Args: append([]any(nil), args...)})
	return noopResult{}, nil
}

func (s *recordingStorage) Query(_ context.Context, op string, args ...any) (interfaces.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, storageCall{Op: op, Args: append([]any(nil), args...)})
	if op == storageOpRead && len(args) > 0 {
		if target, ok := args[0].(string); ok {
			if data, ok := s.files[target]; ok {
				return &bufferedRows{data: [][]byte{append([]byte(nil), data...)}}, nil
			}
		}
	}
	return &bufferedRows{}, nil
}

func (s *recordingStorage) file(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[path]
	return string(data), ok
}

func (s *recordingStorage) mustFile(tb testing.TB, path string) string {
	tb.Helper()

	content, ok := s.file(path)
	if !ok {
		tb.Fatalf("expected %s to be written, have %v", path, s.fileNames())
	}
	return content
}

func (s *recordingStorage) mustManifest(tb testing.TB) *exportManifest {
	tb.Helper()

	content := s.mustFile(tb, "public/"+manifestFileName)
	manifest, err := parseManifest([]byte(content))
	if err != nil {
		tb.Fatalf("parse manifest: %v", err)
	}
	return manifest
}

func (s *recordingStorage) fileNames() []string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names
}

func (s *recordingStorage) fileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *recordingStorage) opCalls(op string) []storageCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storageCall
	for _, call := range s.calls {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

func (s *recordingStorage) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, call := range s.calls {
		switch call.Op {
		case storageOpWrite, storageOpEnsureDir, storageOpRemove:
			n++
		}
	}
	return n
}

type noopResult struct{}

func (noopResult) RowsAffected() (int64, error) { return 0, nil }
func (noopResult) LastInsertId() (int64, error) { return 0, nil }

type bufferedRows struct {
	data  [][]byte
	index int
}

func (r *bufferedRows) Next() bool {
	if r.index >= len(r.data) {
		return false
	}
	r.index++
	return true
}

func (r *bufferedRows) Scan(dest ...any) error {
	if r.index == 0 || r.index > len(r.data) {
		return fmt.Errorf("buffered rows: scan without next")
	}
	if len(dest) == 0 {
		return fmt.Errorf("buffered rows: missing destination")
	}
	value := r.data[r.index-1]
	switch target := dest[0].(type) {
	case *[]byte:
		*target = append((*target)[:0], value...)
		return nil
	case *string:
		*target = string(value)
		return nil
	default:
		return fmt.Errorf("buffered rows: unsupported scan type %T", dest[0])
	}
}

func (r *bufferedRows) Close() error { return nil }
