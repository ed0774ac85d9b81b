package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/standards"
)

const (
	toolListStandards   = "list_standards"
	toolReadStandard    = "read_standard"
	toolSearchStandards = "search_standards"
	toolAuditCorpus     = "audit_corpus"
)

const (
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolListStandards,
		Description: "List corpus documents with optional category, tag, and status filters. Bodies stay out of the listing; use read_standard for content.",
	}, s.handleListStandards)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolReadStandard,
		Description: "Read one document by slug, as markdown source or rendered HTML.",
	}, s.handleReadStandard)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSearchStandards,
		Description: "Full-text search over titles, tags, summaries, and bodies. Title and tag matches rank first.",
	}, s.handleSearchStandards)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolAuditCorpus,
		Description: "Return the latest audit report, or run a fresh audit over the corpus.",
	}, s.handleAuditCorpus)
}

type listStandardsInput struct {
	Category string `json:"category,omitempty" jsonschema:"optional category filter"`
	Tag      string `json:"tag,omitempty" jsonschema:"optional tag filter"`
	Status   string `json:"status,omitempty" jsonschema:"optional status filter (draft, published, archived)"`
}

type standardEntry struct {
	Slug        string   `json:"slug" jsonschema:"document slug"`
	Title       string   `json:"title" jsonschema:"document title"`
	Summary     string   `json:"summary,omitempty" jsonschema:"front matter summary"`
	Category    string   `json:"category" jsonschema:"corpus category"`
	Tags        []string `json:"tags,omitempty" jsonschema:"front matter tags"`
	Status      string   `json:"status" jsonschema:"lifecycle status"`
	LastUpdated string   `json:"last_updated,omitempty" jsonschema:"declared last update, RFC 3339"`
}

type listStandardsResult struct {
	Total     int             `json:"total" jsonschema:"number of matching documents"`
	Standards []standardEntry `json:"standards" jsonschema:"matching documents"`
}

func (s *Server) handleListStandards(ctx context.Context, _ *mcp.CallToolRequest, input listStandardsInput) (*mcp.CallToolResult, listStandardsResult, error) {
	if s.corpus == nil {
		return nil, listStandardsResult{}, fmt.Errorf("corpus service is not configured")
	}

	filter := standards.ListFilter{
		Category: strings.TrimSpace(input.Category),
		Tag:      strings.TrimSpace(input.Tag),
		Status:   strings.TrimSpace(input.Status),
	}
	records, err := s.corpus.List(ctx, filter)
	if err != nil {
		return nil, listStandardsResult{}, fmt.Errorf("list standards: %w", err)
	}

	result := listStandardsResult{Standards: make([]standardEntry, 0, len(records))}
	for _, record := range records {
		if record == nil {
			continue
		}
		result.Standards = append(result.Standards, entryFromStandard(record))
	}
	result.Total = len(result.Standards)
	return nil, result, nil
}

type readStandardInput struct {
	Slug   string `json:"slug" jsonschema:"document slug (required)"`
	Format string `json:"format,omitempty" jsonschema:"content format, markdown (default) or html"`
}

type readStandardResult struct {
	Slug     string `json:"slug" jsonschema:"document slug"`
	Title    string `json:"title" jsonschema:"document title"`
	Category string `json:"category" jsonschema:"corpus category"`
	Status   string `json:"status" jsonschema:"lifecycle status"`
	Format   string `json:"format" jsonschema:"content format served"`
	Content  string `json:"content" jsonschema:"document content in the requested format"`
}

func (s *Server) handleReadStandard(ctx context.Context, _ *mcp.CallToolRequest, input readStandardInput) (*mcp.CallToolResult, readStandardResult, error) {
	if s.corpus == nil {
		return nil, readStandardResult{}, fmt.Errorf("corpus service is not configured")
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		return nil, readStandardResult{}, fmt.Errorf("slug is required")
	}

	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = formatMarkdown
	}
	switch format {
	case formatMarkdown:
		// Slug-addressed reads cover drafts, matching the HTTP detail route.
		record, err := s.corpus.Get(ctx, slug, standards.IncludeDrafts())
		if err != nil {
			return nil, readStandardResult{}, fmt.Errorf("read %s: %w", slug, err)
		}
		return nil, readResultFrom(record, formatMarkdown, record.Body), nil
	case formatHTML:
		if s.renderer == nil {
			return nil, readStandardResult{}, fmt.Errorf("render service is not configured")
		}
		page, err := s.renderer.Render(ctx, slug, render.RenderOptions{})
		if err != nil {
			return nil, readStandardResult{}, fmt.Errorf("render %s: %w", slug, err)
		}
		return nil, readResultFrom(page.Standard, formatHTML, page.HTML), nil
	default:
		return nil, readStandardResult{}, fmt.Errorf("format %q is not supported; use %s or %s", input.Format, formatMarkdown, formatHTML)
	}
}

type searchStandardsInput struct {
	Query    string `json:"query" jsonschema:"search text (required)"`
	Category string `json:"category,omitempty" jsonschema:"optional category filter"`
}

type searchStandardsResult struct {
	Total     int             `json:"total" jsonschema:"number of matching documents"`
	Standards []standardEntry `json:"standards" jsonschema:"matching documents, title and tag hits first"`
}

func (s *Server) handleSearchStandards(ctx context.Context, _ *mcp.CallToolRequest, input searchStandardsInput) (*mcp.CallToolResult, searchStandardsResult, error) {
	if s.corpus == nil {
		return nil, searchStandardsResult{}, fmt.Errorf("corpus service is not configured")
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, searchStandardsResult{}, fmt.Errorf("query is required")
	}

	records, err := s.corpus.Search(ctx, query)
	if err != nil {
		return nil, searchStandardsResult{}, fmt.Errorf("search standards: %w", err)
	}

	category := strings.TrimSpace(input.Category)
	result := searchStandardsResult{Standards: make([]standardEntry, 0, len(records))}
	for _, record := range records {
		if record == nil {
			continue
		}
		if category != "" && !strings.EqualFold(record.Category, category) {
			continue
		}
		result.Standards = append(result.Standards, entryFromStandard(record))
	}
	result.Total = len(result.Standards)
	return nil, result, nil
}

type auditCorpusInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"run a fresh audit instead of returning the latest report"`
}

type auditIssueEntry struct {
	Code     string `json:"code" jsonschema:"rule code"`
	Severity string `json:"severity" jsonschema:"info, warning, or error"`
	Slug     string `json:"slug,omitempty" jsonschema:"document slug the finding points at"`
	Path     string `json:"path,omitempty" jsonschema:"source path the finding points at"`
	Line     int    `json:"line,omitempty" jsonschema:"one-based line number when known"`
	Message  string `json:"message" jsonschema:"finding description"`
}

type auditCorpusResult struct {
	RunID      string            `json:"run_id" jsonschema:"audit run identifier"`
	Status     string            `json:"status" jsonschema:"run status"`
	StartedAt  string            `json:"started_at" jsonschema:"run start, RFC 3339"`
	FinishedAt string            `json:"finished_at,omitempty" jsonschema:"run finish, RFC 3339"`
	Documents  int               `json:"documents" jsonschema:"documents evaluated"`
	Errors     int               `json:"errors" jsonschema:"error findings"`
	Warnings   int               `json:"warnings" jsonschema:"warning findings"`
	Infos      int               `json:"infos" jsonschema:"informational findings"`
	Issues     []auditIssueEntry `json:"issues" jsonschema:"individual findings"`
}

func (s *Server) handleAuditCorpus(ctx context.Context, _ *mcp.CallToolRequest, input auditCorpusInput) (*mcp.CallToolResult, auditCorpusResult, error) {
	if s.auditor == nil {
		return nil, auditCorpusResult{}, fmt.Errorf("audit service is not configured")
	}

	var (
		report *audit.Report
		err    error
	)
	if input.Refresh {
		report, err = s.auditor.Run(ctx, audit.RunOptions{})
	} else {
		report, err = s.auditor.Latest(ctx)
		// A first call on an empty history runs the audit instead of failing.
		if errors.Is(err, audit.ErrNoRuns) {
			report, err = s.auditor.Run(ctx, audit.RunOptions{})
		}
	}
	if err != nil {
		return nil, auditCorpusResult{}, fmt.Errorf("audit corpus: %w", err)
	}
	if report == nil || report.Run == nil {
		return nil, auditCorpusResult{}, fmt.Errorf("audit corpus returned no report")
	}
	return nil, auditResultFrom(report), nil
}

func entryFromStandard(record *standards.Standard) standardEntry {
	entry := standardEntry{
		Slug:     record.Slug,
		Title:    record.Title,
		Category: record.Category,
		Tags:     record.Tags,
		Status:   record.Status,
	}
	if record.Summary != nil {
		entry.Summary = *record.Summary
	}
	if record.LastUpdated != nil {
		entry.LastUpdated = record.LastUpdated.UTC().Format(time.RFC3339)
	}
	return entry
}

func readResultFrom(record *standards.Standard, format, content string) readStandardResult {
	result := readStandardResult{Format: format, Content: content}
	if record != nil {
		result.Slug = record.Slug
		result.Title = record.Title
		result.Category = record.Category
		result.Status = record.Status
	}
	return result
}

func auditResultFrom(report *audit.Report) auditCorpusResult {
	run := report.Run
	result := auditCorpusResult{
		RunID:     run.ID.String(),
		Status:    run.Status,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		Documents: run.Documents,
		Errors:    run.Errors,
		Warnings:  run.Warnings,
		Infos:     run.Infos,
		Issues:    make([]auditIssueEntry, 0, len(report.Issues)),
	}
	if run.FinishedAt != nil {
		result.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	for _, issue := range report.Issues {
		if issue == nil {
			continue
		}
		result.Issues = append(result.Issues, auditIssueEntry{
			Code:     issue.Code,
			Severity: string(issue.Severity),
			Slug:     issue.Slug,
			Path:     issue.Path,
			Line:     issue.Line,
			Message:  issue.Message,
		})
	}
	return result
}
