package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/mwtmurphy/go-playbook/standards"
)

const (
	indexResourceURI  = "playbook://standards"
	documentURIPrefix = "playbook://standards/"

	mimeJSON     = "application/json"
	mimeMarkdown = "text/markdown"
)

func documentURI(slug string) string {
	return documentURIPrefix + slug
}

func slugFromURI(uri string) (string, error) {
	slug := strings.TrimPrefix(uri, documentURIPrefix)
	if slug == uri || slug == "" || strings.Contains(slug, "/") {
		return "", fmt.Errorf("uri %q does not address a document; use %s{slug}", uri, documentURIPrefix)
	}
	return slug, nil
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		Name:        "standards_index",
		Title:       "Standards index",
		Description: "Inventory of every corpus document with status, category, and corpus counts.",
		MIMEType:    mimeJSON,
		URI:         indexResourceURI,
	}, s.handleIndexResource)
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "standard_document",
		Title:       "Standard document",
		Description: "Markdown source of one corpus document, addressed by slug.",
		MIMEType:    mimeMarkdown,
		URITemplate: documentURIPrefix + "{slug}",
	}, s.handleDocumentResource)
}

type indexEntry struct {
	standardEntry
	URI string `json:"uri"`
}

type standardsIndex struct {
	Total     int              `json:"total"`
	Stats     *standards.Stats `json:"stats,omitempty"`
	Standards []indexEntry     `json:"standards"`
}

func (s *Server) handleIndexResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if s.corpus == nil {
		return nil, fmt.Errorf("corpus service is not configured")
	}

	// The index is an inventory, so drafts and archived documents appear
	// with their status instead of being filtered out.
	records, err := s.corpus.List(ctx, standards.ListFilter{}, standards.IncludeDrafts())
	if err != nil {
		return nil, fmt.Errorf("list standards: %w", err)
	}

	payload := standardsIndex{Standards: make([]indexEntry, 0, len(records))}
	for _, record := range records {
		if record == nil {
			continue
		}
		payload.Standards = append(payload.Standards, indexEntry{
			standardEntry: entryFromStandard(record),
			URI:           documentURI(record.Slug),
		})
	}
	payload.Total = len(payload.Standards)

	stats, err := s.corpus.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus stats: %w", err)
	}
	payload.Stats = stats

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal standards index: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      indexResourceURI,
				MIMEType: mimeJSON,
				Text:     string(data),
			},
		},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if s.corpus == nil {
		return nil, fmt.Errorf("corpus service is not configured")
	}
	if req == nil || req.Params == nil || req.Params.URI == "" {
		return nil, fmt.Errorf("resource uri is required")
	}

	slug, err := slugFromURI(req.Params.URI)
	if err != nil {
		return nil, err
	}
	record, err := s.corpus.Get(ctx, slug, standards.IncludeDrafts())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", slug, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: mimeMarkdown,
				Text:     record.Body,
			},
		},
	}, nil
}
