package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

const (
	serverName    = "go-playbook"
	serverVersion = "0.1.0"
)

// Server exposes the corpus to MCP clients. Tools cover listing, reading,
// searching, and auditing; resources publish the document inventory and the
// markdown sources under the playbook:// scheme.
type Server struct {
	server   *mcp.Server
	corpus   standards.Service
	renderer render.Service
	auditor  audit.Service
	logger   interfaces.Logger

	mu     sync.Mutex
	listed map[string]bool
}

// Option mutates the server configuration.
type Option func(*Server)

// WithCorpusService wires the standards read surface.
func WithCorpusService(service standards.Service) Option {
	return func(s *Server) {
		if s != nil {
			s.corpus = service
		}
	}
}

// WithRenderService wires the HTML renderer behind read_standard format=html.
func WithRenderService(service render.Service) Option {
	return func(s *Server) {
		if s != nil {
			s.renderer = service
		}
	}
}

// WithAuditService wires the audit service behind audit_corpus.
func WithAuditService(service audit.Service) Option {
	return func(s *Server) {
		if s != nil {
			s.auditor = service
		}
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Server) {
		if s != nil && logger != nil {
			s.logger = logger
		}
	}
}

// NewServer constructs the MCP server and registers its tools and resources.
// Handlers guard against missing services at call time, so a partially wired
// server still starts and reports configuration gaps per request.
func NewServer(opts ...Option) *Server {
	srv := &Server{
		logger: logging.NoOp(),
		listed: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(srv)
		}
	}

	srv.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	srv.registerTools()
	srv.registerResources()
	return srv
}

// Serve runs the server on stdio and blocks until the client disconnects or
// the context ends. Context cancellation is the normal shutdown path, not an
// error.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.server == nil {
		return fmt.Errorf("mcpserver: server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.RefreshResources(ctx); err != nil {
		s.logger.Error("resource listing refresh failed", "error", err)
	}
	return s.serve(ctx, &mcp.StdioTransport{})
}

func (s *Server) serve(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.server == nil {
		return fmt.Errorf("mcpserver: server is not configured")
	}
	err := s.server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("mcpserver: serve: %w", err)
	}
	return nil
}

// Handler adapts the server to streamable HTTP so it can mount on a mux next
// to the JSON API. The listing refresh runs per request, which keeps
// resources/list in step with a corpus that syncs while the process runs.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		if err := s.RefreshResources(r.Context()); err != nil {
			s.logger.Error("resource listing refresh failed", "error", err)
		}
		return s.server
	}, nil)
}

// RefreshResources registers a list entry for every corpus document that
// gained one since the last call. Sync and watch wiring call it so agents
// discover new documents without a restart; reads already work through the
// slug template either way.
func (s *Server) RefreshResources(ctx context.Context) error {
	if s == nil || s.server == nil || s.corpus == nil {
		return nil
	}
	records, err := s.corpus.List(ctx, standards.ListFilter{}, standards.IncludeDrafts())
	if err != nil {
		return fmt.Errorf("mcpserver: refresh resources: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if record == nil || record.Slug == "" || s.listed[record.Slug] {
			continue
		}
		resource := &mcp.Resource{
			Name:     record.Slug,
			Title:    record.Title,
			MIMEType: mimeMarkdown,
			URI:      documentURI(record.Slug),
		}
		if record.Summary != nil {
			resource.Description = *record.Summary
		}
		s.server.AddResource(resource, s.handleDocumentResource)
		s.listed[record.Slug] = true
	}
	return nil
}
