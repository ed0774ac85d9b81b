package playbook

import (
	"context"
	"net/http"

	"github.com/goliatone/go-command/dispatcher"

	"github.com/mwtmurphy/go-playbook/internal/audit"
	auditcmd "github.com/mwtmurphy/go-playbook/internal/commands/audit"
	corpuscmd "github.com/mwtmurphy/go-playbook/internal/commands/corpus"
	exportcmd "github.com/mwtmurphy/go-playbook/internal/commands/export"
	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/internal/exporter"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/internal/mcpserver"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/internal/util"
	"github.com/mwtmurphy/go-playbook/internal/watcher"
	"github.com/mwtmurphy/go-playbook/standards"
)

// CorpusService exports the standards service contract for consumers of the playbook package.
type CorpusService = standards.Service

// GraphService exports the cross-reference graph service contract.
type GraphService = refgraph.Service

// AuditService exports the audit service contract.
type AuditService = audit.Service

// RenderService exports the render service contract.
type RenderService = render.Service

// ExportService exports the static export service contract.
type ExportService = exporter.Service

// AuditReport exports the audit report DTO.
type AuditReport = audit.Report

// AuditRunOptions exports the audit run options.
type AuditRunOptions = audit.RunOptions

// AuditIssue exports the audit issue DTO.
type AuditIssue = audit.Issue

// AuditSeverity exports the audit severity scale.
type AuditSeverity = audit.Severity

// Backlink exports the inbound reference DTO.
type Backlink = refgraph.Backlink

// BrokenReference exports the dangling reference DTO.
type BrokenReference = refgraph.BrokenReference

// ReferenceGraph exports the whole-corpus graph DTO.
type ReferenceGraph = refgraph.Graph

// RenderOptions exports the render options.
type RenderOptions = render.RenderOptions

// RenderResult exports the rendered page DTO.
type RenderResult = render.Result

// ExportOptions exports the export run options.
type ExportOptions = exporter.ExportOptions

// ExportResult exports the export run report.
type ExportResult = exporter.ExportResult

// Module represents the top level playbook runtime facade.
type Module struct {
	container *di.Container
}

// New constructs a playbook module using the provided configuration and
// optional DI overrides. When no corpus path is configured the embedded
// standards serve as the document source; explicit source options override it.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Corpus.Path == "" {
		opts = append([]di.Option{di.WithCorpusFS(EmbeddedCorpus())}, opts...)
	}
	return &Module{container: di.NewContainer(cfg, opts...)}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Standards returns the configured corpus service.
func (m *Module) Standards() CorpusService {
	return m.container.CorpusService()
}

// References returns the configured cross-reference graph service.
func (m *Module) References() GraphService {
	return m.container.GraphService()
}

// Audits returns the configured audit service.
func (m *Module) Audits() AuditService {
	return m.container.AuditService()
}

// Renderer returns the configured render service.
func (m *Module) Renderer() RenderService {
	return m.container.RenderService()
}

// Exporter returns the configured export service.
func (m *Module) Exporter() ExportService {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.ExportService()
}

// MCP returns the model context protocol server.
func (m *Module) MCP() *mcpserver.Server {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.MCPServer()
}

// Sync reconciles stored standards against the configured corpus source using
// the module defaults: new files import with the configured status, existing
// documents update in place, and orphans are removed.
func (m *Module) Sync(ctx context.Context) (*standards.SyncResult, error) {
	return m.container.CorpusService().Sync(ctx, standards.SyncOptions{
		ImportOptions:  standards.ImportOptions{Status: m.container.Config.Corpus.DefaultStatus},
		UpdateExisting: true,
		DeleteOrphaned: true,
	})
}

// Audit evaluates the rule catalog against the stored corpus.
func (m *Module) Audit(ctx context.Context) (*AuditReport, error) {
	return m.container.AuditService().Run(ctx, audit.RunOptions{})
}

// HTTP returns a handler exposing the JSON API under the configured base
// path, with the MCP endpoint mounted alongside it when enabled.
func (m *Module) HTTP() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := m.container.API().Register(mux); err != nil {
		return nil, err
	}
	if m.container.Config.MCP.Enabled {
		path := util.FirstNonEmpty(m.container.Config.Server.MCPPath, "/mcp")
		mux.Handle(path, m.container.MCPServer().Handler())
	}
	return mux, nil
}

// Watch mirrors filesystem changes under the corpus path into the store until
// the context ends. Each settled batch of changes triggers a sync, an audit
// run when configured, and an MCP resource refresh so connected clients see
// the updated corpus. Context cancellation is the normal shutdown path, not
// an error.
func (m *Module) Watch(ctx context.Context) error {
	cfg := m.container.Config
	if cfg.Corpus.Path == "" {
		return ErrWatchRequiresCorpusPath
	}
	logger := logging.ModuleLogger(m.container.LoggerProvider(), "watch")

	handler := func(ctx context.Context, path string) {
		result, err := m.Sync(ctx)
		if err != nil {
			logger.Error("corpus sync failed", "path", path, "error", err)
			return
		}
		logger.Info("corpus synced",
			"path", path,
			"created", result.Created,
			"updated", result.Updated,
			"deleted", result.Deleted,
		)
		if cfg.Watch.AuditAfterSync {
			if _, err := m.container.AuditService().Run(ctx, audit.RunOptions{}); err != nil {
				logger.Error("audit run failed", "error", err)
			}
		}
		if cfg.MCP.Enabled {
			if err := m.container.MCPServer().RefreshResources(ctx); err != nil {
				logger.Error("resource listing refresh failed", "error", err)
			}
		}
	}

	opts := []watcher.Option{watcher.WithLogger(logger)}
	if cfg.Watch.Debounce > 0 {
		opts = append(opts, watcher.WithDebounce(cfg.Watch.Debounce))
	}
	if len(cfg.Watch.Extensions) > 0 {
		opts = append(opts, watcher.WithExtensions(cfg.Watch.Extensions...))
	}

	w, err := watcher.New([]string{cfg.Corpus.Path}, handler, opts...)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// RegisterCommands subscribes the corpus, audit, and export handlers on the
// global command dispatcher when the commands feature is enabled. The
// returned function removes the subscriptions.
func (m *Module) RegisterCommands() func() {
	if m == nil || m.container == nil || !m.container.Config.Commands.Enabled {
		return func() {}
	}
	c := m.container
	logger := logging.ModuleLogger(c.LoggerProvider(), "commands")
	gates := exportcmd.FeatureGates{
		ExportEnabled: func() bool { return c.Config.Export.Enabled },
	}

	subs := []func(){
		dispatcher.SubscribeCommand(corpuscmd.NewSyncCorpusHandler(c.CorpusService(), logger)).Unsubscribe,
		dispatcher.SubscribeCommand(corpuscmd.NewReindexReferencesHandler(c.CorpusService(), logger)).Unsubscribe,
		dispatcher.SubscribeCommand(auditcmd.NewAuditCorpusHandler(c.AuditService(), logger)).Unsubscribe,
		dispatcher.SubscribeCommand(exportcmd.NewExportSiteHandler(c.ExportService(), logger, gates)).Unsubscribe,
	}
	return func() {
		for _, unsubscribe := range subs {
			unsubscribe()
		}
	}
}
