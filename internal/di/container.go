package di

import (
	"io/fs"
	"strings"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	urlkit "github.com/goliatone/go-urlkit"
	"github.com/uptrace/bun"

	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/corpus"
	"github.com/mwtmurphy/go-playbook/internal/exporter"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/internal/logging/console"
	"github.com/mwtmurphy/go-playbook/internal/logging/gologger"
	"github.com/mwtmurphy/go-playbook/internal/markdown"
	"github.com/mwtmurphy/go-playbook/internal/mcpserver"
	"github.com/mwtmurphy/go-playbook/internal/profile"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/internal/runtimeconfig"
	"github.com/mwtmurphy/go-playbook/internal/server"
	"github.com/mwtmurphy/go-playbook/pkg/activity"
	"github.com/mwtmurphy/go-playbook/pkg/activity/usersink"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/pkg/storage"
	"github.com/mwtmurphy/go-playbook/standards"
)

// Container wires module dependencies: repositories, the corpus source, and
// the services built on top of them. Memory-backed repositories are the
// default; a bun database swaps in persistent ones.
type Container struct {
	Config runtimeconfig.Config

	bunDB         *bun.DB
	cacheTTL      time.Duration
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	loggerProvider interfaces.LoggerProvider
	clock          func() time.Time
	corpusFS       fs.FS
	artifacts      interfaces.StorageProvider
	activitySink   interfaces.ActivitySink
	emitter        *activity.Emitter
	routeManager   *urlkit.RouteManager

	standardRepo standards.StandardRepository
	auditRepo    audit.Repository

	memoryStandardRepo *corpus.MemoryStandardRepository
	memoryAuditRepo    *audit.MemoryRepository

	scanner interfaces.StructureScanner
	source  standards.DocumentSource
	profile *profile.Profile

	corpusSvc standards.Service
	graphSvc  refgraph.Service
	auditSvc  audit.Service
	renderSvc render.Service
	exportSvc exporter.Service

	api *server.API
	mcp *mcpserver.Server
}

// Option mutates the container before it is finalised.
type Option func(*Container)

func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the default repository cache bindings.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithLoggerProvider overrides the logger provider derived from the logging
// configuration.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithClock pins the time source used by imports and audits.
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		c.clock = now
	}
}

// WithCorpusFS reads corpus documents from the given filesystem instead of
// the configured path.
func WithCorpusFS(fsys fs.FS) Option {
	return func(c *Container) {
		c.corpusFS = fsys
	}
}

// WithArtifactStorage overrides where the exporter writes site artifacts.
func WithArtifactStorage(provider interfaces.StorageProvider) Option {
	return func(c *Container) {
		c.artifacts = provider
	}
}

// WithActivitySink forwards corpus lifecycle events into the host's activity
// log.
func WithActivitySink(sink interfaces.ActivitySink) Option {
	return func(c *Container) {
		c.activitySink = sink
	}
}

// WithActivityEmitter overrides the emitter built from the activity
// configuration.
func WithActivityEmitter(emitter *activity.Emitter) Option {
	return func(c *Container) {
		c.emitter = emitter
	}
}

// WithStandardRepository overrides the default standard repository binding.
func WithStandardRepository(repo standards.StandardRepository) Option {
	return func(c *Container) {
		c.standardRepo = repo
	}
}

// WithAuditRepository overrides the default audit report repository binding.
func WithAuditRepository(repo audit.Repository) Option {
	return func(c *Container) {
		c.auditRepo = repo
	}
}

// WithDocumentSource overrides the markdown document source.
func WithDocumentSource(source standards.DocumentSource) Option {
	return func(c *Container) {
		c.source = source
	}
}

// WithProfile overrides the front matter profile applied during import and
// audit.
func WithProfile(p *profile.Profile) Option {
	return func(c *Container) {
		c.profile = p
	}
}

// WithRouteManager overrides the route manager used for link resolution.
func WithRouteManager(manager *urlkit.RouteManager) Option {
	return func(c *Container) {
		c.routeManager = manager
	}
}

// WithCorpusService overrides the default corpus service binding.
func WithCorpusService(svc standards.Service) Option {
	return func(c *Container) {
		c.corpusSvc = svc
	}
}

// WithGraphService overrides the default reference graph binding.
func WithGraphService(svc refgraph.Service) Option {
	return func(c *Container) {
		c.graphSvc = svc
	}
}

// WithAuditService overrides the default audit service binding.
func WithAuditService(svc audit.Service) Option {
	return func(c *Container) {
		c.auditSvc = svc
	}
}

// WithRenderService overrides the default render service binding.
func WithRenderService(svc render.Service) Option {
	return func(c *Container) {
		c.renderSvc = svc
	}
}

// WithExportService overrides the default export service binding.
func WithExportService(svc exporter.Service) Option {
	return func(c *Container) {
		c.exportSvc = svc
	}
}

// NewContainer creates a container with the provided configuration.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) *Container {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	cacheTTL := cfg.Cache.DefaultTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	memoryStandardRepo := corpus.NewMemoryStandardRepository()
	memoryAuditRepo := audit.NewMemoryRepository()

	c := &Container{
		Config:             cfg,
		cacheTTL:           cacheTTL,
		clock:              time.Now,
		standardRepo:       memoryStandardRepo,
		auditRepo:          memoryAuditRepo,
		memoryStandardRepo: memoryStandardRepo,
		memoryAuditRepo:    memoryAuditRepo,
		scanner:            markdown.NewScanner(),
		profile:            profile.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.configureLogging()
	c.configureCacheDefaults()
	c.configureRepositories()
	c.configureSource()
	c.configureActivity()
	c.configureRoutes()
	c.configureServices()

	return c
}

func (c *Container) configureLogging() {
	if c.loggerProvider != nil {
		return
	}

	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err == nil {
			c.loggerProvider = provider
		}
	case "console":
		c.loggerProvider = console.NewProvider(console.Options{
			MinLevel: consoleLevel(logCfg.Level),
		})
	}
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.cacheTTL > 0 {
			cfg.TTL = c.cacheTTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		}
	}

	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureRepositories() {
	if c.bunDB == nil {
		return
	}

	if c.standardRepo == standards.StandardRepository(c.memoryStandardRepo) {
		c.standardRepo = corpus.NewBunStandardRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
		c.memoryStandardRepo = nil
	}
	if c.auditRepo == audit.Repository(c.memoryAuditRepo) {
		c.auditRepo = audit.NewBunRepository(c.bunDB)
		c.memoryAuditRepo = nil
	}
}

func (c *Container) configureSource() {
	if c.source != nil {
		return
	}

	sourceCfg := markdown.SourceConfig{
		Patterns:     c.Config.Corpus.Patterns,
		Recursive:    c.Config.Corpus.Recursive,
		MaxFileBytes: c.Config.Corpus.MaxFileBytes,
	}

	if c.corpusFS != nil {
		c.source = markdown.NewFSSource(c.corpusFS, sourceCfg)
		return
	}

	if path := strings.TrimSpace(c.Config.Corpus.Path); path != "" {
		sourceCfg.BasePath = path
		source, err := markdown.NewSource(sourceCfg)
		if err == nil {
			c.source = source
		}
	}
}

func (c *Container) configureActivity() {
	if c.emitter != nil {
		return
	}

	hooks := activity.Hooks{}
	if c.activitySink != nil {
		hooks = append(hooks, usersink.Hook{Sink: c.activitySink})
	}
	c.emitter = activity.NewEmitter(hooks, activity.Config{
		Enabled: c.Config.Activity.Enabled,
		Channel: c.Config.Activity.Channel,
	})
}

func (c *Container) configureRoutes() {
	if c.routeManager != nil {
		return
	}

	routeCfg := c.Config.Render.RouteConfig
	if routeCfg == nil {
		routeCfg = render.DefaultRouteConfig(c.Config.Export.BaseURL)
	}
	c.routeManager = urlkit.NewRouteManager(routeCfg)
}

func (c *Container) configureServices() {
	if c.corpusSvc == nil {
		corpusOpts := []corpus.ServiceOption{
			corpus.WithLogger(logging.CorpusLogger(c.loggerProvider)),
		}
		if c.clock != nil {
			corpusOpts = append(corpusOpts, corpus.WithClock(c.clock))
		}
		if c.source != nil {
			corpusOpts = append(corpusOpts, corpus.WithSource(c.source))
		}
		if c.profile != nil {
			corpusOpts = append(corpusOpts, corpus.WithProfileValidator(c.profile))
		}
		if c.activitySink != nil {
			corpusOpts = append(corpusOpts, corpus.WithActivitySink(c.activitySink))
		}
		svc, err := corpus.NewService(c.standardRepo, c.scanner, corpusOpts...)
		if err == nil {
			c.corpusSvc = svc
		}
	}

	if c.graphSvc == nil {
		graphOpts := []refgraph.Option{}
		if slugs := c.Config.Corpus.IndexSlugs; len(slugs) > 0 {
			graphOpts = append(graphOpts, refgraph.WithIndexSlugs(slugs...))
		}
		svc, err := refgraph.NewService(c.standardRepo, graphOpts...)
		if err == nil {
			c.graphSvc = svc
		}
	}

	if c.auditSvc == nil && c.graphSvc != nil {
		auditOpts := []audit.ServiceOption{
			audit.WithLogger(logging.AuditLogger(c.loggerProvider)),
		}
		if c.profile != nil {
			auditOpts = append(auditOpts, audit.WithProfile(c.profile))
		}
		if c.source != nil {
			auditOpts = append(auditOpts, audit.WithSource(c.source))
		}
		if c.clock != nil {
			auditOpts = append(auditOpts, audit.WithClock(c.clock))
		}
		if c.emitter != nil {
			auditOpts = append(auditOpts, audit.WithEmitter(c.emitter))
		}
		svc, err := audit.NewService(c.auditRepo, c.standardRepo, c.graphSvc, c.scanner, audit.Config{
			Workers:        c.Config.Audit.Workers,
			MaxLines:       c.Config.Audit.MaxLines,
			StaleAfterDays: c.Config.Audit.StaleAfterDays,
			Disabled:       c.Config.Audit.Disabled,
		}, auditOpts...)
		if err == nil {
			c.auditSvc = svc
		}
	}

	if c.renderSvc == nil {
		svc, err := render.NewService(c.standardRepo, c.routeManager, render.Config{
			AllowUnsafeHTML: c.Config.Markdown.AllowUnsafeHTML,
			HardWraps:       c.Config.Markdown.HardWraps,
			Group:           c.Config.Render.Group,
			Route:           c.Config.Render.Route,
			SlugParam:       c.Config.Render.SlugParam,
		})
		if err == nil {
			c.renderSvc = svc
		}
	}

	if c.exportSvc == nil {
		c.exportSvc = c.buildExportService()
	}
}

func (c *Container) buildExportService() exporter.Service {
	if !c.Config.Export.Enabled {
		return exporter.NewDisabledService()
	}

	artifacts := c.artifacts
	if artifacts == nil {
		artifacts = storage.NewFilesystem(".")
	}

	svc, err := exporter.NewService(exporter.Config{
		OutputDir:       c.Config.Export.OutputDir,
		BaseURL:         c.Config.Export.BaseURL,
		SiteTitle:       c.Config.Export.SiteTitle,
		SiteDescription: c.Config.Export.SiteDescription,
		Workers:         c.Config.Export.Workers,
		Theme: exporter.ThemeConfig{
			Name:    c.Config.Export.Theme.Name,
			Variant: c.Config.Export.Theme.Variant,
			Dir:     c.Config.Export.Theme.Dir,
		},
	}, exporter.Dependencies{
		Standards: c.standardRepo,
		Renderer:  c.renderSvc,
		Storage:   artifacts,
		Emitter:   c.emitter,
		Logger:    logging.ExportLogger(c.loggerProvider),
	})
	if err != nil {
		logging.ExportLogger(c.loggerProvider).Error("export service unavailable", "error", err)
		return exporter.NewDisabledService()
	}
	return svc
}

// LoggerProvider exposes the configured logger provider; nil when logging is
// not configured.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// StandardRepository exposes the configured standard repository.
func (c *Container) StandardRepository() standards.StandardRepository {
	return c.standardRepo
}

// AuditRepository exposes the configured audit report repository.
func (c *Container) AuditRepository() audit.Repository {
	return c.auditRepo
}

// DocumentSource exposes the configured corpus source; nil when neither a
// path nor a filesystem was provided.
func (c *Container) DocumentSource() standards.DocumentSource {
	return c.source
}

// Scanner exposes the structure scanner shared by import and audit.
func (c *Container) Scanner() interfaces.StructureScanner {
	return c.scanner
}

// Profile exposes the front matter profile.
func (c *Container) Profile() *profile.Profile {
	return c.profile
}

// Emitter exposes the activity emitter.
func (c *Container) Emitter() *activity.Emitter {
	return c.emitter
}

// RouteManager exposes the urlkit route manager used for link resolution.
func (c *Container) RouteManager() *urlkit.RouteManager {
	return c.routeManager
}

// CorpusService returns the configured corpus service.
func (c *Container) CorpusService() standards.Service {
	return c.corpusSvc
}

// GraphService returns the configured reference graph service.
func (c *Container) GraphService() refgraph.Service {
	return c.graphSvc
}

// AuditService returns the configured audit service.
func (c *Container) AuditService() audit.Service {
	return c.auditSvc
}

// RenderService returns the configured render service.
func (c *Container) RenderService() render.Service {
	return c.renderSvc
}

// ExportService returns the configured export service. A disabled export
// configuration yields a service whose Export reports it is unavailable.
func (c *Container) ExportService() exporter.Service {
	return c.exportSvc
}

// API returns the HTTP surface over the configured services (lazy).
func (c *Container) API() *server.API {
	if c.api == nil {
		c.api = server.NewAPI(
			server.WithBasePath(c.Config.Server.BasePath),
			server.WithCorpusService(c.corpusSvc),
			server.WithRenderService(c.renderSvc),
			server.WithGraphService(c.graphSvc),
			server.WithAuditService(c.auditSvc),
			server.WithMutations(c.Config.Server.Mutations),
			server.WithLogger(logging.ModuleLogger(c.loggerProvider, "server")),
		)
	}
	return c.api
}

// MCPServer returns the model context protocol surface (lazy).
func (c *Container) MCPServer() *mcpserver.Server {
	if c.mcp == nil {
		c.mcp = mcpserver.NewServer(
			mcpserver.WithCorpusService(c.corpusSvc),
			mcpserver.WithRenderService(c.renderSvc),
			mcpserver.WithAuditService(c.auditSvc),
			mcpserver.WithLogger(logging.ModuleLogger(c.loggerProvider, "mcp")),
		)
	}
	return c.mcp
}

func consoleLevel(level string) *console.Level {
	var lvl console.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		lvl = console.LevelTrace
	case "debug":
		lvl = console.LevelDebug
	case "", "info":
		lvl = console.LevelInfo
	case "warn", "warning":
		lvl = console.LevelWarn
	case "error":
		lvl = console.LevelError
	case "fatal":
		lvl = console.LevelFatal
	default:
		return nil
	}
	return &lvl
}
