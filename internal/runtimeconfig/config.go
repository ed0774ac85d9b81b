package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	urlkit "github.com/goliatone/go-urlkit"
)

// ErrStorageProviderUnknown indicates a provider outside the supported set.
var ErrStorageProviderUnknown = errors.New("playbook config: storage provider is invalid")

// ErrStorageDriverUnknown indicates a bun driver outside the supported set.
var ErrStorageDriverUnknown = errors.New("playbook config: storage driver is invalid")

// ErrStorageDSNRequired ensures database-backed storage names its data source.
var ErrStorageDSNRequired = errors.New("playbook config: storage dsn is required when the bun provider is selected")
var ErrCorpusPatternInvalid = errors.New("playbook config: corpus pattern is invalid")
var ErrCorpusMaxFileBytesInvalid = errors.New("playbook config: corpus max file bytes must be zero or positive")
var ErrMarkdownExtensionUnknown = errors.New("playbook config: markdown extension is not supported")
var ErrAuditWorkersInvalid = errors.New("playbook config: audit workers must be zero or positive")
var ErrAuditMaxLinesInvalid = errors.New("playbook config: audit max lines must be zero or positive")
var ErrAuditStaleWindowInvalid = errors.New("playbook config: audit stale window must be zero or positive")
var ErrAuditThresholdInvalid = errors.New("playbook config: audit failure threshold is invalid")
var ErrExportOutputDirRequired = errors.New("playbook config: export output directory is required when export is enabled")
var ErrExportWorkersInvalid = errors.New("playbook config: export workers must be zero or positive")
var ErrWatchDebounceInvalid = errors.New("playbook config: watch debounce must be zero or positive")
var ErrWatchRequiresCorpusPath = errors.New("playbook config: watch requires an on-disk corpus path")
var ErrCacheTTLInvalid = errors.New("playbook config: cache ttl must be zero or positive")
var ErrLoggingProviderRequired = errors.New("playbook config: logging provider is required when logging options are set")
var ErrLoggingProviderUnknown = errors.New("playbook config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("playbook config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("playbook config: logging format is invalid")

// Config aggregates storage bindings, corpus layout, and per-surface toggles
// for the playbook module. Fields intentionally use simple types so host
// applications can populate them from any configuration source.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Corpus   CorpusConfig   `toml:"corpus"`
	Markdown MarkdownConfig `toml:"markdown"`
	Audit    AuditConfig    `toml:"audit"`
	Render   RenderConfig   `toml:"render"`
	Export   ExportConfig   `toml:"export"`
	Server   ServerConfig   `toml:"server"`
	MCP      MCPConfig      `toml:"mcp"`
	Watch    WatchConfig    `toml:"watch"`
	Cache    CacheConfig    `toml:"cache"`
	Commands CommandsConfig `toml:"commands"`
	Activity ActivityConfig `toml:"activity"`
	Logging  LoggingConfig  `toml:"logging"`
}

// StorageConfig selects where standard records and audit reports persist.
// The memory provider needs no further settings; the bun provider requires
// a driver and DSN.
type StorageConfig struct {
	Provider      string `toml:"provider"`
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// CorpusConfig locates the markdown sources and shapes how they import.
// An empty Path keeps the embedded corpus.
type CorpusConfig struct {
	Path          string   `toml:"path"`
	Patterns      []string `toml:"patterns"`
	Recursive     bool     `toml:"recursive"`
	MaxFileBytes  int64    `toml:"max_file_bytes"`
	DefaultStatus string   `toml:"default_status"`
	IndexSlugs    []string `toml:"index_slugs"`
}

// MarkdownConfig captures parser behaviour for rendering corpus documents.
type MarkdownConfig struct {
	Extensions      []string `toml:"extensions"`
	HardWraps       bool     `toml:"hard_wraps"`
	AllowUnsafeHTML bool     `toml:"allow_unsafe_html"`
}

// AuditConfig tunes the rule engine. Zero values defer to the engine's own
// defaults; Disabled lists rule codes to skip on every run.
type AuditConfig struct {
	Workers        int      `toml:"workers"`
	MaxLines       int      `toml:"max_lines"`
	StaleAfterDays int      `toml:"stale_after_days"`
	Disabled       []string `toml:"disabled"`
	// FailThreshold is the lowest severity that makes a CLI audit run exit
	// non-zero. Empty means error.
	FailThreshold string `toml:"fail_threshold"`
}

// RenderConfig overrides the route table used to resolve cross-document
// links. RouteConfig replaces the whole table; the remaining fields adjust
// the default one.
type RenderConfig struct {
	Group       string         `toml:"group"`
	Route       string         `toml:"route"`
	SlugParam   string         `toml:"slug_param"`
	RouteConfig *urlkit.Config `toml:"-"`
}

// ExportConfig captures behaviour for the static site exporter.
type ExportConfig struct {
	Enabled         bool              `toml:"enabled"`
	OutputDir       string            `toml:"output_dir"`
	BaseURL         string            `toml:"base_url"`
	SiteTitle       string            `toml:"site_title"`
	SiteDescription string            `toml:"site_description"`
	Workers         int               `toml:"workers"`
	Theme           ExportThemeConfig `toml:"theme"`
}

// ExportThemeConfig names the export theme. Dir points at an external theme
// directory; empty keeps the embedded one.
type ExportThemeConfig struct {
	Name    string `toml:"name"`
	Variant string `toml:"variant"`
	Dir     string `toml:"dir"`
}

// ServerConfig shapes the HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// BasePath prefixes the whole surface; routes always carry an /api
	// segment after it, so "/playbook" serves /playbook/api/standards.
	BasePath string `toml:"base_path"`
	// Mutations exposes the sync and audit trigger endpoints.
	Mutations bool   `toml:"mutations"`
	MCPPath   string `toml:"mcp_path"`
}

// MCPConfig toggles the model context protocol surface.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// WatchConfig controls corpus file watching.
type WatchConfig struct {
	Enabled        bool          `toml:"enabled"`
	Debounce       time.Duration `toml:"debounce"`
	Extensions     []string      `toml:"extensions"`
	AuditAfterSync bool          `toml:"audit_after_sync"`
}

// CacheConfig captures cache behaviour toggles.
type CacheConfig struct {
	Enabled    bool          `toml:"enabled"`
	DefaultTTL time.Duration `toml:"default_ttl"`
}

// CommandsConfig captures optional command-layer behaviour.
type CommandsConfig struct {
	Enabled bool `toml:"enabled"`
}

// ActivityConfig controls the activity event stream.
type ActivityConfig struct {
	Enabled bool   `toml:"enabled"`
	Channel string `toml:"channel"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `toml:"provider"`
	Level     string   `toml:"level"`
	Format    string   `toml:"format"`
	AddSource bool     `toml:"add_source"`
	Focus     []string `toml:"focus"`
}

// DefaultConfig returns opinionated defaults: in-memory storage over the
// embedded corpus, the full rule set, and console logging.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Provider:      "memory",
			Driver:        "sqlite",
			RunMigrations: true,
		},
		Corpus: CorpusConfig{
			Patterns:      []string{"*.md"},
			Recursive:     false,
			DefaultStatus: "published",
			IndexSlugs:    []string{"readme"},
		},
		Markdown: MarkdownConfig{},
		Audit: AuditConfig{
			Workers:        0,
			MaxLines:       500,
			StaleAfterDays: 365,
			FailThreshold:  "error",
		},
		Render: RenderConfig{},
		Export: ExportConfig{
			OutputDir: "dist",
			Workers:   0,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			MCPPath: "/mcp",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			AuditAfterSync: true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			DefaultTTL: time.Minute,
		},
		Commands: CommandsConfig{},
		Activity: ActivityConfig{},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	provider := normalizeToken(cfg.Storage.Provider)
	if provider != "" && !isSupportedStorageProvider(provider) {
		return fmt.Errorf("%w: %s", ErrStorageProviderUnknown, provider)
	}
	if provider == "bun" {
		if driver := normalizeToken(cfg.Storage.Driver); driver != "" && !isSupportedStorageDriver(driver) {
			return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, driver)
		}
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return ErrStorageDSNRequired
		}
	}
	for _, pattern := range cfg.Corpus.Patterns {
		if strings.TrimSpace(pattern) == "" {
			return ErrCorpusPatternInvalid
		}
	}
	if cfg.Corpus.MaxFileBytes < 0 {
		return ErrCorpusMaxFileBytesInvalid
	}
	for _, ext := range cfg.Markdown.Extensions {
		if !isSupportedMarkdownExtension(ext) {
			return fmt.Errorf("%w: %s", ErrMarkdownExtensionUnknown, ext)
		}
	}
	if cfg.Audit.Workers < 0 {
		return ErrAuditWorkersInvalid
	}
	if cfg.Audit.MaxLines < 0 {
		return ErrAuditMaxLinesInvalid
	}
	if cfg.Audit.StaleAfterDays < 0 {
		return ErrAuditStaleWindowInvalid
	}
	if threshold := normalizeToken(cfg.Audit.FailThreshold); threshold != "" && !isSupportedSeverity(threshold) {
		return fmt.Errorf("%w: %s", ErrAuditThresholdInvalid, threshold)
	}
	if cfg.Export.Enabled {
		if strings.TrimSpace(cfg.Export.OutputDir) == "" {
			return ErrExportOutputDirRequired
		}
	}
	if cfg.Export.Workers < 0 {
		return ErrExportWorkersInvalid
	}
	if cfg.Watch.Debounce < 0 {
		return ErrWatchDebounceInvalid
	}
	if cfg.Watch.Enabled && strings.TrimSpace(cfg.Corpus.Path) == "" {
		return ErrWatchRequiresCorpusPath
	}
	if cfg.Cache.DefaultTTL < 0 {
		return ErrCacheTTLInvalid
	}
	loggingProvider := normalizeToken(cfg.Logging.Provider)
	if loggingProvider == "" {
		if strings.TrimSpace(cfg.Logging.Level) != "" || strings.TrimSpace(cfg.Logging.Format) != "" {
			return ErrLoggingProviderRequired
		}
		return nil
	}
	if !isSupportedLoggingProvider(loggingProvider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, loggingProvider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLoggingLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if loggingProvider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedLoggingFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}
	return nil
}

func normalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedStorageProvider(provider string) bool {
	switch provider {
	case "memory", "bun":
		return true
	default:
		return false
	}
}

func isSupportedStorageDriver(driver string) bool {
	switch driver {
	case "sqlite", "postgres":
		return true
	default:
		return false
	}
}

func isSupportedMarkdownExtension(name string) bool {
	switch normalizeToken(name) {
	case "gfm", "table", "tables", "strikethrough", "linkify", "autolink", "tasklist", "definition", "footnote":
		return true
	default:
		return false
	}
}

func isSupportedSeverity(severity string) bool {
	switch severity {
	case "info", "warning", "error":
		return true
	default:
		return false
	}
}

func isSupportedLoggingProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLoggingLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedLoggingFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
