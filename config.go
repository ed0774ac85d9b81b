package playbook

import "github.com/mwtmurphy/go-playbook/internal/runtimeconfig"

var (
	ErrStorageProviderUnknown    = runtimeconfig.ErrStorageProviderUnknown
	ErrStorageDriverUnknown      = runtimeconfig.ErrStorageDriverUnknown
	ErrStorageDSNRequired        = runtimeconfig.ErrStorageDSNRequired
	ErrCorpusPatternInvalid      = runtimeconfig.ErrCorpusPatternInvalid
	ErrCorpusMaxFileBytesInvalid = runtimeconfig.ErrCorpusMaxFileBytesInvalid
	ErrMarkdownExtensionUnknown  = runtimeconfig.ErrMarkdownExtensionUnknown
	ErrAuditWorkersInvalid       = runtimeconfig.ErrAuditWorkersInvalid
	ErrAuditMaxLinesInvalid      = runtimeconfig.ErrAuditMaxLinesInvalid
	ErrAuditStaleWindowInvalid   = runtimeconfig.ErrAuditStaleWindowInvalid
	ErrAuditThresholdInvalid     = runtimeconfig.ErrAuditThresholdInvalid
	ErrExportOutputDirRequired   = runtimeconfig.ErrExportOutputDirRequired
	ErrExportWorkersInvalid      = runtimeconfig.ErrExportWorkersInvalid
	ErrWatchDebounceInvalid      = runtimeconfig.ErrWatchDebounceInvalid
	ErrWatchRequiresCorpusPath   = runtimeconfig.ErrWatchRequiresCorpusPath
	ErrCacheTTLInvalid           = runtimeconfig.ErrCacheTTLInvalid
	ErrLoggingProviderRequired   = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown    = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid       = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid      = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config            = runtimeconfig.Config
	StorageConfig     = runtimeconfig.StorageConfig
	CorpusConfig      = runtimeconfig.CorpusConfig
	MarkdownConfig    = runtimeconfig.MarkdownConfig
	AuditConfig       = runtimeconfig.AuditConfig
	RenderConfig      = runtimeconfig.RenderConfig
	ExportConfig      = runtimeconfig.ExportConfig
	ExportThemeConfig = runtimeconfig.ExportThemeConfig
	ServerConfig      = runtimeconfig.ServerConfig
	MCPConfig         = runtimeconfig.MCPConfig
	WatchConfig       = runtimeconfig.WatchConfig
	CacheConfig       = runtimeconfig.CacheConfig
	CommandsConfig    = runtimeconfig.CommandsConfig
	ActivityConfig    = runtimeconfig.ActivityConfig
	LoggingConfig     = runtimeconfig.LoggingConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
