package corpus

import "github.com/mwtmurphy/go-playbook/standards"

type (
	Service            = standards.Service
	StandardRepository = standards.StandardRepository
	DocumentSource     = standards.DocumentSource
	ListOption         = standards.ListOption
	GetOption          = standards.GetOption
	ListFilter         = standards.ListFilter
	ImportOptions      = standards.ImportOptions
	SyncOptions        = standards.SyncOptions
	ImportResult       = standards.ImportResult
	SyncResult         = standards.SyncResult
	ReindexResult      = standards.ReindexResult
	NotFoundError      = standards.NotFoundError
	DuplicateSlugError = standards.DuplicateSlugError
)

var (
	ErrSlugRequired       = standards.ErrSlugRequired
	ErrSlugInvalid        = standards.ErrSlugInvalid
	ErrSlugExists         = standards.ErrSlugExists
	ErrTitleRequired      = standards.ErrTitleRequired
	ErrSourceRequired     = standards.ErrSourceRequired
	ErrBodyRequired       = standards.ErrBodyRequired
	ErrStatusInvalid      = standards.ErrStatusInvalid
	ErrStandardIDRequired = standards.ErrStandardIDRequired
	ErrChecksumRequired   = standards.ErrChecksumRequired
	ErrCorpusUnavailable  = standards.ErrCorpusUnavailable
	ErrRevisionNotFound   = standards.ErrRevisionNotFound
	ErrRepositoryRequired = standards.ErrRepositoryRequired
	ErrScannerRequired    = standards.ErrScannerRequired

	WithSections   = standards.WithSections
	WithReferences = standards.WithReferences
	WithRevisions  = standards.WithRevisions
	IncludeDrafts  = standards.IncludeDrafts

	IsNotFound = standards.IsNotFound
)
