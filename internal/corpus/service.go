package corpus

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwtmurphy/go-playbook/internal/identity"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// ServiceOption configures the service at construction time.
type ServiceOption func(*service)

// WithClock overrides the clock used to stamp records.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

type IDGenerator func() uuid.UUID

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// WithSource attaches the document source consumed by ImportAll and Sync.
func WithSource(source DocumentSource) ServiceOption {
	return func(s *service) {
		s.source = source
	}
}

// WithLogger attaches a logger for import and sync progress.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProfileValidator attaches the metadata profile check applied during
// import. Violations become result warnings, never failures.
func WithProfileValidator(validator interfaces.FrontMatterValidator) ServiceOption {
	return func(s *service) {
		s.profile = validator
	}
}

// WithActivitySink attaches the sink that records corpus lifecycle events.
func WithActivitySink(sink interfaces.ActivitySink) ServiceOption {
	return func(s *service) {
		s.activity = sink
	}
}

// service implements Service.
type service struct {
	standards StandardRepository
	scanner   interfaces.StructureScanner
	source    DocumentSource
	profile   interfaces.FrontMatterValidator
	logger    interfaces.Logger
	activity  interfaces.ActivitySink
	now       func() time.Time
	id        IDGenerator
}

// NewService constructs the corpus service with the required dependencies.
func NewService(repo StandardRepository, scanner interfaces.StructureScanner, opts ...ServiceOption) (Service, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if scanner == nil {
		return nil, ErrScannerRequired
	}

	s := &service{
		standards: repo,
		scanner:   scanner,
		now:       time.Now,
		id:        uuid.New,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Import persists a single parsed document as a standard.
func (s *service) Import(ctx context.Context, doc *interfaces.Document, opts ImportOptions) (*ImportResult, error) {
	acc := newImportAccumulator()
	if err := s.importDocument(ctx, doc, opts, true, acc); err != nil {
		acc.addError(err)
	}
	return acc.result(), firstError(errSlice(acc.errors))
}

// ImportAll loads every document from the configured source and imports it.
// Files normalising to an already-imported slug are reported as errors and
// skipped; the first occurrence in path order wins.
func (s *service) ImportAll(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	docs, err := s.loadSource(ctx)
	if err != nil {
		return nil, err
	}

	acc := newImportAccumulator()
	s.importBatch(ctx, docs, opts, true, acc)
	return acc.result(), firstError(errSlice(acc.errors))
}

// Sync imports the full corpus source and optionally prunes standards whose
// source files disappeared.
func (s *service) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	docs, err := s.loadSource(ctx)
	if err != nil {
		return nil, err
	}

	acc := newSyncAccumulator()

	batch := newImportAccumulator()
	seen := s.importBatch(ctx, docs, opts.ImportOptions, opts.UpdateExisting, batch)
	acc.merge(batch.result())

	if opts.DeleteOrphaned {
		if err := s.deleteOrphaned(ctx, seen, opts, acc); err != nil {
			acc.addError(err)
		}
	}

	if s.logger != nil {
		s.logger.Info("corpus sync finished",
			"created", acc.created,
			"updated", acc.updated,
			"deleted", acc.deleted,
			"skipped", acc.skipped,
			"errors", len(acc.errors),
		)
	}

	return acc.result(), firstError(errSlice(acc.errors))
}

// Reindex rebuilds the section and reference rows for every stored standard
// from its persisted body. Source files are never read, so content, checksums,
// and revision history stay untouched.
func (s *service) Reindex(ctx context.Context) (*ReindexResult, error) {
	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: list standards: %w", err)
	}

	result := &ReindexResult{Errors: []error{}}
	for _, record := range records {
		if record == nil {
			continue
		}

		structure, err := s.scanner.Scan(&interfaces.Document{
			FilePath: record.SourcePath,
			Body:     []byte(record.Body),
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("corpus: scan %s: %w", record.Slug, err))
			continue
		}

		sections, references := structureRows(structure, record.BodyOffset)
		if err := s.standards.ReplaceStructure(ctx, record.ID, sections, references); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("corpus: structure %s: %w", record.Slug, err))
			continue
		}

		result.Documents++
		result.Sections += len(sections)
		result.References += len(references)
	}

	if s.logger != nil {
		s.logger.Info("corpus reindex finished",
			"documents", result.Documents,
			"sections", result.Sections,
			"references", result.References,
			"failed", result.Failed,
		)
	}

	return result, firstError(result.Errors)
}

func (s *service) loadSource(ctx context.Context) ([]*interfaces.Document, error) {
	if s.source == nil {
		return nil, ErrCorpusUnavailable
	}
	docs, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: load source: %w", err)
	}
	return docs, nil
}

// importBatch imports documents in deterministic path order and returns the
// set of slugs seen, which Sync uses for orphan pruning.
func (s *service) importBatch(ctx context.Context, docs []*interfaces.Document, opts ImportOptions, updateExisting bool, acc *importAccumulator) map[string]struct{} {
	sorted := sortDocuments(append([]*interfaces.Document(nil), docs...))

	seen := make(map[string]struct{}, len(sorted))
	paths := make(map[string][]string, len(sorted))

	for _, doc := range sorted {
		if err := validateDocument(doc); err != nil {
			acc.addError(err)
			continue
		}

		slug, err := documentSlug(doc)
		if err != nil {
			acc.addError(fmt.Errorf("corpus: %s: %w", doc.FilePath, err))
			continue
		}

		paths[slug] = append(paths[slug], doc.FilePath)
		if _, dup := seen[slug]; dup {
			acc.addError(&DuplicateSlugError{Slug: slug, Paths: paths[slug]})
			continue
		}
		seen[slug] = struct{}{}

		if err := s.importDocument(ctx, doc, opts, updateExisting, acc); err != nil {
			acc.addError(err)
		}
	}

	return seen
}

func (s *service) importDocument(ctx context.Context, doc *interfaces.Document, opts ImportOptions, updateExisting bool, acc *importAccumulator) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	slug, err := documentSlug(doc)
	if err != nil {
		return fmt.Errorf("corpus: %s: %w", doc.FilePath, err)
	}

	status, err := chooseStatus(doc, opts)
	if err != nil {
		return fmt.Errorf("corpus: %s: %w", doc.FilePath, err)
	}

	if s.profile != nil {
		for _, warning := range s.profile.ValidateDocument(doc) {
			acc.warn(fmt.Sprintf("%s: %s", doc.FilePath, warning))
		}
	}

	structure, err := s.scanner.Scan(doc)
	if err != nil {
		return fmt.Errorf("corpus: scan %s: %w", doc.FilePath, err)
	}

	checksum := hex.EncodeToString(doc.Checksum)

	existing, err := s.standards.GetBySlug(ctx, slug)
	if err != nil {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("corpus: lookup %s: %w", slug, err)
		}
		existing = nil
	}

	if existing != nil && existing.Checksum == checksum && checksum != "" {
		acc.skip(existing.ID)
		return nil
	}

	if existing != nil && !updateExisting {
		acc.skip(existing.ID)
		return nil
	}

	if opts.DryRun {
		if existing != nil {
			acc.skip(existing.ID)
		}
		return nil
	}

	now := s.now().UTC()
	record := s.buildRecord(doc, slug, status, checksum, now)

	if existing == nil {
		record.ID = s.standardID(slug)
		record.CreatedAt = now

		created, createErr := s.standards.Create(ctx, record)
		if createErr != nil {
			return fmt.Errorf("corpus: create %s: %w", slug, createErr)
		}
		if err := s.persistDerived(ctx, created.ID, doc, structure, checksum, 1, now); err != nil {
			return err
		}
		acc.created(created.ID)
		s.recordActivity(ctx, "create", created, now)
		return nil
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt

	updated, updateErr := s.standards.Update(ctx, record)
	if updateErr != nil {
		return fmt.Errorf("corpus: update %s: %w", slug, updateErr)
	}

	version := 1
	if latest, err := s.standards.GetLatestRevision(ctx, existing.ID); err == nil && latest != nil {
		version = latest.Version + 1
	}

	if err := s.persistDerived(ctx, updated.ID, doc, structure, checksum, version, now); err != nil {
		return err
	}
	acc.updated(updated.ID)
	s.recordActivity(ctx, "update", updated, now)
	return nil
}

// standardID derives the stable identifier for a slug so repeated imports of
// the same corpus agree on row identity; the injected generator only covers
// blank slugs.
func (s *service) standardID(slug string) uuid.UUID {
	if strings.TrimSpace(slug) == "" {
		return s.id()
	}
	return identity.StandardUUID(slug)
}

func (s *service) buildRecord(doc *interfaces.Document, slug, status, checksum string, now time.Time) *Standard {
	title := strings.TrimSpace(doc.FrontMatter.Title)
	if title == "" {
		title = fallbackTitle(slug)
	}

	record := &Standard{
		Slug:       slug,
		Title:      title,
		Summary:    optionalString(doc.FrontMatter.Summary),
		Category:   chooseCategory(doc),
		Tags:       append([]string(nil), doc.FrontMatter.Tags...),
		Status:     status,
		SourcePath: doc.FilePath,
		Checksum:   checksum,
		Body:       string(doc.Body),
		Lines:      rawLineCount(doc.Raw),
		BodyOffset: bodyLineOffset(doc),
		Meta:       buildMeta(doc),
		UpdatedAt:  now,
	}

	if !doc.FrontMatter.LastUpdated.IsZero() {
		lastUpdated := doc.FrontMatter.LastUpdated.UTC()
		record.LastUpdated = &lastUpdated
	}

	return record
}

// persistDerived stores the revision snapshot and replaces structure rows
// after the standard row itself is written.
func (s *service) persistDerived(ctx context.Context, standardID uuid.UUID, doc *interfaces.Document, structure *interfaces.DocumentStructure, checksum string, version int, now time.Time) error {
	revision := &Revision{
		ID:         identity.RevisionUUID(standardID, version),
		StandardID: standardID,
		Version:    version,
		Checksum:   checksum,
		Raw:        string(doc.Raw),
		CreatedAt:  now,
	}
	if _, err := s.standards.CreateRevision(ctx, revision); err != nil {
		return fmt.Errorf("corpus: revision %s: %w", standardID, err)
	}

	sections, references := structureRows(structure, bodyLineOffset(doc))
	if err := s.standards.ReplaceStructure(ctx, standardID, sections, references); err != nil {
		return fmt.Errorf("corpus: structure %s: %w", standardID, err)
	}
	return nil
}

func (s *service) deleteOrphaned(ctx context.Context, seen map[string]struct{}, opts SyncOptions, acc *syncAccumulator) error {
	existing, err := s.standards.List(ctx)
	if err != nil {
		return fmt.Errorf("corpus: list standards: %w", err)
	}

	for _, record := range existing {
		if _, ok := seen[record.Slug]; ok {
			continue
		}
		if opts.DryRun {
			acc.deleted++
			continue
		}
		if err := s.standards.Delete(ctx, record.ID); err != nil {
			return fmt.Errorf("corpus: delete %s: %w", record.Slug, err)
		}
		acc.deleted++
		s.recordActivity(ctx, "delete", record, s.now().UTC())
	}

	return nil
}

func (s *service) recordActivity(ctx context.Context, verb string, record *Standard, now time.Time) {
	if s.activity == nil || record == nil {
		return
	}

	err := s.activity.Log(ctx, interfaces.ActivityRecord{
		Verb:       verb,
		ObjectType: "standard",
		ObjectID:   record.ID.String(),
		Channel:    "playbook",
		OccurredAt: now,
		Data: map[string]any{
			"slug":   record.Slug,
			"path":   record.SourcePath,
			"status": record.Status,
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("activity log failed", "verb", verb, "slug", record.Slug, "error", err)
	}
}

// Get fetches a standard by slug. Drafts and archived entries stay hidden
// unless IncludeDrafts is passed.
func (s *service) Get(ctx context.Context, slug string, opts ...GetOption) (*Standard, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}

	options := parseListOptions(opts...)

	record, err := s.standards.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !options.includeDrafts && !record.IsPublished() {
		return nil, &NotFoundError{Resource: "standard", Key: slug}
	}

	if err := s.attachRelations(ctx, record, options); err != nil {
		return nil, err
	}
	return record, nil
}

// GetByID fetches a standard by identifier.
func (s *service) GetByID(ctx context.Context, id uuid.UUID, opts ...GetOption) (*Standard, error) {
	if id == uuid.Nil {
		return nil, ErrStandardIDRequired
	}

	options := parseListOptions(opts...)

	record, err := s.standards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !options.includeDrafts && !record.IsPublished() {
		return nil, &NotFoundError{Resource: "standard", Key: id.String()}
	}

	if err := s.attachRelations(ctx, record, options); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns standards matching the filter in slug order.
func (s *service) List(ctx context.Context, filter ListFilter, opts ...ListOption) ([]*Standard, error) {
	options := parseListOptions(opts...)

	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*Standard, 0, len(records))
	for _, record := range records {
		if !matchesFilter(record, filter, options) {
			continue
		}
		if err := s.attachRelations(ctx, record, options); err != nil {
			return nil, err
		}
		filtered = append(filtered, record)
	}
	return filtered, nil
}

// Search performs a case-insensitive substring match over title, summary,
// tags, and body. An empty query matches nothing.
func (s *service) Search(ctx context.Context, query string, opts ...ListOption) ([]*Standard, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []*Standard{}, nil
	}

	options := parseListOptions(opts...)

	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, err
	}

	var titleHits, bodyHits []*Standard
	for _, record := range records {
		if !options.includeDrafts && !record.IsPublished() {
			continue
		}
		switch {
		case matchesText(record.Title, needle), matchesTags(record.Tags, needle):
			titleHits = append(titleHits, record)
		case record.Summary != nil && matchesText(*record.Summary, needle):
			titleHits = append(titleHits, record)
		case matchesText(record.Body, needle):
			bodyHits = append(bodyHits, record)
		}
	}

	results := append(titleHits, bodyHits...)
	for _, record := range results {
		if err := s.attachRelations(ctx, record, options); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Outline returns the heading tree for a standard, drafts included.
func (s *service) Outline(ctx context.Context, slug string) (*Outline, error) {
	record, err := s.Get(ctx, slug, IncludeDrafts())
	if err != nil {
		return nil, err
	}

	sections, err := s.standards.ListSections(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return &Outline{
		Slug:     record.Slug,
		Title:    record.Title,
		Headings: buildOutlineNodes(sections),
	}, nil
}

// Revisions returns the revision history for a standard in version order.
func (s *service) Revisions(ctx context.Context, slug string) ([]*Revision, error) {
	record, err := s.Get(ctx, slug, IncludeDrafts())
	if err != nil {
		return nil, err
	}
	return s.standards.ListRevisions(ctx, record.ID)
}

// Stats summarises the corpus.
func (s *service) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, err
	}

	references, err := s.standards.ListAllReferences(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Documents:  len(records),
		ByCategory: map[string]int{},
		References: len(references),
	}

	for _, record := range records {
		switch record.Status {
		case "published":
			stats.Published++
		case "archived":
			stats.Archived++
		default:
			stats.Drafts++
		}
		stats.ByCategory[record.Category]++

		if stats.LastImportAt == nil || record.UpdatedAt.After(*stats.LastImportAt) {
			updatedAt := record.UpdatedAt
			stats.LastImportAt = &updatedAt
		}
		if record.LastUpdated != nil {
			if stats.OldestUpdated == nil || record.LastUpdated.Before(*stats.OldestUpdated) {
				lastUpdated := *record.LastUpdated
				stats.OldestUpdated = &lastUpdated
			}
		}
	}

	for _, reference := range references {
		switch reference.Kind {
		case ReferenceInternal:
			stats.InternalRefs++
		case ReferenceExternal:
			stats.ExternalRefs++
		}
	}

	return stats, nil
}

func (s *service) attachRelations(ctx context.Context, record *Standard, options listOptions) error {
	if record == nil {
		return nil
	}

	if options.withSections {
		sections, err := s.standards.ListSections(ctx, record.ID)
		if err != nil {
			return err
		}
		record.Sections = sections
	}
	if options.withReferences {
		references, err := s.standards.ListReferences(ctx, record.ID)
		if err != nil {
			return err
		}
		record.References = references
	}
	if options.withRevisions {
		revisions, err := s.standards.ListRevisions(ctx, record.ID)
		if err != nil {
			return err
		}
		record.Revisions = revisions
	}
	return nil
}

func matchesFilter(record *Standard, filter ListFilter, options listOptions) bool {
	if record == nil {
		return false
	}

	if filter.Status != "" {
		if !strings.EqualFold(record.Status, filter.Status) {
			return false
		}
	} else if !options.includeDrafts && !record.IsPublished() {
		return false
	}

	if filter.Category != "" && !strings.EqualFold(record.Category, filter.Category) {
		return false
	}
	if filter.Tag != "" && !matchesTags(record.Tags, strings.ToLower(filter.Tag)) {
		return false
	}
	return true
}

func matchesText(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func matchesTags(tags []string, needle string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// buildOutlineNodes nests flat section rows by heading level. A level jump
// (H1 straight to H3) still nests under the nearest shallower heading.
func buildOutlineNodes(sections []*Section) []OutlineNode {
	nodes, _ := buildOutlineSubtree(sections, 0, 0)
	return nodes
}

func buildOutlineSubtree(sections []*Section, start, parentLevel int) ([]OutlineNode, int) {
	var out []OutlineNode

	i := start
	for i < len(sections) {
		section := sections[i]
		if section == nil {
			i++
			continue
		}
		if section.Level <= parentLevel {
			break
		}

		node := OutlineNode{
			Level:  section.Level,
			Text:   section.Text,
			Anchor: section.Anchor,
			Line:   section.Line,
		}

		children, next := buildOutlineSubtree(sections, i+1, section.Level)
		node.Children = children
		out = append(out, node)
		i = next
	}

	return out, i
}

func bodyLineOffset(doc *interfaces.Document) int {
	if doc == nil {
		return 0
	}
	raw := rawLineCount(doc.Raw)
	body := rawLineCount(doc.Body)
	if raw <= body {
		return 0
	}
	return raw - body
}

func rawLineCount(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	lines := strings.Count(string(source), "\n") + 1
	if source[len(source)-1] == '\n' {
		lines--
	}
	return lines
}
