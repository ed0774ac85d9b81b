package corpus

import (
	"encoding/hex"
	"errors"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mwtmurphy/go-playbook/internal/domain"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

func validateDocument(doc *interfaces.Document) error {
	if doc == nil {
		return errors.New("corpus: nil document")
	}
	if len(doc.Body) == 0 {
		return ErrBodyRequired
	}
	if strings.TrimSpace(doc.FilePath) == "" {
		return ErrSourceRequired
	}
	return nil
}

// DocumentSlug resolves the slug a document would import under. The audit
// catalog uses it to detect slug collisions across source files before they
// reach the importer.
func DocumentSlug(doc *interfaces.Document) (string, error) {
	if doc == nil {
		return "", errors.New("corpus: nil document")
	}
	return documentSlug(doc)
}

// documentSlug resolves the slug for a document: explicit front matter wins,
// otherwise the file stem is normalised (`python_style.md` -> `python-style`).
func documentSlug(doc *interfaces.Document) (string, error) {
	raw := strings.TrimSpace(doc.FrontMatter.Slug)
	if raw == "" {
		raw = fileStem(doc.FilePath)
	}
	if raw == "" {
		return "", ErrSlugRequired
	}

	normalized, err := standards.NormalizeSlug(raw)
	if err != nil || normalized == "" {
		return "", ErrSlugInvalid
	}
	return normalized, nil
}

func fileStem(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	for _, ext := range []string{".md", ".markdown"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func fallbackTitle(slug string) string {
	if slug == "" {
		return "Untitled"
	}
	return strings.ReplaceAll(strings.Title(strings.ReplaceAll(slug, "-", " ")), "_", " ")
}

// chooseStatus resolves the record status: front matter first, then the
// import default, then draft. A front matter `draft: true` pins the result.
func chooseStatus(doc *interfaces.Document, opts ImportOptions) (string, error) {
	if doc.FrontMatter.Draft {
		return string(domain.StatusDraft), nil
	}

	candidate := strings.TrimSpace(doc.FrontMatter.Status)
	if candidate == "" {
		candidate = strings.TrimSpace(opts.Status)
	}

	status := domain.NormalizeStatus(candidate)
	if !domain.IsValidStatus(status) {
		return "", ErrStatusInvalid
	}
	return string(status), nil
}

func chooseCategory(doc *interfaces.Document) string {
	category := strings.TrimSpace(strings.ToLower(doc.FrontMatter.Category))
	if category == "" {
		return "general"
	}
	return category
}

func buildMeta(doc *interfaces.Document) map[string]any {
	meta := map[string]any{
		"source":      "markdown",
		"path":        doc.FilePath,
		"checksum":    hex.EncodeToString(doc.Checksum),
		"frontmatter": doc.FrontMatter.Raw,
		"custom":      doc.FrontMatter.Custom,
	}
	if doc.FrontMatter.Version != "" {
		meta["version"] = doc.FrontMatter.Version
	}
	return meta
}

// structureRows converts a scanned document structure into persistable
// section and reference rows. Reported lines are shifted by the front matter
// offset so they match the raw file.
func structureRows(structure *interfaces.DocumentStructure, lineOffset int) ([]*Section, []*Reference) {
	if structure == nil {
		return nil, nil
	}

	sections := make([]*Section, 0, len(structure.Headings))
	for i, heading := range structure.Headings {
		sections = append(sections, &Section{
			Level:    heading.Level,
			Text:     heading.Text,
			Anchor:   heading.Anchor,
			Position: i,
			Line:     heading.Line + lineOffset,
		})
	}

	references := make([]*Reference, 0, len(structure.Links))
	for i, link := range structure.Links {
		references = append(references, &Reference{
			RawDest:    link.Dest,
			Kind:       referenceKind(link.Kind),
			TargetSlug: resolveTargetSlug(link),
			Fragment:   optionalString(link.Fragment),
			IsImage:    link.IsImage,
			Position:   i,
			Line:       link.Line + lineOffset,
		})
	}

	return sections, references
}

func referenceKind(kind interfaces.LinkKind) ReferenceKind {
	switch kind {
	case interfaces.LinkAnchor:
		return ReferenceAnchor
	case interfaces.LinkExternal:
		return ReferenceExternal
	default:
		return ReferenceInternal
	}
}

// resolveTargetSlug normalises an internal destination to the slug its file
// stem would import under. Resolution does not imply the target exists.
func resolveTargetSlug(link interfaces.Link) *string {
	if link.Kind != interfaces.LinkInternal {
		return nil
	}

	dest := link.Dest
	if idx := strings.Index(dest, "#"); idx >= 0 {
		dest = dest[:idx]
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil
	}

	stem := fileStem(dest)
	if stem == "" {
		return nil
	}

	normalized, err := standards.NormalizeSlug(stem)
	if err != nil || normalized == "" {
		return nil
	}
	return &normalized
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func sortDocuments(docs []*interfaces.Document) []*interfaces.Document {
	slices.SortFunc(docs, func(a, b *interfaces.Document) int {
		if a == nil || b == nil {
			return 0
		}
		return strings.Compare(a.FilePath, b.FilePath)
	})
	return docs
}

type importAccumulator struct {
	createdIDs []uuid.UUID
	updatedIDs []uuid.UUID
	skippedIDs []uuid.UUID
	warnings   []string
	errors     []error
}

func newImportAccumulator() *importAccumulator {
	return &importAccumulator{
		createdIDs: []uuid.UUID{},
		updatedIDs: []uuid.UUID{},
		skippedIDs: []uuid.UUID{},
		warnings:   []string{},
		errors:     []error{},
	}
}

func (a *importAccumulator) warn(warnings ...string) {
	a.warnings = append(a.warnings, warnings...)
}

func (a *importAccumulator) created(id uuid.UUID) {
	if id != uuid.Nil {
		a.createdIDs = append(a.createdIDs, id)
	}
}

func (a *importAccumulator) updated(id uuid.UUID) {
	if id != uuid.Nil {
		a.updatedIDs = append(a.updatedIDs, id)
	}
}

func (a *importAccumulator) skip(id uuid.UUID) {
	if id != uuid.Nil {
		a.skippedIDs = append(a.skippedIDs, id)
	}
}

func (a *importAccumulator) addError(err error) {
	if err != nil {
		a.errors = append(a.errors, err)
	}
}

func (a *importAccumulator) result() *ImportResult {
	return &ImportResult{
		CreatedIDs: a.createdIDs,
		UpdatedIDs: a.updatedIDs,
		SkippedIDs: a.skippedIDs,
		Warnings:   a.warnings,
		Errors:     a.errors,
	}
}

type syncAccumulator struct {
	created  int
	updated  int
	deleted  int
	skipped  int
	warnings []string
	errors   []error
}

func newSyncAccumulator() *syncAccumulator {
	return &syncAccumulator{
		warnings: []string{},
		errors:   []error{},
	}
}

func (s *syncAccumulator) merge(res *ImportResult) {
	if res == nil {
		return
	}
	s.created += len(res.CreatedIDs)
	s.updated += len(res.UpdatedIDs)
	s.skipped += len(res.SkippedIDs)
	s.warnings = append(s.warnings, res.Warnings...)
	s.errors = append(s.errors, res.Errors...)
}

func (s *syncAccumulator) addError(err error) {
	if err != nil {
		s.errors = append(s.errors, err)
	}
}

func (s *syncAccumulator) result() *SyncResult {
	return &SyncResult{
		Created:  s.created,
		Updated:  s.updated,
		Deleted:  s.deleted,
		Skipped:  s.skipped,
		Warnings: s.warnings,
		Errors:   s.errors,
	}
}

func errSlice(errs []error) []error {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
