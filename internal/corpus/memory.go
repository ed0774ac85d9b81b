package corpus

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStandardRepository is an in-memory implementation for scaffolding and
// tests. It honours the same replace-structure atomicity as the bun variant.
type MemoryStandardRepository struct {
	mu         sync.RWMutex
	standards  map[uuid.UUID]*Standard
	slugIndex  map[string]uuid.UUID
	sections   map[uuid.UUID][]*Section
	references map[uuid.UUID][]*Reference
	revisions  map[uuid.UUID][]*Revision
}

// NewMemoryStandardRepository creates an empty in-memory repository.
func NewMemoryStandardRepository() *MemoryStandardRepository {
	return &MemoryStandardRepository{
		standards:  make(map[uuid.UUID]*Standard),
		slugIndex:  make(map[string]uuid.UUID),
		sections:   make(map[uuid.UUID][]*Section),
		references: make(map[uuid.UUID][]*Reference),
		revisions:  make(map[uuid.UUID][]*Revision),
	}
}

// Create inserts the supplied standard.
func (m *MemoryStandardRepository) Create(_ context.Context, record *Standard) (*Standard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := cloneStandard(record)
	m.standards[copied.ID] = copied
	m.slugIndex[copied.Slug] = copied.ID
	return cloneStandard(copied), nil
}

// Update replaces the stored standard with the supplied record.
func (m *MemoryStandardRepository) Update(_ context.Context, record *Standard) (*Standard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.standards[record.ID]
	if !ok {
		return nil, &NotFoundError{Resource: "standard", Key: record.ID.String()}
	}
	delete(m.slugIndex, existing.Slug)

	copied := cloneStandard(record)
	m.standards[copied.ID] = copied
	m.slugIndex[copied.Slug] = copied.ID
	return cloneStandard(copied), nil
}

// GetByID retrieves a standard by identifier.
func (m *MemoryStandardRepository) GetByID(_ context.Context, id uuid.UUID) (*Standard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.standards[id]
	if !ok {
		return nil, &NotFoundError{Resource: "standard", Key: id.String()}
	}
	return cloneStandard(rec), nil
}

// GetBySlug retrieves a standard by slug, returning NotFoundError when absent.
func (m *MemoryStandardRepository) GetBySlug(_ context.Context, slug string) (*Standard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugIndex[slug]
	if !ok {
		return nil, &NotFoundError{Resource: "standard", Key: slug}
	}
	return cloneStandard(m.standards[id]), nil
}

// List returns all standards in slug order.
func (m *MemoryStandardRepository) List(_ context.Context) ([]*Standard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Standard, 0, len(m.standards))
	for _, rec := range m.standards {
		out = append(out, cloneStandard(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

// Delete removes a standard and its dependent rows.
func (m *MemoryStandardRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.standards[id]
	if !ok {
		return &NotFoundError{Resource: "standard", Key: id.String()}
	}
	delete(m.slugIndex, rec.Slug)
	delete(m.standards, id)
	delete(m.sections, id)
	delete(m.references, id)
	delete(m.revisions, id)
	return nil
}

// ReplaceStructure swaps the outline and reference rows for a standard.
func (m *MemoryStandardRepository) ReplaceStructure(_ context.Context, standardID uuid.UUID, sections []*Section, references []*Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.standards[standardID]; !ok {
		return &NotFoundError{Resource: "standard", Key: standardID.String()}
	}

	storedSections := make([]*Section, 0, len(sections))
	for i, section := range sections {
		if section == nil {
			continue
		}
		copied := *section
		copied.StandardID = standardID
		copied.Position = i
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		storedSections = append(storedSections, &copied)
	}

	storedReferences := make([]*Reference, 0, len(references))
	for i, reference := range references {
		if reference == nil {
			continue
		}
		copied := *reference
		copied.StandardID = standardID
		copied.Position = i
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		storedReferences = append(storedReferences, &copied)
	}

	m.sections[standardID] = storedSections
	m.references[standardID] = storedReferences
	return nil
}

// ListSections returns the stored outline rows in position order.
func (m *MemoryStandardRepository) ListSections(_ context.Context, standardID uuid.UUID) ([]*Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.sections[standardID]
	out := make([]*Section, 0, len(stored))
	for _, section := range stored {
		copied := *section
		out = append(out, &copied)
	}
	return out, nil
}

// ListReferences returns the stored reference rows in position order.
func (m *MemoryStandardRepository) ListReferences(_ context.Context, standardID uuid.UUID) ([]*Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.references[standardID]
	out := make([]*Reference, 0, len(stored))
	for _, reference := range stored {
		copied := *reference
		out = append(out, &copied)
	}
	return out, nil
}

// ListAllReferences returns every reference row across the corpus.
func (m *MemoryStandardRepository) ListAllReferences(_ context.Context) ([]*Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.references))
	for id := range m.references {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	var out []*Reference
	for _, id := range ids {
		for _, reference := range m.references[id] {
			copied := *reference
			out = append(out, &copied)
		}
	}
	return out, nil
}

// CreateRevision appends a revision snapshot.
func (m *MemoryStandardRepository) CreateRevision(_ context.Context, revision *Revision) (*Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *revision
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.revisions[copied.StandardID] = append(m.revisions[copied.StandardID], &copied)

	result := copied
	return &result, nil
}

// ListRevisions returns revisions in ascending version order.
func (m *MemoryStandardRepository) ListRevisions(_ context.Context, standardID uuid.UUID) ([]*Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.revisions[standardID]
	out := make([]*Revision, 0, len(stored))
	for _, revision := range stored {
		copied := *revision
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// GetLatestRevision returns the highest version revision for a standard.
func (m *MemoryStandardRepository) GetLatestRevision(_ context.Context, standardID uuid.UUID) (*Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.revisions[standardID]
	if len(stored) == 0 {
		return nil, &NotFoundError{Resource: "revision", Key: standardID.String()}
	}

	latest := stored[0]
	for _, revision := range stored[1:] {
		if revision.Version > latest.Version {
			latest = revision
		}
	}
	copied := *latest
	return &copied, nil
}

func cloneStandard(src *Standard) *Standard {
	if src == nil {
		return nil
	}

	copied := *src
	if len(src.Tags) > 0 {
		copied.Tags = append([]string(nil), src.Tags...)
	}
	if src.Meta != nil {
		copied.Meta = cloneMeta(src.Meta)
	}
	copied.Sections = nil
	copied.References = nil
	copied.Revisions = nil
	return &copied
}

func cloneMeta(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
