package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mwtmurphy/go-playbook/standards"
)

// MemoryRepository keeps runs and issues in process memory; tests and the
// memory storage profile use it.
type MemoryRepository struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*Run
	issues map[uuid.UUID][]*Issue
}

// NewMemoryRepository builds an empty in-memory audit store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:   make(map[uuid.UUID]*Run),
		issues: make(map[uuid.UUID][]*Issue),
	}
}

func (m *MemoryRepository) CreateRun(_ context.Context, run *Run) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.runs[copied.ID] = &copied

	out := copied
	return &out, nil
}

func (m *MemoryRepository) UpdateRun(_ context.Context, run *Run) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return nil, &standards.NotFoundError{Resource: "audit_run", Key: run.ID.String()}
	}
	copied := *run
	m.runs[copied.ID] = &copied

	out := copied
	return &out, nil
}

func (m *MemoryRepository) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, &standards.NotFoundError{Resource: "audit_run", Key: id.String()}
	}
	copied := *run
	return &copied, nil
}

func (m *MemoryRepository) LatestRun(_ context.Context) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Run
	for _, run := range m.runs {
		if run.Status != RunStatusFinished {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, ErrNoRuns
	}
	copied := *latest
	return &copied, nil
}

func (m *MemoryRepository) CreateIssues(_ context.Context, issues []*Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, issue := range issues {
		if issue == nil {
			continue
		}
		copied := *issue
		if copied.ID == uuid.Nil {
			copied.ID = uuid.New()
		}
		m.issues[copied.RunID] = append(m.issues[copied.RunID], &copied)
	}
	return nil
}

func (m *MemoryRepository) ListIssues(_ context.Context, runID uuid.UUID) ([]*Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.issues[runID]
	out := make([]*Issue, 0, len(stored))
	for _, issue := range stored {
		copied := *issue
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}
