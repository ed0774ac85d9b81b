package ditesting

import (
	"context"
	"errors"
	"sync"

	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/internal/runtimeconfig"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// MemoryStorage records artifact storage interactions for assertions in
// tests. It accepts every write and reports nothing on reads, so export runs
// against it always rebuild from scratch.
type MemoryStorage struct {
	mu         sync.Mutex
	execCalls  []ExecCall
	queryCalls []QueryCall
}

// ExecCall captures an Exec invocation against the memory storage.
type ExecCall struct {
	Op   string
	Args []any
}

// QueryCall captures a Query invocation against the memory storage.
type QueryCall struct {
	Op   string
	Args []any
}

// NewMemoryStorage constructs a new in-memory storage adapter.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Exec records the executed operation.
func (m *MemoryStorage) Exec(_ context.Context, op string, args ...any) (interfaces.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execCalls = append(m.execCalls, ExecCall{Op: op, Args: append([]any(nil), args...)})
	return memoryResult{}, nil
}

// Query records the read operation and returns an empty result set.
func (m *MemoryStorage) Query(_ context.Context, op string, args ...any) (interfaces.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls = append(m.queryCalls, QueryCall{Op: op, Args: append([]any(nil), args...)})
	return memoryRows{}, nil
}

// ExecCalls returns a copy of the recorded Exec invocations.
func (m *MemoryStorage) ExecCalls() []ExecCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ExecCall, len(m.execCalls))
	copy(calls, m.execCalls)
	return calls
}

// QueryCalls returns a copy of the recorded Query invocations.
func (m *MemoryStorage) QueryCalls() []QueryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]QueryCall, len(m.queryCalls))
	copy(calls, m.queryCalls)
	return calls
}

type memoryRows struct{}

func (memoryRows) Next() bool {
	return false
}

func (memoryRows) Scan(dest ...any) error {
	return errors.New("ditesting: no rows available")
}

func (memoryRows) Close() error {
	return nil
}

type memoryResult struct{}

func (memoryResult) RowsAffected() (int64, error) {
	return 1, nil
}

func (memoryResult) LastInsertId() (int64, error) {
	return 0, nil
}

// NewExportContainer creates a container with export enabled and artifact
// writes captured in the returned memory storage.
func NewExportContainer(cfg runtimeconfig.Config, opts ...di.Option) (*di.Container, *MemoryStorage) {
	memStorage := NewMemoryStorage()
	options := append([]di.Option{di.WithArtifactStorage(memStorage)}, opts...)
	return di.NewContainer(cfg, options...), memStorage
}
