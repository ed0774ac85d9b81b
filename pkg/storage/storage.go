package storage

import "context"

// Provider is the artifact IO seam the static exporter routes its writes
// through. Implementations dispatch on the operation name: the filesystem
// provider maps the exporter.* operations onto disk IO, and test doubles
// record them for assertions.
type Provider interface {
	Query(ctx context.Context, op string, args ...any) (Rows, error)
	Exec(ctx context.Context, op string, args ...any) (Result, error)
}

// Rows is a minimal cursor over the values a read operation returned.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// Result reports the outcome of a mutating operation.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}
