package standards

import (
	"errors"
	"fmt"
)

var (
	ErrSlugRequired       = errors.New("standards: slug is required")
	ErrSlugInvalid        = errors.New("standards: slug contains invalid characters")
	ErrSlugExists         = errors.New("standards: slug already exists")
	ErrTitleRequired      = errors.New("standards: title is required")
	ErrSourceRequired     = errors.New("standards: source path is required")
	ErrBodyRequired       = errors.New("standards: body is required")
	ErrStatusInvalid      = errors.New("standards: status is invalid")
	ErrStandardIDRequired = errors.New("standards: standard id required")
	ErrChecksumRequired   = errors.New("standards: checksum is required")
	ErrCorpusUnavailable  = errors.New("standards: corpus source is not configured")
	ErrRevisionNotFound   = errors.New("standards: revision not found")

	ErrRepositoryRequired = errors.New("standards: repository is required")
	ErrScannerRequired    = errors.New("standards: structure scanner is required")
)

// NotFoundError reports a missing standard, section, or revision lookup.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "standards: not found"
	}
	return fmt.Sprintf("standards: %s %q not found", e.Resource, e.Key)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// DuplicateSlugError reports two source files normalising to the same slug
// within a single import batch.
type DuplicateSlugError struct {
	Slug  string
	Paths []string
}

func (e *DuplicateSlugError) Error() string {
	if e == nil {
		return ErrSlugExists.Error()
	}
	return fmt.Sprintf("%s: slug=%s paths=%v", ErrSlugExists.Error(), e.Slug, e.Paths)
}

func (e *DuplicateSlugError) Unwrap() error {
	return ErrSlugExists
}
