package interfaces

import (
	"github.com/mwtmurphy/go-playbook/pkg/storage"
)

// StorageProvider is the import location most packages use for the artifact
// storage contract. The definition lives in pkg/storage next to the
// filesystem implementation.
type StorageProvider = storage.Provider

// Rows aliases the storage.Rows cursor.
type Rows = storage.Rows

// Result aliases the storage.Result outcome.
type Result = storage.Result
