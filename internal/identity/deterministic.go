package identity

import (
	"strconv"
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must ensure key construction prevents cross-entity collisions (prefix by domain/type).
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// StandardUUID derives the identifier a standard keeps across re-imports, so
// databases seeded from the same corpus agree on row identity.
func StandardUUID(slug string) uuid.UUID {
	return UUID("go-playbook:standard:" + strings.ToLower(strings.TrimSpace(slug)))
}

// RevisionUUID keys a revision snapshot by document and version.
func RevisionUUID(standardID uuid.UUID, version int) uuid.UUID {
	return UUID("go-playbook:revision:" + standardID.String() + ":" + strconv.Itoa(version))
}
