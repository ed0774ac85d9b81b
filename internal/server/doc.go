// Package server exposes the playbook corpus over a JSON HTTP API.
//
// Routes mount on a standard library mux:
//   - Health: GET /healthz
//   - Standards: GET /api/standards (category, tag, status, q, drafts filters),
//     GET /api/standards/{slug} (?include=html,outline,refs),
//     GET /api/standards/{slug}/backlinks
//   - Corpus: GET /api/stats, GET /api/graph
//   - Audit: GET /api/audit/latest, POST /api/audit
//   - Sync: POST /api/sync
//
// The API is read-only by default. POST /api/sync and POST /api/audit answer
// 403 until mutations are enabled via WithMutations. Errors use a single
// envelope, {"error": {"code", "message", "issues"}}, with 404 for unknown
// slugs and 422 for invalid payloads.
//
// Host applications can register the handlers on their own mux/router as
// needed.
package server
