package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/mwtmurphy/go-playbook/standards"
)

// syncRequest is the optional POST /api/sync body. UpdateExisting defaults
// to true when omitted; orphan deletion stays opt-in.
type syncRequest struct {
	Status         string `json:"status"`
	DryRun         bool   `json:"dry_run"`
	DeleteOrphaned bool   `json:"delete_orphaned"`
	UpdateExisting *bool  `json:"update_existing"`
}

type syncResponse struct {
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (api *API) registerSyncRoutes(mux *http.ServeMux, base string) {
	mux.HandleFunc("POST "+joinPath(base, "/sync"), api.handleSync)
}

func (api *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if api.corpus == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "corpus service not configured")
		return
	}
	if !api.allowMutations {
		writeErrorCode(w, http.StatusForbidden, "mutations_disabled", "mutating endpoints are disabled")
		return
	}

	var req syncRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeIssues(w, "validation_failed", "invalid request body", []fieldIssue{
			{Field: "body", Message: err.Error()},
		})
		return
	}

	opts := standards.SyncOptions{
		ImportOptions: standards.ImportOptions{
			Status: req.Status,
			DryRun: req.DryRun,
		},
		DeleteOrphaned: req.DeleteOrphaned,
		UpdateExisting: req.UpdateExisting == nil || *req.UpdateExisting,
	}

	// Sync reports per-file failures both in the result and as its error
	// return; only a run that produced no result at all maps to an error
	// status.
	result, err := api.corpus.Sync(r.Context(), opts)
	if result == nil {
		api.logger.Error("corpus sync failed", "error", err)
		writeError(w, err)
		return
	}

	resp := syncResponse{
		Created:  result.Created,
		Updated:  result.Updated,
		Deleted:  result.Deleted,
		Skipped:  result.Skipped,
		Warnings: result.Warnings,
	}
	for _, syncErr := range result.Errors {
		if syncErr != nil {
			resp.Errors = append(resp.Errors, syncErr.Error())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
