package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/mwtmurphy/go-playbook/internal/audit"
)

// auditRunRequest is the optional POST /api/audit body.
type auditRunRequest struct {
	// Disabled lists rule codes to skip for this run.
	Disabled []string `json:"disabled"`
}

func (api *API) registerAuditRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "/audit")

	mux.HandleFunc("GET "+root+"/latest", api.handleLatestAudit)
	mux.HandleFunc("POST "+root, api.handleRunAudit)
}

func (api *API) handleLatestAudit(w http.ResponseWriter, r *http.Request) {
	if api.auditor == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "audit service not configured")
		return
	}

	report, err := api.auditor.Latest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *API) handleRunAudit(w http.ResponseWriter, r *http.Request) {
	if api.auditor == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "audit service not configured")
		return
	}
	if !api.allowMutations {
		writeErrorCode(w, http.StatusForbidden, "mutations_disabled", "mutating endpoints are disabled")
		return
	}

	var req auditRunRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeIssues(w, "validation_failed", "invalid request body", []fieldIssue{
			{Field: "body", Message: err.Error()},
		})
		return
	}

	report, err := api.auditor.Run(r.Context(), audit.RunOptions{Disabled: req.Disabled})
	if err != nil {
		api.logger.Error("audit run failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
