package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/standards"
)

// errorResponse is the error envelope every non-2xx answer uses:
// {"error": {"code": "...", "message": "...", "issues": [...]}}.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message,omitempty"`
	Issues  []fieldIssue `json:"issues,omitempty"`
}

// fieldIssue pinpoints one invalid request field or query parameter.
type fieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func joinPath(base, suffix string) string {
	trimmedBase := strings.TrimSpace(base)
	trimmedSuffix := strings.TrimSpace(suffix)
	if trimmedBase == "" {
		if trimmedSuffix == "" {
			return "/"
		}
		return "/" + strings.Trim(trimmedSuffix, "/")
	}
	baseClean := "/" + strings.Trim(trimmedBase, "/")
	if trimmedSuffix == "" {
		return baseClean
	}
	return baseClean + "/" + strings.Trim(trimmedSuffix, "/")
}

func decodeJSON(r *http.Request, target any) error {
	if r == nil || r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status, payload := mapError(err)
	writeJSON(w, status, payload)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

func writeIssues(w http.ResponseWriter, code, message string, issues []fieldIssue) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error: errorDetail{Code: code, Message: message, Issues: issues},
	})
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: errorDetail{Code: "unknown_error"}}
	}

	var notFound *standards.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, errorResponse{Error: errorDetail{
			Code:    "not_found",
			Message: notFound.Error(),
		}}
	}

	if errors.Is(err, audit.ErrNoRuns) || errors.Is(err, standards.ErrRevisionNotFound) {
		return http.StatusNotFound, errorResponse{Error: errorDetail{
			Code:    "not_found",
			Message: err.Error(),
		}}
	}

	if errors.Is(err, standards.ErrCorpusUnavailable) {
		return http.StatusServiceUnavailable, errorResponse{Error: errorDetail{
			Code:    "corpus_unavailable",
			Message: err.Error(),
		}}
	}

	if errors.Is(err, standards.ErrSlugExists) {
		return http.StatusConflict, errorResponse{Error: errorDetail{
			Code:    "conflict",
			Message: err.Error(),
		}}
	}

	if errors.Is(err, standards.ErrSlugRequired) ||
		errors.Is(err, standards.ErrSlugInvalid) ||
		errors.Is(err, standards.ErrTitleRequired) ||
		errors.Is(err, standards.ErrSourceRequired) ||
		errors.Is(err, standards.ErrBodyRequired) ||
		errors.Is(err, standards.ErrStatusInvalid) ||
		errors.Is(err, standards.ErrChecksumRequired) {
		return http.StatusUnprocessableEntity, errorResponse{Error: errorDetail{
			Code:    "validation_failed",
			Message: err.Error(),
		}}
	}

	return http.StatusInternalServerError, errorResponse{Error: errorDetail{
		Code:    "internal_error",
		Message: err.Error(),
	}}
}

func parseBoolQuery(value string, defaultValue bool) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return defaultValue
	}
	return parsed
}
