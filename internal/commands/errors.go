package commands

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

const (
	commandValidationCode   = "COMMAND_VALIDATION_FAILED"
	commandContextCanceled  = "COMMAND_CONTEXT_CANCELED"
	commandContextTimeout   = "COMMAND_CONTEXT_TIMEOUT"
	commandContextErrorCode = "COMMAND_CONTEXT_ERROR"
	commandExecuteFailed    = "COMMAND_EXECUTION_FAILED"
)

// wrapError tags an error with a category and text code unless a previous
// layer already wrapped it.
func wrapError(err error, category goerrors.Category, message, code string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, category, message).WithTextCode(code)
}

func wrapValidationError(err error) error {
	return wrapError(err, goerrors.CategoryValidation, "command validation failed", commandValidationCode)
}

func wrapContextError(err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case context.Canceled:
		return wrapError(err, goerrors.CategoryCommand, "command execution cancelled", commandContextCanceled)
	case context.DeadlineExceeded:
		return wrapError(err, goerrors.CategoryCommand, "command execution deadline exceeded", commandContextTimeout)
	default:
		return wrapError(err, goerrors.CategoryCommand, "command context error", commandContextErrorCode)
	}
}

func wrapExecuteError(err error) error {
	return wrapError(err, goerrors.CategoryCommand, "command execution failed", commandExecuteFailed)
}
