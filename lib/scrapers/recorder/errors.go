package recorder

import (
	"errors"
	"fmt"
)

// sentinels for errors.Is, every concrete error below matches exactly one.
var (
	ErrTokenMissing        = errors.New("token missing")
	ErrOptionNotFound      = errors.New("option not found")
	ErrStepFailed          = errors.New("step failed")
	ErrWorkflowAborted     = errors.New("workflow aborted")
	ErrResultsNotFound     = errors.New("results not found")
	ErrParseFailure        = errors.New("timestamp parse failure")
	ErrMalformedRow        = errors.New("malformed result row")
	ErrPageCountUnknown    = errors.New("page count unknown")
	ErrPageFetchFailed     = errors.New("page fetch failed")
	ErrPaginationTruncated = errors.New("pagination truncated")
)

// TokenMissingError means the page is not the expected form: the session
// expired, the portal redirected to an error page or the markup changed.
// Resubmitting without a fresh token fails server-side, so it is never retried.
type TokenMissingError struct {
	Field string
}

func (e *TokenMissingError) Error() string {
	return fmt.Sprintf("hidden field %q missing from page", e.Field)
}

func (e *TokenMissingError) Is(target error) bool { return target == ErrTokenMissing }

type OptionNotFoundError struct {
	// Field is the select the option was looked up in.
	Field string
	Value string
	// Suggestion is the closest rendered option, empty when none is close.
	Suggestion string
}

func (e *OptionNotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("option %q not found in %s (did you mean %q?)", e.Value, e.Field, e.Suggestion)
	}
	return fmt.Sprintf("option %q not found in %s", e.Value, e.Field)
}

func (e *OptionNotFoundError) Is(target error) bool { return target == ErrOptionNotFound }

type StepFailedError struct {
	Step   string
	Status int
	Reason string
}

func (e *StepFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("step %s failed with status %d: %s", e.Step, e.Status, e.Reason)
	}
	return fmt.Sprintf("step %s failed with status %d", e.Step, e.Status)
}

func (e *StepFailedError) Is(target error) bool { return target == ErrStepFailed }

// WorkflowAbortedError wraps whatever stopped the navigator.
type WorkflowAbortedError struct {
	AtStep string
	Err    error
}

func (e *WorkflowAbortedError) Error() string {
	return fmt.Sprintf("workflow aborted at %s: %s", e.AtStep, e.Err)
}

func (e *WorkflowAbortedError) Unwrap() error { return e.Err }

func (e *WorkflowAbortedError) Is(target error) bool { return target == ErrWorkflowAborted }

type ResultsNotFoundError struct {
	// Missing names the container that could not be found.
	Missing string
}

func (e *ResultsNotFoundError) Error() string {
	return fmt.Sprintf("results container %s not found", e.Missing)
}

func (e *ResultsNotFoundError) Is(target error) bool { return target == ErrResultsNotFound }

type ParseFailureError struct {
	Raw string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("unrecognized timestamp %q", e.Raw)
}

func (e *ParseFailureError) Is(target error) bool { return target == ErrParseFailure }

type MalformedRowError struct {
	Row   int
	Cells int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("result row %d has %d cells", e.Row, e.Cells)
}

func (e *MalformedRowError) Is(target error) bool { return target == ErrMalformedRow }

type PageCountUnknownError struct {
	DocumentID string
	Raw        string
	Err        error
}

func (e *PageCountUnknownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document %s: page count unknown: %s", e.DocumentID, e.Err)
	}
	return fmt.Sprintf("document %s: page count unknown (read %q)", e.DocumentID, e.Raw)
}

func (e *PageCountUnknownError) Unwrap() error { return e.Err }

func (e *PageCountUnknownError) Is(target error) bool { return target == ErrPageCountUnknown }

type PageFetchFailedError struct {
	DocumentID string
	Page       int
	Err        error
}

func (e *PageFetchFailedError) Error() string {
	return fmt.Sprintf("document %s: page %d: %s", e.DocumentID, e.Page, e.Err)
}

func (e *PageFetchFailedError) Unwrap() error { return e.Err }

func (e *PageFetchFailedError) Is(target error) bool { return target == ErrPageFetchFailed }

// PaginationTruncatedError is reported when the declared page count and the
// navigable page count disagree.
type PaginationTruncatedError struct {
	DocumentID string
	LastPage   int
	Declared   int
}

func (e *PaginationTruncatedError) Error() string {
	return fmt.Sprintf(
		"document %s: next page disabled after page %d of %d",
		e.DocumentID, e.LastPage, e.Declared,
	)
}

func (e *PaginationTruncatedError) Is(target error) bool { return target == ErrPaginationTruncated }

// IsWorkflowFatal reports whether err must stop the whole job, as opposed to
// record-local errors that are reported and skipped.
func IsWorkflowFatal(err error) bool {
	return errors.Is(err, ErrWorkflowAborted) ||
		errors.Is(err, ErrTokenMissing) ||
		errors.Is(err, ErrOptionNotFound) ||
		errors.Is(err, ErrStepFailed)
}
