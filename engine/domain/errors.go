package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying pipeline failures. The ingestion orchestrator
// tags stage failures with one of these; the query orchestrator uses
// ErrGenerationInvalid and ErrRetrievalEmpty to drive path fallback.
var (
	// ErrNotFound: the source has no document at the resolved locator.
	ErrNotFound = errors.New("document not found at source")
	// ErrRateLimited: the source refused the request; retryable after backoff.
	ErrRateLimited = errors.New("rate limited by source")
	// ErrDuplicate: the document was already ingested; re-ingestion is rejected.
	ErrDuplicate = errors.New("document already ingested")

	// ErrAcquisition: network-level acquisition failure after retries.
	ErrAcquisition = errors.New("acquisition failed")
	// ErrExtraction: corrupt or unreadable input; the whole document fails.
	ErrExtraction = errors.New("text extraction failed")
	// ErrRegionExtraction: vision call failed after retries; non-fatal, the
	// pipeline proceeds with zero structured records.
	ErrRegionExtraction = errors.New("structured region extraction degraded")
	// ErrEmbedding: embedding generation failed after retries; fatal.
	ErrEmbedding = errors.New("embedding generation failed")
	// ErrSyncWrite: dual-store write failed; rollback was attempted.
	ErrSyncWrite = errors.New("dual-store write failed")

	// ErrGenerationInvalid: generated structured query rejected by validation.
	ErrGenerationInvalid = errors.New("generated query failed validation")
	// ErrRetrievalEmpty: no chunks matched; surfaced as a low-confidence answer.
	ErrRetrievalEmpty = errors.New("retrieval returned no chunks")
	// ErrUnanswerable: both query paths failed.
	ErrUnanswerable = errors.New("unable to answer")
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage name, preserving the error chain.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage name for an error produced by the ingestion
// pipeline, or "" if the error carries no stage tag.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Retryable reports whether an error is worth retrying with backoff.
// Corrupt-input and validation failures are permanent.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrExtraction),
		errors.Is(err, ErrGenerationInvalid):
		return false
	}
	return true
}
