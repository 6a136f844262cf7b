package meeting

import "errors"

// Error taxonomy shared across the pipeline and its surfaces. Callers match
// with errors.Is; wrapped errors carry the step-specific detail.
var (
	// ErrValidation marks malformed input rejected before any collaborator call.
	ErrValidation = errors.New("invalid input")

	// ErrRedactionUnavailable is fatal for sensitive transcripts. The pipeline
	// fails closed rather than pass unredacted text downstream.
	ErrRedactionUnavailable = errors.New("redaction unavailable")

	// ErrExtractionFailed surfaces after the extractor has exhausted its own
	// bounded retries.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrSentimentFailed degrades: the affected speaker has no sentiment record.
	ErrSentimentFailed = errors.New("sentiment scoring failed")

	// ErrIndexingFailed is non-fatal; the processed meeting is still returned
	// with the failure recorded in its audit log.
	ErrIndexingFailed = errors.New("indexing failed")
)
