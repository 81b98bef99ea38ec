package domain

import "errors"

var (
	// ErrIngestion signals an unreadable or unsupported source document.
	// Fatal to that document, not to the store.
	ErrIngestion = errors.New("ingestion failed")
	// ErrExtraction signals plan text that could not be parsed into a
	// dosing request after the bounded retry.
	ErrExtraction = errors.New("extraction failed")
	// ErrUnknownDrug signals a drug with no dose-safety formula.
	// Normal outcome: the decision degrades to evidence-only reasoning.
	ErrUnknownDrug = errors.New("no dosing formula for drug")
	// ErrUnitMismatch signals dose units that cannot be compared.
	// Fatal to that validation; a conversion is never guessed.
	ErrUnitMismatch = errors.New("incomparable dose units")
	// ErrPipelineTimeout signals an unresponsive model backend after the
	// bounded retry. Surfaced as "manual review required", never approval.
	ErrPipelineTimeout = errors.New("validation pipeline timed out")

	// ErrDocumentNotFound signals a missing source document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrMalformedOutput signals model output that failed schema validation.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrModelProvider signals a chat-completion provider failure.
	ErrModelProvider = errors.New("model provider error")
)

// KeyPrefix namespaces all Redis keys owned by this service.
const KeyPrefix = "doseaudit:"
