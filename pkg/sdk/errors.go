package doseaudit

import "github.com/opencare-labs/doseaudit/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrIngestion         = domain.ErrIngestion
	ErrExtraction        = domain.ErrExtraction
	ErrUnknownDrug       = domain.ErrUnknownDrug
	ErrUnitMismatch      = domain.ErrUnitMismatch
	ErrPipelineTimeout   = domain.ErrPipelineTimeout
	ErrDocumentNotFound  = domain.ErrDocumentNotFound
	ErrMalformedOutput   = domain.ErrMalformedOutput
	ErrEmbeddingProvider = domain.ErrEmbeddingProvider
	ErrModelProvider     = domain.ErrModelProvider
)
