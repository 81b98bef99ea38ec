package domain

import "context"

// Pipeline stage labels for model-call metrics and logging.
const (
	StageExtract = "extract"
	StageAudit   = "audit"
	StageChat    = "chat"
)

// Completer is the shared chat-completion contract between layers.
// The extractor, the auditor, and the patient chatbot all speak through it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest describes one model call.
type CompletionRequest struct {
	System string
	Prompt string
	// JSONOutput constrains the model to a JSON object response.
	JSONOutput bool
	// Stage labels the call for metrics (extract, audit, chat).
	Stage string
}

// CompletionResult carries the model reply and token usage.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
