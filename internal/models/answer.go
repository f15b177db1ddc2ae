package models

// AnswerState classifies how an answer was produced.
type AnswerState string

const (
	// AnswerGrounded means the answer was composed from retrieved context.
	AnswerGrounded AnswerState = "grounded"
	// AnswerNoContext means no context survived the relevance gate; the
	// fixed decline message is returned instead of generated content.
	AnswerNoContext AnswerState = "no_context"
	// AnswerBackendError means the knowledge base was unreachable.
	AnswerBackendError AnswerState = "backend_error"
)

// AnswerResult is the outcome of answer composition. Never cached.
type AnswerResult struct {
	Answer string      `json:"answer"`
	State  AnswerState `json:"state"`
}

// AskResponse is the response for POST /api/v1/ask.
type AskResponse struct {
	Answer  string           `json:"answer"`
	State   AnswerState      `json:"state"`
	Context []RetrievalMatch `json:"context"`
}

// ContextResponse is the response for POST /api/v1/context.
type ContextResponse struct {
	Context []string `json:"context"`
}

// QueryResponse is the response for POST /api/v1/query.
type QueryResponse struct {
	Chunks []RetrievalMatch `json:"chunks"`
}
