package domain

import "context"

// AIRequestType selects what the AI worker should produce.
type AIRequestType string

const (
	AIRequestCompletion AIRequestType = "COMPLETION"
	AIRequestSummary    AIRequestType = "SUMMARY"
)

// ConversationView is the slice of history handed to the AI worker: the last
// summary, if any, followed by every message since.
type ConversationView struct {
	Summary  string                `json:"summary,omitempty"`
	Messages []ConversationMessage `json:"messages"`
}

// AIRequest is what the aggregate asks the AI trigger to dispatch.
type AIRequest struct {
	Type           AIRequestType    `json:"type"`
	ConversationID string           `json:"conversationId"`
	Conversation   ConversationView `json:"conversation"`
}

// AIInvocation is the dispatched form of an AIRequest, paired with the
// correlation id its response must carry.
type AIInvocation struct {
	AIRequest
	CorrelationID string `json:"correlationId"`
}

// AITrigger dispatches AI work without waiting for it. Each call returns a
// fresh, globally unique correlation id; the result arrives later as a
// ProcessCompletionResponse or ProcessSummaryResponse command.
type AITrigger interface {
	Trigger(ctx context.Context, req AIRequest) (string, error)
}

// TokenEstimator approximates the token cost of a text.
type TokenEstimator interface {
	Estimate(text string) int
}
