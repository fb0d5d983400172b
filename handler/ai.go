package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"wisegpt/internal/domain"
	"wisegpt/internal/usecase"
)

type AIResponder interface {
	Respond(ctx context.Context, in domain.AIInvocation) error
}

// AIHandler serves the asynchronous invocations made by the AI trigger.
type AIHandler struct {
	responder AIResponder
	logger    zerolog.Logger
}

func NewAIHandler(responder AIResponder, logger zerolog.Logger) (*AIHandler, error) {
	if responder == nil {
		return nil, errors.New("handler: ai responder must not be nil")
	}
	return &AIHandler{responder: responder, logger: logger}, nil
}

// Handle returns an error only when a redelivery could help, which makes the
// Lambda runtime retry the invocation.
func (h *AIHandler) Handle(ctx context.Context, in domain.AIInvocation) error {
	err := h.responder.Respond(ctx, in)
	if err == nil {
		return nil
	}
	log := h.logger.With().
		Str("conversationId", in.ConversationID).
		Str("correlationId", in.CorrelationID).
		Logger()
	if !usecase.Retryable(err) {
		log.Error().Err(err).Msg("dropping ai invocation")
		return nil
	}
	log.Warn().Err(err).Msg("ai invocation failed")
	return err
}
