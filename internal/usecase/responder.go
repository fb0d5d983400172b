package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"wisegpt/internal/domain"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (domain.ChatCompletion, error)
}

// CommandSender delivers a command to the conversation command bus.
type CommandSender interface {
	Send(ctx context.Context, cmd domain.Command) error
}

// Responder serves a dispatched AI request: it prompts the model and reports
// the outcome back to the conversation as a response command.
type Responder struct {
	params      ParamGetter
	llm         LLMClient
	commands    CommandSender
	paramPrefix string
	botName     string
	logger      zerolog.Logger
}

func NewResponder(p ParamGetter, llm LLMClient, commands CommandSender, paramPrefix, botName string, logger zerolog.Logger) (*Responder, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if commands == nil {
		return nil, errors.New("usecase: command sender must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	botName = strings.TrimSpace(botName)
	if botName == "" {
		botName = defaultBotName
	}
	return &Responder{
		params:      p,
		llm:         llm,
		commands:    commands,
		paramPrefix: paramPrefix,
		botName:     botName,
		logger:      logger,
	}, nil
}

// Respond runs one AI request. Provider failures are reported to the
// conversation as an error outcome and are not returned. Failing to load the
// model name or to deliver the response command is returned instead, so the
// invocation can be retried.
func (r *Responder) Respond(ctx context.Context, in domain.AIInvocation) error {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.CorrelationID) == "" {
		return newError(ErrorInvalidInput, "missing_invocation_ids", nil)
	}
	log := r.logger.With().
		Str("conversationId", in.ConversationID).
		Str("correlationId", in.CorrelationID).
		Str("requestType", string(in.Type)).
		Logger()

	var messages []domain.ChatMessage
	switch in.Type {
	case domain.AIRequestCompletion:
		messages = buildCompletionMessages(r.botName, in.Conversation)
	case domain.AIRequestSummary:
		messages = buildSummaryMessages(r.botName, in.Conversation)
	default:
		return newError(ErrorInvalidInput, "unknown_request_type", nil)
	}

	model, err := r.openaiModel(ctx)
	if err != nil {
		return newError(ErrorInternal, "config_load_error", err)
	}

	completion, err := r.complete(ctx, model, messages)
	if err != nil {
		log.Error().Err(err).Msg("ai request failed")
	} else {
		log.Info().
			Int("completionTokens", completion.Usage.CompletionTokens).
			Int("totalTokens", completion.Usage.TotalTokens).
			Msg("ai request completed")
	}

	cmd := responseCommand(in, completion, err)
	if sendErr := r.commands.Send(ctx, cmd); sendErr != nil {
		return newError(ErrorInternal, "command_send_error", sendErr)
	}
	return nil
}

func (r *Responder) complete(ctx context.Context, model string, messages []domain.ChatMessage) (domain.ChatCompletion, error) {
	completion, err := r.llm.Chat(ctx, model, messages)
	if err != nil {
		return domain.ChatCompletion{}, err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return domain.ChatCompletion{}, errors.New("usecase: empty completion text")
	}
	return completion, nil
}

func responseCommand(in domain.AIInvocation, completion domain.ChatCompletion, err error) domain.Command {
	if in.Type == domain.AIRequestSummary {
		var outcome domain.SummaryOutcome = domain.SummarySucceeded{
			Summary:          strings.TrimSpace(completion.Text),
			SummaryTokens:    completion.Usage.CompletionTokens,
			TotalTokensSpent: completion.Usage.TotalTokens,
		}
		if err != nil {
			outcome = domain.SummaryFailed{Message: err.Error()}
		}
		return domain.ProcessSummaryResponse{
			ConversationID: in.ConversationID,
			CorrelationID:  in.CorrelationID,
			Outcome:        outcome,
		}
	}

	var outcome domain.CompletionOutcome = domain.CompletionSucceeded{
		Text:             strings.TrimSpace(completion.Text),
		MessageTokens:    completion.Usage.CompletionTokens,
		TotalTokensSpent: completion.Usage.TotalTokens,
	}
	if err != nil {
		outcome = domain.CompletionFailed{Message: err.Error()}
	}
	return domain.ProcessCompletionResponse{
		ConversationID: in.ConversationID,
		CorrelationID:  in.CorrelationID,
		Outcome:        outcome,
	}
}

// openaiModel reads the model name on every request; the parameter store
// client caches it for PARAM_CACHE_TTL.
func (r *Responder) openaiModel(ctx context.Context) (string, error) {
	model, err := r.params.GetParameter(ctx, r.paramPrefix+"/config/openai_model")
	if err != nil {
		return "", fmt.Errorf("usecase: load openai model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("usecase: openai model parameter is empty")
	}
	return model, nil
}
