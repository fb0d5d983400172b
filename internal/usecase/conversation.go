package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"wisegpt/internal/domain"
)

// EventStore is the append-only, per-conversation event log.
type EventStore interface {
	Load(ctx context.Context, conversationID string) ([]domain.Event, error)
	// Append must fail with domain.ErrConcurrentModification when any of the
	// event ids is already taken.
	Append(ctx context.Context, conversationID string, events []domain.Event) error
}

// EventPublisher fans persisted events out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// ConversationService routes commands to the conversation aggregate: it loads
// the aggregate from its event log, runs the handler, persists the new events
// atomically and publishes them in order.
type ConversationService struct {
	store     EventStore
	publisher EventPublisher
	trigger   domain.AITrigger
	settings  domain.Settings
	logger    zerolog.Logger
}

func NewConversationService(store EventStore, publisher EventPublisher, trigger domain.AITrigger, settings domain.Settings, logger zerolog.Logger) (*ConversationService, error) {
	if store == nil {
		return nil, errors.New("usecase: event store must not be nil")
	}
	if publisher == nil {
		return nil, errors.New("usecase: event publisher must not be nil")
	}
	if trigger == nil {
		return nil, errors.New("usecase: ai trigger must not be nil")
	}
	return &ConversationService{
		store:     store,
		publisher: publisher,
		trigger:   trigger,
		settings:  settings,
		logger:    logger,
	}, nil
}

// Execute handles a single command. Stale AI responses are logged and dropped.
func (s *ConversationService) Execute(ctx context.Context, cmd domain.Command) error {
	if cmd == nil {
		return newError(ErrorInvalidInput, "nil_command", nil)
	}
	conversationID := strings.TrimSpace(cmd.TargetConversationID())
	if conversationID == "" {
		return newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}
	log := s.logger.With().
		Str("conversationId", conversationID).
		Str("command", string(cmd.Type())).
		Logger()

	var err error
	switch c := cmd.(type) {
	case domain.CreateConversation:
		err = s.create(ctx, conversationID, c)
	case domain.AddUserMessage:
		err = s.transaction(ctx, conversationID, func(conv *domain.Conversation) error {
			return conv.AddUserMessage(ctx, c.Message, s.trigger)
		})
	case domain.ProcessCompletionResponse:
		err = s.transaction(ctx, conversationID, func(conv *domain.Conversation) error {
			return conv.ProcessCompletionResponse(ctx, c.CorrelationID, c.Outcome, s.trigger)
		})
	case domain.ProcessSummaryResponse:
		err = s.transaction(ctx, conversationID, func(conv *domain.Conversation) error {
			return conv.ProcessSummaryResponse(ctx, c.CorrelationID, c.Outcome, s.trigger)
		})
	default:
		err = newError(ErrorInvalidInput, "unknown_command", nil)
	}

	if domain.IsStaleResponse(err) {
		log.Warn().Err(err).Msg("rejected stale ai response")
		return nil
	}
	return err
}

func (s *ConversationService) create(ctx context.Context, conversationID string, cmd domain.CreateConversation) error {
	existing, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	if existing != nil {
		return newError(ErrorAlreadyExists, "conversation_exists", nil)
	}

	conv, err := domain.Create(conversationID, cmd.Metadata, s.settings)
	if err != nil {
		return classify(err)
	}
	if err := conv.AddUserMessage(ctx, cmd.InitialMessage, s.trigger); err != nil {
		return classify(err)
	}
	return s.commit(ctx, conv)
}

func (s *ConversationService) transaction(ctx context.Context, conversationID string, work func(*domain.Conversation) error) error {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return newError(ErrorNotFound, "conversation_not_found", nil)
	}
	if err := work(conv); err != nil {
		if domain.IsStaleResponse(err) {
			return err
		}
		return classify(err)
	}
	return s.commit(ctx, conv)
}

// load replays the event log. It returns nil without error when the
// conversation does not exist.
func (s *ConversationService) load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	events, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, newError(ErrorInternal, "event_store_load_error", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	conv := domain.Load(conversationID, s.settings)
	for _, e := range events {
		if err := conv.Apply(e); err != nil {
			return nil, newError(ErrorInternal, "event_replay_error", err)
		}
	}
	return conv, nil
}

func (s *ConversationService) commit(ctx context.Context, conv *domain.Conversation) error {
	events := conv.Events()
	if len(events) == 0 {
		return nil
	}
	if err := s.store.Append(ctx, conv.ID(), events); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return newError(ErrorConflict, "event_append_conflict", err)
		}
		return newError(ErrorInternal, "event_store_append_error", err)
	}
	for _, e := range events {
		if err := s.publisher.Publish(ctx, e); err != nil {
			return newError(ErrorPublish, "event_publish_error", err)
		}
	}
	s.logger.Info().
		Str("conversationId", conv.ID()).
		Int("events", len(events)).
		Int("nextEventId", conv.NextEventID()).
		Str("status", string(conv.Status().Type)).
		Msg("conversation updated")
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrConversationNotOngoing):
		return newError(ErrorNotOngoing, "conversation_not_ongoing", err)
	case errors.Is(err, domain.ErrInvalidCommand):
		return newError(ErrorInvalidInput, "invalid_command", err)
	case errors.Is(err, domain.ErrInvalidEvent), errors.Is(err, domain.ErrEventOutOfOrder):
		return newError(ErrorInternal, "aggregate_integrity_error", err)
	default:
		return newError(ErrorUpstream, "ai_trigger_error", err)
	}
}
