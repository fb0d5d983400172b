package domain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"wisegpt/internal/tokens"
)

const (
	DefaultMaxTokensSpent         = 100000
	DefaultSummaryMinTokens       = 3000
	DefaultSummaryMinUserMessages = 4
)

// SummaryThresholds must both be reached before a summary is requested.
type SummaryThresholds struct {
	MinTokens       int
	MinUserMessages int
}

// Limits are the budget rules a conversation is held to.
type Limits struct {
	// MaxTokensSpent ends the conversation once the lifetime spend exceeds it.
	MaxTokensSpent int
	Summary        SummaryThresholds
}

// Settings configure a Conversation. Zero values fall back to the defaults.
type Settings struct {
	Limits    Limits
	Estimator TokenEstimator
}

// Conversation is the event-sourced aggregate owning every conversation rule.
// It is mutated only through its command handlers and Apply, and is never
// shared between concurrent commands.
type Conversation struct {
	id       string
	settings Settings

	nextEventID            int
	status                 Status
	metadata               map[string]string
	messages               []ConversationMessage
	lastSummary            *Summary
	tokensSinceLastSummary int
	totalTokensSpent       int
	aiStatus               AIStatus
	// awaitingReply is set by a user message and cleared by a completion
	// request covering it.
	awaitingReply bool
	// userMessageIDs holds every user message id ever added, including the
	// ones pruned by a summary.
	userMessageIDs map[string]struct{}

	newEvents []Event
}

// State is a detached copy of the observable aggregate state.
type State struct {
	ConversationID              string
	NextEventID                 int
	Status                      Status
	Metadata                    map[string]string
	MessagesSinceLastSummary    []ConversationMessage
	LastSummary                 *Summary
	TotalTokensSinceLastSummary int
	TotalTokensSpent            int
	AIStatus                    AIStatus
	AwaitingReply               bool
}

// Create starts a new conversation and records ConversationStarted.
func Create(conversationID string, metadata map[string]string, settings Settings) (*Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("domain: create conversation: empty id: %w", ErrInvalidCommand)
	}
	c := newConversation(conversationID, settings)
	md := map[string]string{}
	maps.Copy(md, metadata)
	if err := c.record(ConversationStarted{EventHeader: c.nextHeader(), Metadata: md}); err != nil {
		return nil, err
	}
	return c, nil
}

// Load returns an empty conversation ready to replay its event log via Apply.
func Load(conversationID string, settings Settings) *Conversation {
	return newConversation(conversationID, settings)
}

func newConversation(conversationID string, settings Settings) *Conversation {
	if settings.Limits.MaxTokensSpent <= 0 {
		settings.Limits.MaxTokensSpent = DefaultMaxTokensSpent
	}
	if settings.Limits.Summary.MinTokens <= 0 {
		settings.Limits.Summary.MinTokens = DefaultSummaryMinTokens
	}
	if settings.Limits.Summary.MinUserMessages <= 0 {
		settings.Limits.Summary.MinUserMessages = DefaultSummaryMinUserMessages
	}
	if settings.Estimator == nil {
		settings.Estimator = tokens.Default()
	}
	return &Conversation{
		id:       conversationID,
		settings: settings,
		status:   Status{Type: StatusOngoing},
		metadata: map[string]string{},
		aiStatus: idleAIStatus(),

		userMessageIDs: map[string]struct{}{},
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// NextEventID returns the id the next recorded event will carry.
func (c *Conversation) NextEventID() int { return c.nextEventID }

// Status returns whether the conversation is ongoing, ended or failed.
func (c *Conversation) Status() Status { return c.status }

// AIStatus returns the state of the completion and summary sub-flows.
func (c *Conversation) AIStatus() AIStatus { return c.aiStatus }

// TotalTokensSpent returns the provider-reported tokens spent over the whole
// conversation.
func (c *Conversation) TotalTokensSpent() int { return c.totalTokensSpent }

// TotalTokensSinceLastSummary returns the estimated tokens of the messages
// not yet covered by a summary.
func (c *Conversation) TotalTokensSinceLastSummary() int { return c.tokensSinceLastSummary }

// Messages returns the messages since the last summary in arrival order.
func (c *Conversation) Messages() []ConversationMessage {
	return append([]ConversationMessage(nil), c.messages...)
}

// LastSummary returns the most recent summary, if any.
func (c *Conversation) LastSummary() (Summary, bool) {
	if c.lastSummary == nil {
		return Summary{}, false
	}
	return *c.lastSummary, true
}

// Events returns the events recorded since the aggregate was created or
// loaded. Replayed events are never included.
func (c *Conversation) Events() []Event {
	return append([]Event(nil), c.newEvents...)
}

// State returns a copy of the observable state.
func (c *Conversation) State() State {
	s := State{
		ConversationID:              c.id,
		NextEventID:                 c.nextEventID,
		Status:                      c.status,
		Metadata:                    maps.Clone(c.metadata),
		MessagesSinceLastSummary:    c.Messages(),
		TotalTokensSinceLastSummary: c.tokensSinceLastSummary,
		TotalTokensSpent:            c.totalTokensSpent,
		AIStatus:                    c.aiStatus,
		AwaitingReply:               c.awaitingReply,
	}
	if c.lastSummary != nil {
		sum := *c.lastSummary
		s.LastSummary = &sum
	}
	return s
}

// AddUserMessage records a user message and then reacts to it: the
// conversation is ended when over budget, otherwise a summary or a completion
// is requested when warranted and no AI work is in flight. A message id seen
// before is a redelivery and records nothing.
func (c *Conversation) AddUserMessage(ctx context.Context, msg UserMessage, trigger AITrigger) error {
	if err := c.assertOngoing(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("domain: add user message: empty message id: %w", ErrInvalidCommand)
	}
	if _, seen := c.userMessageIDs[msg.ID]; seen {
		return nil
	}

	err := c.record(UserMessageAdded{
		EventHeader: c.nextHeader(),
		Message: AddedUserMessage{
			ID:                msg.ID,
			Text:              msg.Text,
			AuthorID:          msg.AuthorID,
			ApproximateTokens: c.settings.Estimator.Estimate(msg.Text),
		},
	})
	if err != nil {
		return err
	}
	return c.react(ctx, trigger, true)
}

// ProcessCompletionResponse folds the result of the in-flight completion back
// into the conversation. A response for any other correlation id returns
// ErrUnknownCorrelation and changes nothing.
func (c *Conversation) ProcessCompletionResponse(ctx context.Context, correlationID string, outcome CompletionOutcome, trigger AITrigger) error {
	if err := c.assertOngoing(); err != nil {
		return err
	}
	inFlight := c.aiStatus.Completion
	if inFlight.Status != AIProcessing {
		return fmt.Errorf("domain: completion response %q with no completion in flight: %w", correlationID, ErrUnknownCorrelation)
	}
	if inFlight.CorrelationID != correlationID {
		return fmt.Errorf("domain: expected completion response for %q but got %q: %w", inFlight.CorrelationID, correlationID, ErrUnknownCorrelation)
	}

	switch o := outcome.(type) {
	case CompletionSucceeded:
		err := c.record(BotResponseAdded{
			EventHeader:      c.nextHeader(),
			CorrelationID:    correlationID,
			Message:          BotMessage{ID: correlationID, Text: o.Text, Tokens: o.MessageTokens},
			TotalTokensSpent: o.TotalTokensSpent,
		})
		if err != nil {
			return err
		}
		return c.react(ctx, trigger, true)
	case CompletionFailed:
		return c.record(ConversationEnded{
			EventHeader: c.nextHeader(),
			Reason:      BotCompletionError{CorrelationID: correlationID, Message: o.Message},
		})
	default:
		return fmt.Errorf("domain: unknown completion outcome %T: %w", outcome, ErrInvalidCommand)
	}
}

// ProcessSummaryResponse folds the result of the in-flight summary back into
// the conversation, pruning every message the summary covers.
func (c *Conversation) ProcessSummaryResponse(ctx context.Context, correlationID string, outcome SummaryOutcome, trigger AITrigger) error {
	if err := c.assertOngoing(); err != nil {
		return err
	}
	inFlight := c.aiStatus.Summary
	if inFlight.Status != AIProcessing {
		return fmt.Errorf("domain: summary response %q with no summary in flight: %w", correlationID, ErrUnknownCorrelation)
	}
	if inFlight.CorrelationID != correlationID {
		return fmt.Errorf("domain: expected summary response for %q but got %q: %w", inFlight.CorrelationID, correlationID, ErrUnknownCorrelation)
	}

	switch o := outcome.(type) {
	case SummarySucceeded:
		err := c.record(BotSummaryAdded{
			EventHeader:      c.nextHeader(),
			CorrelationID:    correlationID,
			Summary:          o.Summary,
			SummaryTokens:    o.SummaryTokens,
			TotalTokensSpent: o.TotalTokensSpent,
		})
		if err != nil {
			return err
		}
		return c.react(ctx, trigger, false)
	case SummaryFailed:
		return c.record(ConversationEnded{
			EventHeader: c.nextHeader(),
			Reason:      BotSummaryError{CorrelationID: correlationID, Message: o.Message},
		})
	default:
		return fmt.Errorf("domain: unknown summary outcome %T: %w", outcome, ErrInvalidCommand)
	}
}

// Apply replays an already persisted event. It never records the event as new.
func (c *Conversation) Apply(event Event) error {
	return c.apply(event, false)
}

// react runs at most one follow-up, in priority order: end on budget, request
// a summary, request a completion. Completion and summary never overlap.
func (c *Conversation) react(ctx context.Context, trigger AITrigger, allowSummary bool) error {
	if c.totalTokensSpent > c.settings.Limits.MaxTokensSpent {
		return c.record(ConversationEnded{
			EventHeader: c.nextHeader(),
			Reason: MaxTokensReached{
				Ceiling:          c.settings.Limits.MaxTokensSpent,
				TotalTokensSpent: c.totalTokensSpent,
			},
		})
	}
	if c.aiStatus.Busy() {
		return nil
	}
	if allowSummary && c.summaryWarranted() {
		return c.requestSummary(ctx, trigger)
	}
	if c.awaitingReply {
		return c.requestCompletion(ctx, trigger)
	}
	return nil
}

func (c *Conversation) summaryWarranted() bool {
	if len(c.messages) == 0 {
		return false
	}
	th := c.settings.Limits.Summary
	return c.tokensSinceLastSummary >= th.MinTokens && c.userMessageCount() >= th.MinUserMessages
}

func (c *Conversation) userMessageCount() int {
	n := 0
	for _, m := range c.messages {
		if m.IsUser() {
			n++
		}
	}
	return n
}

func (c *Conversation) requestCompletion(ctx context.Context, trigger AITrigger) error {
	correlationID, err := c.trigger(ctx, trigger, AIRequestCompletion)
	if err != nil {
		return err
	}
	return c.record(BotCompletionRequested{EventHeader: c.nextHeader(), CorrelationID: correlationID})
}

func (c *Conversation) requestSummary(ctx context.Context, trigger AITrigger) error {
	lastMessageID := c.messages[len(c.messages)-1].ID
	correlationID, err := c.trigger(ctx, trigger, AIRequestSummary)
	if err != nil {
		return err
	}
	return c.record(BotSummaryRequested{
		EventHeader:   c.nextHeader(),
		CorrelationID: correlationID,
		LastMessageID: lastMessageID,
	})
}

func (c *Conversation) trigger(ctx context.Context, trigger AITrigger, typ AIRequestType) (string, error) {
	if trigger == nil {
		return "", fmt.Errorf("domain: trigger %s: no AI trigger configured", strings.ToLower(string(typ)))
	}
	correlationID, err := trigger.Trigger(ctx, AIRequest{
		Type:           typ,
		ConversationID: c.id,
		Conversation:   c.view(),
	})
	if err != nil {
		return "", fmt.Errorf("domain: trigger %s: %w", strings.ToLower(string(typ)), err)
	}
	if correlationID == "" {
		return "", fmt.Errorf("domain: trigger %s: empty correlation id", strings.ToLower(string(typ)))
	}
	return correlationID, nil
}

func (c *Conversation) view() ConversationView {
	v := ConversationView{Messages: c.Messages()}
	if c.lastSummary != nil {
		v.Summary = c.lastSummary.Text
	}
	return v
}

func (c *Conversation) assertOngoing() error {
	if c.status.Type != StatusOngoing {
		return fmt.Errorf("domain: conversation %q is %s: %w", c.id, c.status.Type, ErrConversationNotOngoing)
	}
	return nil
}

func (c *Conversation) nextHeader() EventHeader {
	return EventHeader{EventID: c.nextEventID, ConversationID: c.id}
}

func (c *Conversation) record(event Event) error {
	return c.apply(event, true)
}

func (c *Conversation) apply(event Event, isNew bool) error {
	if event == nil {
		return fmt.Errorf("domain: apply nil event: %w", ErrInvalidEvent)
	}
	h := event.Header()
	if h.EventID != c.nextEventID {
		return fmt.Errorf("domain: event %d (%s) applied while expecting %d: %w", h.EventID, event.Type(), c.nextEventID, ErrEventOutOfOrder)
	}
	if h.ConversationID != c.id {
		return fmt.Errorf("domain: event %d belongs to conversation %q, not %q: %w", h.EventID, h.ConversationID, c.id, ErrInvalidEvent)
	}
	if err := c.transition(event); err != nil {
		return fmt.Errorf("domain: apply event %d (%s): %w", h.EventID, event.Type(), err)
	}

	c.nextEventID++
	if isNew {
		c.newEvents = append(c.newEvents, event)
	}
	return nil
}

// transition validates the event against the current state before mutating
// anything, so a rejected event leaves the aggregate untouched.
func (c *Conversation) transition(event Event) error {
	switch e := event.(type) {
	case ConversationStarted:
		c.metadata = maps.Clone(e.Metadata)
		if c.metadata == nil {
			c.metadata = map[string]string{}
		}
	case UserMessageAdded:
		c.appendMessage(ConversationMessage{
			ID:     e.Message.ID,
			Text:   e.Message.Text,
			Author: Author{Type: AuthorUser, ID: e.Message.AuthorID},
			Tokens: e.Message.ApproximateTokens,
		})
		c.userMessageIDs[e.Message.ID] = struct{}{}
		c.awaitingReply = true
	case BotCompletionRequested:
		if c.aiStatus.Completion.Status == AIProcessing {
			return fmt.Errorf("completion %q already in flight: %w", c.aiStatus.Completion.CorrelationID, ErrInvalidEvent)
		}
		c.aiStatus.Completion = CompletionStatus{Status: AIProcessing, CorrelationID: e.CorrelationID}
		c.awaitingReply = false
	case BotResponseAdded:
		if c.aiStatus.Completion.Status != AIProcessing || c.aiStatus.Completion.CorrelationID != e.CorrelationID {
			return fmt.Errorf("no completion %q in flight: %w", e.CorrelationID, ErrInvalidEvent)
		}
		c.aiStatus.Completion = CompletionStatus{Status: AIIdle}
		c.appendMessage(ConversationMessage{
			ID:     e.Message.ID,
			Text:   e.Message.Text,
			Author: Author{Type: AuthorBot},
			Tokens: e.Message.Tokens,
		})
		c.totalTokensSpent += e.TotalTokensSpent
	case BotSummaryRequested:
		if c.aiStatus.Summary.Status == AIProcessing {
			return fmt.Errorf("summary %q already in flight: %w", c.aiStatus.Summary.CorrelationID, ErrInvalidEvent)
		}
		c.aiStatus.Summary = SummaryStatus{
			Status:        AIProcessing,
			CorrelationID: e.CorrelationID,
			LastMessageID: e.LastMessageID,
		}
	case BotSummaryAdded:
		return c.applySummaryAdded(e)
	case ConversationEnded:
		return c.applyConversationEnded(e)
	default:
		return fmt.Errorf("unknown event %T: %w", event, ErrInvalidEvent)
	}
	return nil
}

func (c *Conversation) applySummaryAdded(e BotSummaryAdded) error {
	inFlight := c.aiStatus.Summary
	if inFlight.Status != AIProcessing || inFlight.CorrelationID != e.CorrelationID {
		return fmt.Errorf("no summary %q in flight: %w", e.CorrelationID, ErrInvalidEvent)
	}
	cutoff := -1
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == inFlight.LastMessageID {
			cutoff = i
			break
		}
	}
	if cutoff < 0 {
		return fmt.Errorf("summarized message %q not in history: %w", inFlight.LastMessageID, ErrInvalidEvent)
	}

	remaining := append([]ConversationMessage(nil), c.messages[cutoff+1:]...)
	c.messages = remaining
	c.tokensSinceLastSummary = 0
	for _, m := range remaining {
		c.tokensSinceLastSummary += m.Tokens
	}
	c.lastSummary = &Summary{Text: e.Summary, LastMessageID: inFlight.LastMessageID}
	c.totalTokensSpent += e.TotalTokensSpent
	c.aiStatus.Summary = SummaryStatus{Status: AIIdle}
	return nil
}

func (c *Conversation) applyConversationEnded(e ConversationEnded) error {
	switch r := e.Reason.(type) {
	case MaxTokensReached:
		c.status = Status{Type: StatusEnded}
	case BotCompletionError:
		c.status = Status{Type: StatusError, Message: "bot completion error: " + r.Message}
		c.aiStatus.Completion = CompletionStatus{Status: AIIdle}
	case BotSummaryError:
		c.status = Status{Type: StatusError, Message: "bot summary error: " + r.Message}
		c.aiStatus.Summary = SummaryStatus{Status: AIIdle}
	default:
		return fmt.Errorf("unknown end reason %T: %w", e.Reason, ErrInvalidEvent)
	}
	return nil
}

func (c *Conversation) appendMessage(m ConversationMessage) {
	c.messages = append(c.messages, m)
	c.tokensSinceLastSummary += m.Tokens
}

// IsStaleResponse reports whether err rejects an AI response that does not
// match the request in flight.
func IsStaleResponse(err error) bool {
	return errors.Is(err, ErrUnknownCorrelation)
}
