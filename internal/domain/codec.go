package domain

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// envelope is the wire shape shared by events, commands, end reasons and
// outcomes: a discriminant plus the variant payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type conversationEndedWire struct {
	EventHeader
	Reason envelope `json:"reason"`
}

type processCompletionResponseWire struct {
	ConversationID string   `json:"conversationId"`
	CorrelationID  string   `json:"correlationId"`
	Outcome        envelope `json:"outcome"`
}

type processSummaryResponseWire struct {
	ConversationID string   `json:"conversationId"`
	CorrelationID  string   `json:"correlationId"`
	Outcome        envelope `json:"outcome"`
}

// MarshalEvent encodes an event with its type discriminant.
func MarshalEvent(e Event) ([]byte, error) {
	var payload any = e
	switch ev := e.(type) {
	case nil:
		return nil, fmt.Errorf("domain: marshal nil event: %w", ErrInvalidEvent)
	case ConversationEnded:
		reason, err := wrap(string(reasonType(ev.Reason)), ev.Reason)
		if err != nil {
			return nil, fmt.Errorf("domain: marshal end reason: %w", err)
		}
		payload = conversationEndedWire{EventHeader: ev.EventHeader, Reason: reason}
	}
	env, err := wrap(string(e.Type()), payload)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal event %s: %w", e.Type(), err)
	}
	return json.Marshal(env)
}

// UnmarshalEvent decodes an event produced by MarshalEvent.
func UnmarshalEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("domain: decode event envelope: %w", err)
	}
	var (
		ev  Event
		err error
	)
	switch EventType(env.Type) {
	case EventConversationStarted:
		ev, err = decodeAs[ConversationStarted](env.Data)
	case EventUserMessageAdded:
		ev, err = decodeAs[UserMessageAdded](env.Data)
	case EventBotCompletionRequested:
		ev, err = decodeAs[BotCompletionRequested](env.Data)
	case EventBotResponseAdded:
		ev, err = decodeAs[BotResponseAdded](env.Data)
	case EventBotSummaryRequested:
		ev, err = decodeAs[BotSummaryRequested](env.Data)
	case EventBotSummaryAdded:
		ev, err = decodeAs[BotSummaryAdded](env.Data)
	case EventConversationEnded:
		ev, err = decodeConversationEnded(env.Data)
	default:
		return nil, fmt.Errorf("domain: unknown event type %q: %w", env.Type, ErrInvalidEvent)
	}
	if err != nil {
		return nil, fmt.Errorf("domain: decode event %s: %w", env.Type, err)
	}
	return ev, nil
}

func decodeConversationEnded(data []byte) (Event, error) {
	var w conversationEndedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	var (
		reason EndReason
		err    error
	)
	switch EndReasonType(w.Reason.Type) {
	case ReasonMaxTokensReached:
		reason, err = decodeAs[MaxTokensReached](w.Reason.Data)
	case ReasonBotCompletionError:
		reason, err = decodeAs[BotCompletionError](w.Reason.Data)
	case ReasonBotSummaryError:
		reason, err = decodeAs[BotSummaryError](w.Reason.Data)
	default:
		return nil, fmt.Errorf("unknown end reason %q: %w", w.Reason.Type, ErrInvalidEvent)
	}
	if err != nil {
		return nil, err
	}
	return ConversationEnded{EventHeader: w.EventHeader, Reason: reason}, nil
}

// MarshalCommand encodes a command with its type discriminant.
func MarshalCommand(c Command) ([]byte, error) {
	var payload any = c
	switch cmd := c.(type) {
	case nil:
		return nil, fmt.Errorf("domain: marshal nil command: %w", ErrInvalidCommand)
	case ProcessCompletionResponse:
		if cmd.Outcome == nil {
			return nil, fmt.Errorf("domain: marshal command: missing completion outcome: %w", ErrInvalidCommand)
		}
		outcome, err := wrap(string(cmd.Outcome.OutcomeType()), cmd.Outcome)
		if err != nil {
			return nil, fmt.Errorf("domain: marshal completion outcome: %w", err)
		}
		payload = processCompletionResponseWire{ConversationID: cmd.ConversationID, CorrelationID: cmd.CorrelationID, Outcome: outcome}
	case ProcessSummaryResponse:
		if cmd.Outcome == nil {
			return nil, fmt.Errorf("domain: marshal command: missing summary outcome: %w", ErrInvalidCommand)
		}
		outcome, err := wrap(string(cmd.Outcome.OutcomeType()), cmd.Outcome)
		if err != nil {
			return nil, fmt.Errorf("domain: marshal summary outcome: %w", err)
		}
		payload = processSummaryResponseWire{ConversationID: cmd.ConversationID, CorrelationID: cmd.CorrelationID, Outcome: outcome}
	}
	env, err := wrap(string(c.Type()), payload)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal command %s: %w", c.Type(), err)
	}
	return json.Marshal(env)
}

// UnmarshalCommand decodes a command produced by MarshalCommand.
func UnmarshalCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("domain: decode command envelope: %w: %w", ErrInvalidCommand, err)
	}
	var (
		cmd Command
		err error
	)
	switch CommandType(env.Type) {
	case CommandCreateConversation:
		cmd, err = decodeAs[CreateConversation](env.Data)
	case CommandAddUserMessage:
		cmd, err = decodeAs[AddUserMessage](env.Data)
	case CommandProcessCompletionResponse:
		cmd, err = decodeCompletionResponse(env.Data)
	case CommandProcessSummaryResponse:
		cmd, err = decodeSummaryResponse(env.Data)
	default:
		return nil, fmt.Errorf("domain: unknown command type %q: %w", env.Type, ErrInvalidCommand)
	}
	if err != nil {
		return nil, fmt.Errorf("domain: decode command %s: %w: %w", env.Type, ErrInvalidCommand, err)
	}
	return cmd, nil
}

func decodeCompletionResponse(data []byte) (Command, error) {
	var w processCompletionResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	var (
		outcome CompletionOutcome
		err     error
	)
	switch OutcomeType(w.Outcome.Type) {
	case OutcomeCompletionSuccess:
		outcome, err = decodeAs[CompletionSucceeded](w.Outcome.Data)
	case OutcomeCompletionError:
		outcome, err = decodeAs[CompletionFailed](w.Outcome.Data)
	default:
		return nil, fmt.Errorf("unknown completion outcome %q", w.Outcome.Type)
	}
	if err != nil {
		return nil, err
	}
	return ProcessCompletionResponse{ConversationID: w.ConversationID, CorrelationID: w.CorrelationID, Outcome: outcome}, nil
}

func decodeSummaryResponse(data []byte) (Command, error) {
	var w processSummaryResponseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	var (
		outcome SummaryOutcome
		err     error
	)
	switch OutcomeType(w.Outcome.Type) {
	case OutcomeSummarySuccess:
		outcome, err = decodeAs[SummarySucceeded](w.Outcome.Data)
	case OutcomeSummaryError:
		outcome, err = decodeAs[SummaryFailed](w.Outcome.Data)
	default:
		return nil, fmt.Errorf("unknown summary outcome %q", w.Outcome.Type)
	}
	if err != nil {
		return nil, err
	}
	return ProcessSummaryResponse{ConversationID: w.ConversationID, CorrelationID: w.CorrelationID, Outcome: outcome}, nil
}

func reasonType(r EndReason) EndReasonType {
	if r == nil {
		return ""
	}
	return r.ReasonType()
}

func wrap(typ string, v any) (envelope, error) {
	if typ == "" {
		return envelope{}, fmt.Errorf("missing type discriminant for %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Type: typ, Data: data}, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("empty payload for %T", v)
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
