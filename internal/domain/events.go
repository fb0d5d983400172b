package domain

// EventType is the discriminant persisted alongside every event.
type EventType string

const (
	EventConversationStarted    EventType = "CONVERSATION_STARTED"
	EventUserMessageAdded       EventType = "USER_MESSAGE_ADDED"
	EventBotCompletionRequested EventType = "BOT_COMPLETION_REQUESTED"
	EventBotResponseAdded       EventType = "BOT_RESPONSE_ADDED"
	EventBotSummaryRequested    EventType = "BOT_SUMMARY_REQUESTED"
	EventBotSummaryAdded        EventType = "BOT_SUMMARY_ADDED"
	EventConversationEnded      EventType = "CONVERSATION_ENDED"
)

// EventHeader is carried by every conversation event.
type EventHeader struct {
	EventID        int    `json:"eventId"`
	ConversationID string `json:"conversationId"`
}

// Header returns the event header.
func (h EventHeader) Header() EventHeader { return h }

// Event is a state transition of a Conversation. The set of implementations is
// closed: only the types in this file satisfy it.
type Event interface {
	Header() EventHeader
	Type() EventType
	isEvent()
}

type ConversationStarted struct {
	EventHeader
	Metadata map[string]string `json:"metadata"`
}

type AddedUserMessage struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	AuthorID          string `json:"authorId"`
	ApproximateTokens int    `json:"approximateTokens"`
}

type UserMessageAdded struct {
	EventHeader
	Message AddedUserMessage `json:"message"`
}

type BotCompletionRequested struct {
	EventHeader
	CorrelationID string `json:"correlationId"`
}

type BotMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// BotResponseAdded records a successful completion. TotalTokensSpent is the
// provider usage of that single request.
type BotResponseAdded struct {
	EventHeader
	CorrelationID    string     `json:"correlationId"`
	Message          BotMessage `json:"message"`
	TotalTokensSpent int        `json:"totalTokensSpent"`
}

type BotSummaryRequested struct {
	EventHeader
	CorrelationID string `json:"correlationId"`
	LastMessageID string `json:"lastMessageId"`
}

// BotSummaryAdded records a successful summarization. TotalTokensSpent is the
// provider usage of that single request.
type BotSummaryAdded struct {
	EventHeader
	CorrelationID    string `json:"correlationId"`
	Summary          string `json:"summary"`
	SummaryTokens    int    `json:"summaryTokens"`
	TotalTokensSpent int    `json:"totalTokensSpent"`
}

type ConversationEnded struct {
	EventHeader
	Reason EndReason `json:"reason"`
}

func (ConversationStarted) Type() EventType    { return EventConversationStarted }
func (UserMessageAdded) Type() EventType       { return EventUserMessageAdded }
func (BotCompletionRequested) Type() EventType { return EventBotCompletionRequested }
func (BotResponseAdded) Type() EventType       { return EventBotResponseAdded }
func (BotSummaryRequested) Type() EventType    { return EventBotSummaryRequested }
func (BotSummaryAdded) Type() EventType        { return EventBotSummaryAdded }
func (ConversationEnded) Type() EventType      { return EventConversationEnded }

func (ConversationStarted) isEvent()    {}
func (UserMessageAdded) isEvent()       {}
func (BotCompletionRequested) isEvent() {}
func (BotResponseAdded) isEvent()       {}
func (BotSummaryRequested) isEvent()    {}
func (BotSummaryAdded) isEvent()        {}
func (ConversationEnded) isEvent()      {}

// EndReasonType is the discriminant of an EndReason.
type EndReasonType string

const (
	ReasonMaxTokensReached   EndReasonType = "MAX_TOKENS_REACHED"
	ReasonBotCompletionError EndReasonType = "BOT_COMPLETION_ERROR"
	ReasonBotSummaryError    EndReasonType = "BOT_SUMMARY_ERROR"
)

// EndReason explains why a conversation ended.
type EndReason interface {
	ReasonType() EndReasonType
	isEndReason()
}

type MaxTokensReached struct {
	Ceiling          int `json:"ceiling"`
	TotalTokensSpent int `json:"totalTokensSpent"`
}

type BotCompletionError struct {
	CorrelationID string `json:"correlationId"`
	Message       string `json:"error"`
}

type BotSummaryError struct {
	CorrelationID string `json:"correlationId"`
	Message       string `json:"error"`
}

func (MaxTokensReached) ReasonType() EndReasonType   { return ReasonMaxTokensReached }
func (BotCompletionError) ReasonType() EndReasonType { return ReasonBotCompletionError }
func (BotSummaryError) ReasonType() EndReasonType    { return ReasonBotSummaryError }

func (MaxTokensReached) isEndReason()   {}
func (BotCompletionError) isEndReason() {}
func (BotSummaryError) isEndReason()    {}
