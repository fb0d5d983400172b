package domain

// AuthorType tells user messages apart from bot messages.
type AuthorType string

const (
	AuthorUser AuthorType = "USER"
	AuthorBot  AuthorType = "BOT"
)

// Author identifies who wrote a message. ID is empty for the bot.
type Author struct {
	Type AuthorType `json:"type"`
	ID   string     `json:"id,omitempty"`
}

// ConversationMessage is a single entry of the conversation history.
type ConversationMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author Author `json:"author"`
	Tokens int    `json:"tokens"`
}

// IsUser reports whether the message was written by a user.
func (m ConversationMessage) IsUser() bool {
	return m.Author.Type == AuthorUser
}

// UserMessage is the inbound shape of a message written by a user.
type UserMessage struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"authorId"`
}

// Summary is the compacted history up to and including LastMessageID.
type Summary struct {
	Text          string `json:"text"`
	LastMessageID string `json:"lastMessageId"`
}

// StatusType is the lifecycle state of a conversation.
type StatusType string

const (
	StatusOngoing StatusType = "ONGOING"
	StatusEnded   StatusType = "ENDED"
	StatusError   StatusType = "ERROR"
)

// Status is the conversation lifecycle status. Message is only set for
// StatusError.
type Status struct {
	Type    StatusType `json:"type"`
	Message string     `json:"message,omitempty"`
}

// AIStatusType is the state of one AI sub-flow.
type AIStatusType string

const (
	AIIdle       AIStatusType = "IDLE"
	AIProcessing AIStatusType = "PROCESSING"
)

// CompletionStatus tracks the in-flight completion request, if any.
type CompletionStatus struct {
	Status        AIStatusType `json:"status"`
	CorrelationID string       `json:"correlationId,omitempty"`
}

// SummaryStatus tracks the in-flight summary request, if any. LastMessageID is
// the newest message the requested summary covers.
type SummaryStatus struct {
	Status        AIStatusType `json:"status"`
	CorrelationID string       `json:"correlationId,omitempty"`
	LastMessageID string       `json:"lastMessageId,omitempty"`
}

// AIStatus composes the two independent AI sub-flows of a conversation.
type AIStatus struct {
	Completion CompletionStatus `json:"completion"`
	Summary    SummaryStatus    `json:"summary"`
}

// Busy reports whether either sub-flow has a request in flight.
func (s AIStatus) Busy() bool {
	return s.Completion.Status == AIProcessing || s.Summary.Status == AIProcessing
}

func idleAIStatus() AIStatus {
	return AIStatus{
		Completion: CompletionStatus{Status: AIIdle},
		Summary:    SummaryStatus{Status: AIIdle},
	}
}
