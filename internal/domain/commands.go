package domain

// CommandType is the discriminant used on the command bus.
type CommandType string

const (
	CommandCreateConversation        CommandType = "CREATE_CONVERSATION_COMMAND"
	CommandAddUserMessage            CommandType = "ADD_USER_MESSAGE_COMMAND"
	CommandProcessCompletionResponse CommandType = "PROCESS_COMPLETION_RESPONSE_COMMAND"
	CommandProcessSummaryResponse    CommandType = "PROCESS_SUMMARY_RESPONSE_COMMAND"
)

// Command is an instruction addressed to a single conversation. The set of
// implementations is closed.
type Command interface {
	Type() CommandType
	TargetConversationID() string
	isCommand()
}

type CreateConversation struct {
	ConversationID string            `json:"conversationId"`
	Metadata       map[string]string `json:"metadata"`
	InitialMessage UserMessage       `json:"initialMessage"`
}

type AddUserMessage struct {
	ConversationID string      `json:"conversationId"`
	Message        UserMessage `json:"message"`
}

type ProcessCompletionResponse struct {
	ConversationID string            `json:"conversationId"`
	CorrelationID  string            `json:"correlationId"`
	Outcome        CompletionOutcome `json:"outcome"`
}

type ProcessSummaryResponse struct {
	ConversationID string         `json:"conversationId"`
	CorrelationID  string         `json:"correlationId"`
	Outcome        SummaryOutcome `json:"outcome"`
}

func (CreateConversation) Type() CommandType        { return CommandCreateConversation }
func (AddUserMessage) Type() CommandType            { return CommandAddUserMessage }
func (ProcessCompletionResponse) Type() CommandType { return CommandProcessCompletionResponse }
func (ProcessSummaryResponse) Type() CommandType    { return CommandProcessSummaryResponse }

func (c CreateConversation) TargetConversationID() string        { return c.ConversationID }
func (c AddUserMessage) TargetConversationID() string            { return c.ConversationID }
func (c ProcessCompletionResponse) TargetConversationID() string { return c.ConversationID }
func (c ProcessSummaryResponse) TargetConversationID() string    { return c.ConversationID }

func (CreateConversation) isCommand()        {}
func (AddUserMessage) isCommand()            {}
func (ProcessCompletionResponse) isCommand() {}
func (ProcessSummaryResponse) isCommand()    {}

// OutcomeType is the discriminant of AI response outcomes.
type OutcomeType string

const (
	OutcomeCompletionSuccess OutcomeType = "BOT_COMPLETION_SUCCESS"
	OutcomeCompletionError   OutcomeType = "BOT_COMPLETION_ERROR"
	OutcomeSummarySuccess    OutcomeType = "BOT_SUMMARY_SUCCESS"
	OutcomeSummaryError      OutcomeType = "BOT_SUMMARY_ERROR"
)

// CompletionOutcome is the result of a completion request: CompletionSucceeded
// or CompletionFailed.
type CompletionOutcome interface {
	OutcomeType() OutcomeType
	isCompletionOutcome()
}

// SummaryOutcome is the result of a summary request: SummarySucceeded or
// SummaryFailed.
type SummaryOutcome interface {
	OutcomeType() OutcomeType
	isSummaryOutcome()
}

// CompletionSucceeded carries the bot reply. TotalTokensSpent is the provider
// usage of the request (prompt and completion).
type CompletionSucceeded struct {
	Text             string `json:"text"`
	MessageTokens    int    `json:"messageTokens"`
	TotalTokensSpent int    `json:"totalTokensSpent"`
}

type CompletionFailed struct {
	Message string `json:"message"`
}

// SummarySucceeded carries the new summary. TotalTokensSpent is the provider
// usage of the request (prompt and completion).
type SummarySucceeded struct {
	Summary          string `json:"summary"`
	SummaryTokens    int    `json:"summaryTokens"`
	TotalTokensSpent int    `json:"totalTokensSpent"`
}

type SummaryFailed struct {
	Message string `json:"message"`
}

func (CompletionSucceeded) OutcomeType() OutcomeType { return OutcomeCompletionSuccess }
func (CompletionFailed) OutcomeType() OutcomeType    { return OutcomeCompletionError }
func (SummarySucceeded) OutcomeType() OutcomeType    { return OutcomeSummarySuccess }
func (SummaryFailed) OutcomeType() OutcomeType       { return OutcomeSummaryError }

func (CompletionSucceeded) isCompletionOutcome() {}
func (CompletionFailed) isCompletionOutcome()    {}
func (SummarySucceeded) isSummaryOutcome()       {}
func (SummaryFailed) isSummaryOutcome()          {}
