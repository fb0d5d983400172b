package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventCodec_PersistedLogReplaysToSameState(t *testing.T) {
	settings := testSettings(fakeEstimator{"big": 4000})
	settings.Limits.Summary = SummaryThresholds{MinTokens: 3000, MinUserMessages: 2}
	settings.Limits.MaxTokensSpent = 5000
	live := mustCreate(t, settings)
	trigger := &fakeTrigger{}
	ctx := context.Background()

	require.NoError(t, live.AddUserMessage(ctx, userMsg("m1", "hi"), trigger))
	require.NoError(t, live.ProcessCompletionResponse(ctx, "corr-1", CompletionSucceeded{Text: "hello", MessageTokens: 1, TotalTokensSpent: 10}, trigger))
	require.NoError(t, live.AddUserMessage(ctx, userMsg("m2", "big"), trigger))
	require.NoError(t, live.ProcessSummaryResponse(ctx, "corr-2", SummarySucceeded{Summary: "greetings", SummaryTokens: 2, TotalTokensSpent: 4100}, trigger))
	require.NoError(t, live.ProcessCompletionResponse(ctx, "corr-3", CompletionSucceeded{Text: "ok", MessageTokens: 1, TotalTokensSpent: 900}, trigger))
	require.Equal(t, StatusEnded, live.Status().Type)

	decoded := make([]Event, 0, len(live.Events()))
	for _, e := range live.Events() {
		raw, err := MarshalEvent(e)
		require.NoError(t, err)
		back, err := UnmarshalEvent(raw)
		require.NoError(t, err)
		require.Equal(t, e, back)
		decoded = append(decoded, back)
	}

	replayed := replay(t, "conv-1", settings, decoded)
	require.Equal(t, live.State(), replayed.State())
}

func TestEventCodec_EndReasons(t *testing.T) {
	h := EventHeader{EventID: 4, ConversationID: "conv-1"}
	for _, reason := range []EndReason{
		MaxTokensReached{Ceiling: 10, TotalTokensSpent: 12},
		BotCompletionError{CorrelationID: "c", Message: "boom"},
		BotSummaryError{CorrelationID: "s", Message: "bang"},
	} {
		raw, err := MarshalEvent(ConversationEnded{EventHeader: h, Reason: reason})
		require.NoError(t, err)
		back, err := UnmarshalEvent(raw)
		require.NoError(t, err)
		require.Equal(t, reason, back.(ConversationEnded).Reason)
	}

	_, err := MarshalEvent(ConversationEnded{EventHeader: h})
	require.Error(t, err)
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"SOMETHING_ELSE","data":{}}`))
	require.ErrorIs(t, err, ErrInvalidEvent)

	_, err = UnmarshalEvent([]byte(`{"type":"CONVERSATION_ENDED","data":{"eventId":1,"reason":{"type":"BORED","data":{}}}}`))
	require.ErrorIs(t, err, ErrInvalidEvent)

	_, err = UnmarshalEvent([]byte(`not-json`))
	require.Error(t, err)

	_, err = MarshalEvent(nil)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestCommandCodec(t *testing.T) {
	cmds := []Command{
		CreateConversation{ConversationID: "conv-1", Metadata: map[string]string{"channel": "C1"}, InitialMessage: UserMessage{ID: "m1", Text: "hello", AuthorID: "U1"}},
		AddUserMessage{ConversationID: "conv-1", Message: UserMessage{ID: "m2", Text: "again", AuthorID: "U2"}},
		ProcessCompletionResponse{ConversationID: "conv-1", CorrelationID: "corr-1", Outcome: CompletionSucceeded{Text: "hi", MessageTokens: 3, TotalTokensSpent: 5}},
		ProcessCompletionResponse{ConversationID: "conv-1", CorrelationID: "corr-1", Outcome: CompletionFailed{Message: "boom"}},
		ProcessSummaryResponse{ConversationID: "conv-1", CorrelationID: "corr-2", Outcome: SummarySucceeded{Summary: "s", SummaryTokens: 1, TotalTokensSpent: 9}},
		ProcessSummaryResponse{ConversationID: "conv-1", CorrelationID: "corr-2", Outcome: SummaryFailed{Message: "bang"}},
	}
	for _, cmd := range cmds {
		raw, err := MarshalCommand(cmd)
		require.NoError(t, err)
		back, err := UnmarshalCommand(raw)
		require.NoError(t, err)
		require.Equal(t, cmd, back)
	}
}

func TestCommandCodec_Errors(t *testing.T) {
	_, err := UnmarshalCommand([]byte(`{"type":"DELETE_EVERYTHING","data":{}}`))
	require.ErrorIs(t, err, ErrInvalidCommand)

	_, err = UnmarshalCommand([]byte(`{"type":"PROCESS_SUMMARY_RESPONSE_COMMAND","data":{"conversationId":"c","outcome":{"type":"BOT_COMPLETION_SUCCESS","data":{}}}}`))
	require.ErrorIs(t, err, ErrInvalidCommand)

	_, err = UnmarshalCommand([]byte(`{`))
	require.ErrorIs(t, err, ErrInvalidCommand)

	_, err = MarshalCommand(ProcessCompletionResponse{ConversationID: "c"})
	require.ErrorIs(t, err, ErrInvalidCommand)
}
