package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"wisegpt/internal/domain"
)

type mockParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

type transientParams struct {
	*mockParams
	failOnce bool
}

func (p *transientParams) GetParameter(ctx context.Context, name string) (string, error) {
	if p.failOnce {
		p.failOnce = false
		return "", errors.New("temporary ssm failure")
	}
	return p.mockParams.GetParameter(ctx, name)
}

type capturingLLM struct {
	completion domain.ChatCompletion
	err        error
	model      string
	captured   []domain.ChatMessage
	callCount  int
}

func (c *capturingLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage) (domain.ChatCompletion, error) {
	c.callCount++
	c.model = model
	c.captured = msgs
	return c.completion, c.err
}

type recordingSender struct {
	sent []domain.Command
	err  error
}

func (r *recordingSender) Send(_ context.Context, cmd domain.Command) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func defaultParams() *mockParams {
	return &mockParams{
		vals: map[string]string{
			"/prefix/config/openai_model": "gpt-4o-mini",
		},
	}
}

func newTestResponder(t *testing.T, p ParamGetter, llm LLMClient, sender CommandSender) *Responder {
	t.Helper()
	r, err := NewResponder(p, llm, sender, "/prefix/", "Wise", zerolog.Nop())
	require.NoError(t, err)
	return r
}

func invocation(typ domain.AIRequestType) domain.AIInvocation {
	return domain.AIInvocation{
		AIRequest: domain.AIRequest{
			Type:           typ,
			ConversationID: "conv-1",
			Conversation: domain.ConversationView{
				Summary: "Alice asked about Go.",
				Messages: []domain.ConversationMessage{
					{ID: "m1", Text: "what about generics?", Author: domain.Author{Type: domain.AuthorUser, ID: "U1"}, Tokens: 4},
					{ID: "corr-0", Text: "they landed in 1.18", Author: domain.Author{Type: domain.AuthorBot}, Tokens: 5},
				},
			},
		},
		CorrelationID: "corr-1",
	}
}

func TestNewResponder_ValidatesDependencies(t *testing.T) {
	_, err := NewResponder(nil, &capturingLLM{}, &recordingSender{}, "/prefix", "", zerolog.Nop())
	require.Error(t, err)

	_, err = NewResponder(defaultParams(), nil, &recordingSender{}, "/prefix", "", zerolog.Nop())
	require.Error(t, err)

	_, err = NewResponder(defaultParams(), &capturingLLM{}, nil, "/prefix", "", zerolog.Nop())
	require.Error(t, err)

	_, err = NewResponder(defaultParams(), &capturingLLM{}, &recordingSender{}, " / ", "", zerolog.Nop())
	require.Error(t, err)

	r, err := NewResponder(defaultParams(), &capturingLLM{}, &recordingSender{}, "/prefix", " ", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, defaultBotName, r.botName)
}

func TestRespond_CompletionSuccess(t *testing.T) {
	llm := &capturingLLM{completion: domain.ChatCompletion{
		Text:  " sure thing ",
		Usage: domain.TokenUsage{PromptTokens: 40, CompletionTokens: 3, TotalTokens: 43},
	}}
	sender := &recordingSender{}
	r := newTestResponder(t, defaultParams(), llm, sender)

	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestCompletion)))

	require.Equal(t, "gpt-4o-mini", llm.model)
	require.Equal(t, []domain.Command{domain.ProcessCompletionResponse{
		ConversationID: "conv-1",
		CorrelationID:  "corr-1",
		Outcome:        domain.CompletionSucceeded{Text: "sure thing", MessageTokens: 3, TotalTokensSpent: 43},
	}}, sender.sent)
}

func TestRespond_SummarySuccess(t *testing.T) {
	llm := &capturingLLM{completion: domain.ChatCompletion{
		Text:  "Alice likes generics.",
		Usage: domain.TokenUsage{PromptTokens: 50, CompletionTokens: 4, TotalTokens: 54},
	}}
	sender := &recordingSender{}
	r := newTestResponder(t, defaultParams(), llm, sender)

	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestSummary)))

	require.Equal(t, []domain.Command{domain.ProcessSummaryResponse{
		ConversationID: "conv-1",
		CorrelationID:  "corr-1",
		Outcome:        domain.SummarySucceeded{Summary: "Alice likes generics.", SummaryTokens: 4, TotalTokensSpent: 54},
	}}, sender.sent)
	last := llm.captured[len(llm.captured)-1]
	require.Equal(t, domain.RoleUser, last.Role)
	require.Contains(t, last.Content, "Summarize")
}

func TestRespond_UpstreamErrorSendsErrorOutcome(t *testing.T) {
	sender := &recordingSender{}
	r := newTestResponder(t, defaultParams(), &capturingLLM{err: errors.New("openai: status 500")}, sender)

	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestCompletion)))
	require.Len(t, sender.sent, 1)
	cmd := sender.sent[0].(domain.ProcessCompletionResponse)
	require.Equal(t, domain.CompletionFailed{Message: "openai: status 500"}, cmd.Outcome)

	sender = &recordingSender{}
	r = newTestResponder(t, defaultParams(), &capturingLLM{completion: domain.ChatCompletion{Text: "  "}}, sender)
	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestSummary)))
	summary := sender.sent[0].(domain.ProcessSummaryResponse)
	require.IsType(t, domain.SummaryFailed{}, summary.Outcome)
}

func TestRespond_ModelLoadErrorIsRetryable(t *testing.T) {
	llm := &capturingLLM{}
	sender := &recordingSender{}
	r := newTestResponder(t, &mockParams{err: errors.New("ssm unavailable")}, llm, sender)

	err := r.Respond(context.Background(), invocation(domain.AIRequestCompletion))
	expectUsecaseError(t, err, ErrorInternal, "config_load_error")
	require.ErrorContains(t, err, "ssm unavailable")
	require.True(t, Retryable(err))
	require.Zero(t, llm.callCount)
	require.Empty(t, sender.sent)
}

func TestRespond_ModelIsReadOnEveryRequest(t *testing.T) {
	p := &transientParams{mockParams: defaultParams(), failOnce: true}
	llm := &capturingLLM{completion: domain.ChatCompletion{Text: "ok"}}
	sender := &recordingSender{}
	r := newTestResponder(t, p, llm, sender)

	require.Error(t, r.Respond(context.Background(), invocation(domain.AIRequestCompletion)))
	require.Zero(t, llm.callCount)

	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestCompletion)))
	p.vals["/prefix/config/openai_model"] = "gpt-4.1"
	require.NoError(t, r.Respond(context.Background(), invocation(domain.AIRequestCompletion)))
	require.Equal(t, 2, llm.callCount)
	require.Equal(t, 2, p.calls)
	require.Equal(t, "gpt-4.1", llm.model)
	require.Len(t, sender.sent, 2)
}

func TestRespond_SendFailureIsReturned(t *testing.T) {
	r := newTestResponder(t, defaultParams(), &capturingLLM{completion: domain.ChatCompletion{Text: "ok"}}, &recordingSender{err: errors.New("sqs down")})

	err := r.Respond(context.Background(), invocation(domain.AIRequestCompletion))
	expectUsecaseError(t, err, ErrorInternal, "command_send_error")
}

func TestRespond_InvalidInvocation(t *testing.T) {
	sender := &recordingSender{}
	r := newTestResponder(t, defaultParams(), &capturingLLM{}, sender)

	in := invocation(domain.AIRequestCompletion)
	in.CorrelationID = ""
	expectUsecaseError(t, r.Respond(context.Background(), in), ErrorInvalidInput, "missing_invocation_ids")

	in = invocation("TRANSLATE")
	expectUsecaseError(t, r.Respond(context.Background(), in), ErrorInvalidInput, "unknown_request_type")
	require.Empty(t, sender.sent)
}
