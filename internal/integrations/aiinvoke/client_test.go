package aiinvoke

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"wisegpt/internal/domain"
)

type fakeLambda struct {
	out       *lambda.InvokeOutput
	err       error
	lastInput *lambda.InvokeInput
}

func (f *fakeLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.lastInput = in
	return f.out, f.err
}

func stubUUID(t *testing.T, ids ...string) {
	t.Helper()
	prev := newUUID
	i := 0
	newUUID = func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
	t.Cleanup(func() { newUUID = prev })
}

func sampleRequest() domain.AIRequest {
	return domain.AIRequest{
		Type:           domain.AIRequestCompletion,
		ConversationID: "conv-1",
		Conversation: domain.ConversationView{
			Messages: []domain.ConversationMessage{
				{ID: "m1", Text: "hello", Author: domain.Author{Type: domain.AuthorUser, ID: "U1"}, Tokens: 1},
			},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "ai-worker")
	require.Error(t, err)

	_, err = New(&fakeLambda{}, "  ")
	require.Error(t, err)
}

func TestTrigger_InvokesAsynchronously(t *testing.T) {
	stubUUID(t, "corr-abc")
	api := &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 202}}
	trig, err := New(api, "ai-worker")
	require.NoError(t, err)

	id, err := trig.Trigger(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "corr-abc", id)

	require.Equal(t, "ai-worker", aws.ToString(api.lastInput.FunctionName))
	require.Equal(t, types.InvocationTypeEvent, api.lastInput.InvocationType)

	var got domain.AIInvocation
	require.NoError(t, json.Unmarshal(api.lastInput.Payload, &got))
	require.Equal(t, domain.AIInvocation{AIRequest: sampleRequest(), CorrelationID: "corr-abc"}, got)
}

func TestTrigger_FreshCorrelationPerCall(t *testing.T) {
	stubUUID(t, "corr-1", "corr-2")
	trig, err := New(&fakeLambda{out: &lambda.InvokeOutput{StatusCode: 202}}, "ai-worker")
	require.NoError(t, err)

	first, err := trig.Trigger(context.Background(), sampleRequest())
	require.NoError(t, err)
	second, err := trig.Trigger(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestTrigger_Errors(t *testing.T) {
	trig, err := New(&fakeLambda{err: errors.New("throttled")}, "ai-worker")
	require.NoError(t, err)
	_, err = trig.Trigger(context.Background(), sampleRequest())
	require.ErrorContains(t, err, "throttled")

	trig, err = New(&fakeLambda{out: &lambda.InvokeOutput{StatusCode: 200}}, "ai-worker")
	require.NoError(t, err)
	_, err = trig.Trigger(context.Background(), sampleRequest())
	require.ErrorContains(t, err, "unexpected status 200")

	trig, err = New(&fakeLambda{}, "ai-worker")
	require.NoError(t, err)
	_, err = trig.Trigger(context.Background(), sampleRequest())
	require.ErrorContains(t, err, "unexpected status 0")
}
