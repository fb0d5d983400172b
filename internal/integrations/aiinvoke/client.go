// Package aiinvoke dispatches AI requests to the AI worker function with an
// asynchronous Lambda invocation.
package aiinvoke

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"wisegpt/internal/domain"
)

// lambdaAPI is the minimal Lambda interface required by Trigger.
// *lambda.Client from aws-sdk-go-v2 satisfies this interface.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Trigger implements domain.AITrigger. It returns as soon as Lambda has
// queued the invocation.
type Trigger struct {
	api          lambdaAPI
	functionName string
}

func New(api lambdaAPI, functionName string) (*Trigger, error) {
	if api == nil {
		return nil, errors.New("aiinvoke: api must not be nil")
	}
	functionName = strings.TrimSpace(functionName)
	if functionName == "" {
		return nil, errors.New("aiinvoke: function name must not be empty")
	}
	return &Trigger{api: api, functionName: functionName}, nil
}

func (t *Trigger) Trigger(ctx context.Context, req domain.AIRequest) (string, error) {
	correlationID := newUUID()
	payload, err := json.Marshal(domain.AIInvocation{AIRequest: req, CorrelationID: correlationID})
	if err != nil {
		return "", fmt.Errorf("aiinvoke: marshal invocation: %w", err)
	}

	out, err := t.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(t.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return "", fmt.Errorf("aiinvoke: invoke %s: %w", t.functionName, err)
	}
	// Lambda answers 202 Accepted once an async invocation is queued.
	if out == nil || out.StatusCode != 202 {
		status := int32(0)
		if out != nil {
			status = out.StatusCode
		}
		return "", fmt.Errorf("aiinvoke: invoke %s: unexpected status %d", t.functionName, status)
	}
	return correlationID, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
