// Package sqsbus carries conversation commands and events over SQS FIFO
// queues. Every message of a conversation shares one message group, so a
// conversation is processed strictly in order while different conversations
// proceed in parallel.
package sqsbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"wisegpt/internal/domain"
)

// TypeAttribute is the message attribute holding the command or event type.
const TypeAttribute = "type"

// sqsAPI is the minimal SQS interface required by the buses.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type queue struct {
	api      sqsAPI
	queueURL string
}

func newQueue(api sqsAPI, queueURL string) (queue, error) {
	if api == nil {
		return queue{}, errors.New("sqsbus: api must not be nil")
	}
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return queue{}, errors.New("sqsbus: queue url must not be empty")
	}
	return queue{api: api, queueURL: queueURL}, nil
}

func (q queue) send(ctx context.Context, groupID, identity, typ string, body []byte) error {
	_, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.queueURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(groupID),
		MessageDeduplicationId: aws.String(deduplicationID(identity)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			TypeAttribute: {DataType: aws.String("String"), StringValue: aws.String(typ)},
		},
	})
	return err
}

// deduplicationID maps an arbitrary identity onto the character set and
// length SQS accepts, deterministically.
func deduplicationID(identity string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(identity)).String()
}

// CommandBus sends commands to the conversation command queue.
type CommandBus struct {
	queue queue
}

func NewCommandBus(api sqsAPI, queueURL string) (*CommandBus, error) {
	q, err := newQueue(api, queueURL)
	if err != nil {
		return nil, err
	}
	return &CommandBus{queue: q}, nil
}

// Send enqueues cmd in the message group of its conversation. Resending the
// same command within the deduplication window is a no-op on the queue.
func (b *CommandBus) Send(ctx context.Context, cmd domain.Command) error {
	if cmd == nil {
		return fmt.Errorf("sqsbus: Send: %w", domain.ErrInvalidCommand)
	}
	conversationID := cmd.TargetConversationID()
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("sqsbus: Send %s: empty conversation id: %w", cmd.Type(), domain.ErrInvalidCommand)
	}
	body, err := domain.MarshalCommand(cmd)
	if err != nil {
		return fmt.Errorf("sqsbus: Send: %w", err)
	}
	if err := b.queue.send(ctx, conversationID, commandIdentity(cmd), string(cmd.Type()), body); err != nil {
		return fmt.Errorf("sqsbus: Send %s: %w", cmd.Type(), err)
	}
	return nil
}

func commandIdentity(cmd domain.Command) string {
	parts := []string{string(cmd.Type()), cmd.TargetConversationID()}
	switch c := cmd.(type) {
	case domain.AddUserMessage:
		parts = append(parts, c.Message.ID)
	case domain.ProcessCompletionResponse:
		parts = append(parts, c.CorrelationID)
	case domain.ProcessSummaryResponse:
		parts = append(parts, c.CorrelationID)
	}
	return strings.Join(parts, "#")
}

// EventBus publishes persisted conversation events.
type EventBus struct {
	queue queue
}

func NewEventBus(api sqsAPI, queueURL string) (*EventBus, error) {
	q, err := newQueue(api, queueURL)
	if err != nil {
		return nil, err
	}
	return &EventBus{queue: q}, nil
}

// Publish enqueues event in the message group of its conversation. The event
// id makes the deduplication id, so re-publishing an event is harmless.
func (b *EventBus) Publish(ctx context.Context, event domain.Event) error {
	if event == nil {
		return fmt.Errorf("sqsbus: Publish: %w", domain.ErrInvalidEvent)
	}
	h := event.Header()
	body, err := domain.MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("sqsbus: Publish: %w", err)
	}
	identity := h.ConversationID + "#" + strconv.Itoa(h.EventID)
	if err := b.queue.send(ctx, h.ConversationID, identity, string(event.Type()), body); err != nil {
		return fmt.Errorf("sqsbus: Publish %s: %w", event.Type(), err)
	}
	return nil
}
