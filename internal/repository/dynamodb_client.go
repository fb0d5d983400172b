package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"wisegpt/internal/domain"
)

// DynamoDB caps a transaction at 100 items.
const maxEventsPerAppend = 100

// dynamodbAPI is the minimal DynamoDB interface required by EventStore.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// EventStore keeps one item per conversation event, keyed by conversation
// and event id.
type EventStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
}

type eventItem struct {
	PK             string `dynamodbav:"PK"`
	SK             int    `dynamodbav:"SK"`
	ConversationID string `dynamodbav:"conversationId"`
	Type           string `dynamodbav:"type"`
	Data           string `dynamodbav:"data"`
	RecordedAt     string `dynamodbav:"recordedAt"`
	TTL            int64  `dynamodbav:"ttl,omitempty"`
}

var now = time.Now

// New creates an EventStore. A zero ttl keeps events forever.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*EventStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl < 0 {
		return nil, errors.New("repository: ttl must not be negative")
	}
	return &EventStore{api: api, tableName: tableName, ttl: ttl}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// Load returns the full event log of a conversation ordered by event id.
// An unknown conversation yields an empty log.
func (s *EventStore) Load(ctx context.Context, conversationID string) ([]domain.Event, error) {
	paginator := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: convPK(conversationID)},
		},
		ConsistentRead:   aws.Bool(true),
		ScanIndexForward: aws.Bool(true),
	})

	var events []domain.Event
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: Load query: %w", err)
		}
		var items []eventItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("repository: Load unmarshal: %w", err)
		}
		for _, item := range items {
			e, err := domain.UnmarshalEvent([]byte(item.Data))
			if err != nil {
				return nil, fmt.Errorf("repository: Load event %d: %w", item.SK, err)
			}
			if e.Header().EventID != item.SK {
				return nil, fmt.Errorf("repository: Load event %d: payload carries id %d: %w", item.SK, e.Header().EventID, domain.ErrInvalidEvent)
			}
			events = append(events, e)
		}
	}
	return events, nil
}

// Append writes events in a single transaction. Every event id must be free;
// otherwise nothing is written and domain.ErrConcurrentModification is
// returned.
func (s *EventStore) Append(ctx context.Context, conversationID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if len(events) > maxEventsPerAppend {
		return fmt.Errorf("repository: Append: %d events exceed the limit of %d", len(events), maxEventsPerAppend)
	}

	recordedAt := now().UTC()
	writes := make([]types.TransactWriteItem, 0, len(events))
	for _, e := range events {
		item, err := s.eventToItem(conversationID, e, recordedAt)
		if err != nil {
			return fmt.Errorf("repository: Append: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(SK)"),
			},
		})
	}

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: Append %s: %w", conversationID, domain.ErrConcurrentModification)
		}
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

func (s *EventStore) eventToItem(conversationID string, e domain.Event, recordedAt time.Time) (map[string]types.AttributeValue, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event: %w", domain.ErrInvalidEvent)
	}
	h := e.Header()
	if h.ConversationID != conversationID {
		return nil, fmt.Errorf("event %d belongs to %q: %w", h.EventID, h.ConversationID, domain.ErrInvalidEvent)
	}
	data, err := domain.MarshalEvent(e)
	if err != nil {
		return nil, err
	}
	item := eventItem{
		PK:             convPK(conversationID),
		SK:             h.EventID,
		ConversationID: conversationID,
		Type:           string(e.Type()),
		Data:           string(data),
		RecordedAt:     recordedAt.Format(time.RFC3339Nano),
	}
	if s.ttl > 0 {
		item.TTL = recordedAt.Add(s.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal event %d: %w", h.EventID, err)
	}
	return av, nil
}

func isConditionFailure(err error) bool {
	var conditionErr *types.ConditionalCheckFailedException
	if errors.As(err, &conditionErr) {
		return true
	}
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	for _, reason := range cancelled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
