package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dynamoEventLedger struct {
	client DynamoAPI
	table  string
}

// NewDynamoEventLedger stores records in a table keyed by event_id.
func NewDynamoEventLedger(client DynamoAPI, table string) EventLedger {
	return &dynamoEventLedger{client: client, table: table}
}

func (l *dynamoEventLedger) Lookup(ctx context.Context, eventID string) (*models.WebhookEventRecord, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.table),
		Key:            map[string]types.AttributeValue{"event_id": &types.AttributeValueMemberS{Value: eventID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %s: %w", eventID, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec models.WebhookEventRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal ledger record: %w", err)
	}
	return &rec, nil
}

func (l *dynamoEventLedger) Record(ctx context.Context, rec *models.WebhookEventRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dynamodb put %s: %w", rec.EventID, err)
	}
	return nil
}
