// Package dynamo stores subscriber documents in a DynamoDB table keyed by id.
package dynamo

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

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
)

// API is the subset of the DynamoDB client used by SubscriberStore.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// SubscriberStore implements analytics.SubscriberStore on DynamoDB.
type SubscriberStore struct {
	db        API
	tableName string
}

// NewSubscriberStore wraps db for the given table.
func NewSubscriberStore(db API, tableName string) (*SubscriberStore, error) {
	if db == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &SubscriberStore{db: db, tableName: tableName}, nil
}

// CreateIfAbsent puts sub guarded by attribute_not_exists(id). When the
// condition fails the existing item is read back with a consistent read.
func (s *SubscriberStore) CreateIfAbsent(
	ctx context.Context,
	sub analytics.Subscriber,
) (analytics.Subscriber, bool, error) {
	av, err := attributevalue.MarshalMap(sub)
	if err != nil {
		return analytics.Subscriber{}, false, fmt.Errorf("marshal subscriber: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err == nil {
		return sub, true, nil
	}
	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return analytics.Subscriber{}, false, fmt.Errorf("putting subscriber in DynamoDB: %w", err)
	}
	existing, err := s.Get(ctx, sub.ID)
	if err != nil {
		return analytics.Subscriber{}, false, err
	}
	return existing, false, nil
}

// Patch sets the non-nil fields of patch on an existing item.
func (s *SubscriberStore) Patch(ctx context.Context, id string, patch analytics.SubscriberPatch) error {
	var (
		sets   []string
		names  = map[string]string{}
		values = map[string]types.AttributeValue{}
	)
	set := func(attr, value string) {
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: value}
	}
	if patch.IP != nil {
		set("ip", *patch.IP)
	}
	if patch.UserAgent != nil {
		set("user_agent", *patch.UserAgent)
	}
	if patch.WelcomeSentAt != nil {
		set("welcome_sent_at", patch.WelcomeSentAt.UTC().Format(time.RFC3339Nano))
	}
	if len(sets) == 0 {
		return nil
	}
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("subscriber %s: %w", id, analytics.ErrNotFound)
		}
		return fmt.Errorf("updating subscriber in DynamoDB: %w", err)
	}
	return nil
}

// Get reads one subscriber with a strongly consistent read.
func (s *SubscriberStore) Get(ctx context.Context, id string) (analytics.Subscriber, error) {
	result, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return analytics.Subscriber{}, fmt.Errorf("getting subscriber from DynamoDB: %w", err)
	}
	if len(result.Item) == 0 {
		return analytics.Subscriber{}, fmt.Errorf("subscriber %s: %w", id, analytics.ErrNotFound)
	}
	var sub analytics.Subscriber
	if err := attributevalue.UnmarshalMap(result.Item, &sub); err != nil {
		return analytics.Subscriber{}, fmt.Errorf("unmarshal subscriber: %w", err)
	}
	return sub, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
