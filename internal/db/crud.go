package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/undeadops/slugger/internal/store"
)

var _ store.Store = (*Client)(nil)

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: key},
	}
}

func (client *Client) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := client.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(client.Table),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return nil, store.ErrNotFound
	}

	var item redirectItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item %q: %w: %w", key, store.ErrCorrupt, err)
	}

	return []byte(item.Value), nil
}

// Put overwrites whatever is stored under key.
func (client *Client) Put(ctx context.Context, key string, value []byte) error {
	av, err := attributevalue.MarshalMap(redirectItem{
		ID:        key,
		Value:     string(value),
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = client.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(client.Table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

// Delete succeeds whether or not the item exists.
func (client *Client) Delete(ctx context.Context, key string) error {
	_, err := client.DDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(client.Table),
		Key:       keyOf(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return nil
}

// Keys scans the whole table, projecting only the partition key.
func (client *Client) Keys(ctx context.Context) ([]string, error) {
	proj := expression.NamesList(expression.Name("id"))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build projection: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(client.DDB, &dynamodb.ScanInput{
		TableName:                aws.String(client.Table),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})

	keys := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}

		for _, av := range page.Items {
			var item redirectItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil || item.ID == "" {
				client.debug().Err(err).Msg("Skipping unreadable key")
				continue
			}
			keys = append(keys, item.ID)
		}
	}

	return keys, nil
}
