package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

const tableWaitTimeout = 2 * time.Minute

// API is the part of the DynamoDB client the store relies on.
type API interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Client struct {
	DebugMode   bool
	Client      aws.Config
	Table       string
	Region      string
	DDBEndpoint string
	DDB         API
	Logger      *zerolog.Logger
}

// redirectItem is one slug in the table. Value holds the encoded record.
type redirectItem struct {
	ID        string `dynamodbav:"id"`         // slug (partition key)
	Value     string `dynamodbav:"value"`      // JSON redirect record
	UpdatedAt int64  `dynamodbav:"updated_at"` // Unix timestamp of the last write
}

// SetupDB builds the DynamoDB client from the default AWS config chain and
// makes sure the table exists.
func SetupDB(ctx context.Context, c *Client) error {
	cfg, err := config.LoadDefaultConfig(ctx, func(o *config.LoadOptions) error {
		o.Region = c.Region

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}

	c.Client = cfg
	if c.DDBEndpoint != "" {
		// Local endpoints (dynamodb-local, localstack) accept any credentials.
		c.Client.Credentials = credentials.NewStaticCredentialsProvider("dummy1", "dummy2", "dummy3")
		c.DDB = dynamodb.NewFromConfig(c.Client, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(c.DDBEndpoint)
		})
		c.Logger.Info().Str("endpoint", c.DDBEndpoint).Msg("Using custom DynamoDB endpoint")
	} else {
		c.DDB = dynamodb.NewFromConfig(c.Client)
	}

	return c.EnsureTable(ctx)
}

// EnsureTable creates the table when it is missing and waits until it is
// active.
func (c *Client) EnsureTable(ctx context.Context) error {
	_, err := c.DDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.Table),
	})
	if err == nil {
		c.debug().Str("table", c.Table).Msg("Connected to DynamoDB table")
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	c.debug().Str("table", c.Table).Msg("Table doesn't exist, creating")

	// Only key attributes need to be defined in AttributeDefinitions.
	_, err = c.DDB.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.Table),
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       types.KeyTypeHash,
			},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.DDB)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.Table)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("failed waiting for table: %w", err)
	}

	c.debug().Str("table", c.Table).Msg("Table created successfully")
	return nil
}

func (c *Client) debug() *zerolog.Event {
	if !c.DebugMode || c.Logger == nil {
		return nil
	}
	return c.Logger.Debug()
}
