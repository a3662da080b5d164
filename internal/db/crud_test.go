package db

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undeadops/slugger/internal/store"
)

// fakeDDB keeps items in memory and serves Scan in pages of pageSize.
type fakeDDB struct {
	items       map[string]map[string]types.AttributeValue
	tableExists bool
	pageSize    int
	scans       int
	failWith    error
	lastGet     *dynamodb.GetItemInput
	lastScan    *dynamodb.ScanInput
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{
		items:       map[string]map[string]types.AttributeValue{},
		tableExists: true,
		pageSize:    100,
	}
}

func (f *fakeDDB) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if !f.tableExists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil
}

func (f *fakeDDB) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.tableExists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = in
	if f.failWith != nil {
		return nil, f.failWith
	}
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	delete(f.items, in.Key["id"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDDB) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans++
	f.lastScan = in
	if f.failWith != nil {
		return nil, f.failWith
	}

	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := in.ExclusiveStartKey["id"].(*types.AttributeValueMemberS).Value
		start = sort.SearchStrings(ids, last) + 1
	}
	end := min(start+f.pageSize, len(ids))

	out := &dynamodb.ScanOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, map[string]types.AttributeValue{"id": f.items[id]["id"]})
	}
	if end < len(ids) {
		out.LastEvaluatedKey = keyOf(ids[end-1])
	}
	return out, nil
}

func newTestClient(ddb *fakeDDB) *Client {
	logger := zerolog.Nop()
	return &Client{
		Table:  "slugs",
		DDB:    ddb,
		Logger: &logger,
	}
}

func TestClient_PutGet(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	client := newTestClient(ddb)

	require.NoError(t, client.Put(ctx, "go", []byte(`{"url":"https://golang.org"}`)))
	require.NoError(t, client.Put(ctx, "go", []byte(`{"url":"https://go.dev"}`)))

	value, err := client.Get(ctx, "go")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://go.dev"}`, string(value))

	require.NotNil(t, ddb.lastGet)
	assert.True(t, aws.ToBool(ddb.lastGet.ConsistentRead))
	assert.Equal(t, "slugs", aws.ToString(ddb.lastGet.TableName))
}

func TestClient_Get_Missing(t *testing.T) {
	_, err := newTestClient(newFakeDDB()).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClient_Get_UnreadableItem(t *testing.T) {
	ddb := newFakeDDB()
	ddb.items["bad"] = map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: "bad"},
		"value": &types.AttributeValueMemberBOOL{Value: true},
	}

	_, err := newTestClient(ddb).Get(context.Background(), "bad")
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestClient_Delete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newFakeDDB())

	require.NoError(t, client.Put(ctx, "go", []byte("v")))
	require.NoError(t, client.Delete(ctx, "go"))
	require.NoError(t, client.Delete(ctx, "go"))

	_, err := client.Get(ctx, "go")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClient_Keys_DrainsAllPages(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	ddb.pageSize = 2
	client := newTestClient(ddb)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, client.Put(ctx, k, []byte(k)))
	}

	keys, err := client.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, keys)
	assert.Equal(t, 3, ddb.scans)
	assert.NotEmpty(t, aws.ToString(ddb.lastScan.ProjectionExpression))
}

func TestClient_Keys_Empty(t *testing.T) {
	keys, err := newTestClient(newFakeDDB()).Keys(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestClient_BackendErrors(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	ddb.failWith = errors.New("throttled")
	client := newTestClient(ddb)

	_, err := client.Get(ctx, "go")
	assert.ErrorIs(t, err, ddb.failWith)
	assert.NotErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, client.Put(ctx, "go", []byte("v")), ddb.failWith)
	assert.ErrorIs(t, client.Delete(ctx, "go"), ddb.failWith)

	_, err = client.Keys(ctx)
	assert.ErrorIs(t, err, ddb.failWith)
}

func TestClient_EnsureTable(t *testing.T) {
	ctx := context.Background()

	t.Run("existing table", func(t *testing.T) {
		ddb := newFakeDDB()
		require.NoError(t, newTestClient(ddb).EnsureTable(ctx))
	})

	t.Run("creates missing table", func(t *testing.T) {
		ddb := newFakeDDB()
		ddb.tableExists = false

		require.NoError(t, newTestClient(ddb).EnsureTable(ctx))
		assert.True(t, ddb.tableExists)
	})

	t.Run("describe failure", func(t *testing.T) {
		ddb := newFakeDDB()
		ddb.failWith = errors.New("access denied")

		err := newTestClient(ddb).EnsureTable(ctx)
		assert.ErrorIs(t, err, ddb.failWith)
	})
}
