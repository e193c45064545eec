package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const (
	// Table Storage caps string properties at 64 KiB; stay well below it.
	maxChunkChars = 32 * 1024
	// A single entity is limited to 1 MiB in total.
	maxChunks = 30
)

type tableClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

// Tables stores each key as one entity in an Azure Table. Values are base64
// encoded and split across numbered properties.
type Tables struct {
	table     tableClient
	partition string
}

// NewTables creates a Table Storage backend from a connection string. All
// keys live in the given partition.
func NewTables(connStr, tableName, partition string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{table: svc.NewClient(tableName), partition: partition}, nil
}

// EnsureTable creates the table if it does not exist yet.
func (t *Tables) EnsureTable(ctx context.Context) error {
	_, err := t.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (t *Tables) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := t.table.GetEntity(ctx, t.partition, key, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get entity %s: %w", key, err)
	}
	value, err := decodeValueEntity(resp.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode entity %s: %w", key, err)
	}
	return value, true, nil
}

func (t *Tables) Set(ctx context.Context, key string, value []byte) error {
	payload, err := encodeValueEntity(t.partition, key, value)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", key, err)
	}
	if _, err := t.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return fmt.Errorf("upsert entity %s: %w", key, err)
	}
	return nil
}

func (t *Tables) Remove(ctx context.Context, key string) error {
	if _, err := t.table.DeleteEntity(ctx, t.partition, key, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete entity %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func chunkProperty(i int) string {
	return "Value" + strconv.Itoa(i)
}

func encodeValueEntity(partition, key string, value []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(value)
	parts := (len(encoded) + maxChunkChars - 1) / maxChunkChars
	if parts > maxChunks {
		return nil, fmt.Errorf("value of %d bytes exceeds entity size limit", len(value))
	}
	ent := map[string]any{
		"PartitionKey": partition,
		"RowKey":       key,
		"Parts":        parts,
	}
	for i := 0; i < parts; i++ {
		end := (i + 1) * maxChunkChars
		if end > len(encoded) {
			end = len(encoded)
		}
		ent[chunkProperty(i)] = encoded[i*maxChunkChars : end]
	}
	return sonic.Marshal(ent)
}

func decodeValueEntity(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	n, ok := raw["Parts"].(float64)
	if !ok || n < 0 || n > maxChunks {
		return nil, errors.New("missing or invalid Parts property")
	}
	var encoded []byte
	for i := 0; i < int(n); i++ {
		chunk, ok := raw[chunkProperty(i)].(string)
		if !ok {
			return nil, fmt.Errorf("missing %s property", chunkProperty(i))
		}
		encoded = append(encoded, chunk...)
	}
	return base64.StdEncoding.DecodeString(string(encoded))
}
