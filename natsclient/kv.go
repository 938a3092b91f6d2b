package natsclient

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/pkg/retry"
)

// KVEntry represents a key-value entry with revision metadata
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
	Created  time.Time
}

// KVStore wraps a JetStream KV bucket with timeouts and retry support for
// the connector's durable state (last-sync timestamps).
type KVStore struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
	retry   retry.Config
}

// NewKVStore wraps a KV bucket
func (c *Client) NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{
		bucket:  bucket,
		timeout: 5 * time.Second,
		retry:   retry.DefaultConfig(),
	}
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, kv.timeout)
}

// Get retrieves the entry for a key
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, errors.Wrap(errors.ErrKeyNotFound, "KVStore", "Get", key)
		}
		return nil, errors.WrapTransient(err, "KVStore", "Get", key)
	}

	return &KVEntry{
		Key:      entry.Key(),
		Value:    entry.Value(),
		Revision: entry.Revision(),
		Created:  entry.Created(),
	}, nil
}

// Put stores a value under a key, returning the new revision
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	revision, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, errors.WrapTransient(err, "KVStore", "Put", key)
	}

	return revision, nil
}

// PutWithRetry stores a value with exponential backoff on transient failures
func (kv *KVStore) PutWithRetry(ctx context.Context, key string, value []byte) (uint64, error) {
	return retry.DoWithResult(ctx, kv.retry, func() (uint64, error) {
		revision, err := kv.bucket.Put(ctx, key, value)
		if err != nil {
			if !errors.IsTransient(err) {
				return 0, retry.NonRetryable(err)
			}
			return 0, err
		}
		return revision, nil
	})
}

// Delete removes a key
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, key); err != nil {
		return errors.WrapTransient(err, "KVStore", "Delete", key)
	}
	return nil
}

// IsKVNotFoundError reports whether err indicates a missing key
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return true
	}
	return strings.Contains(err.Error(), "key not found")
}
