package store

import (
	"context"
	"errors"
)

// ErrWrite marks persistence failures on Set and Remove. Callers that need to
// distinguish "store is failing writes" from "record absent" test for it with
// errors.Is.
var ErrWrite = errors.New("store write failed")

// Usage is a best-effort estimate of store consumption against its budget.
type Usage struct {
	UsedBytes      int64
	AvailableBytes int64
}

// KV is the durable key-value contract all murmur state is persisted through.
// Get returns (nil, nil) when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	EstimateUsage(ctx context.Context) (Usage, error)
}
