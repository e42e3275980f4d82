// Package cache provides the fast read/write layer in front of the usage
// ledger. It is an accelerator, never the system of record.
package cache

import (
	"context"
	"fmt"
	"time"
)

// UsageCache stores per-tenant monthly usage counters with a TTL.
//
// Incr on a missing key is a no-op: the next Get miss reseeds the key from
// the ledger within one TTL window, while creating the key from zero would
// under-count for a full TTL. Get returns ok=false on miss or expiry.
// Clear drops every usage key; it exists for tests and operational resets.
type UsageCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	Incr(ctx context.Context, key string, delta int64) error
	Clear(ctx context.Context) error
}

const usageKeyPrefix = "usage:ai:"

// AIUsageKey builds the cache key for a tenant's AI spend in a given month.
func AIUsageKey(tenantSchema string, month time.Time) string {
	return fmt.Sprintf("%s%s:%s", usageKeyPrefix, tenantSchema, month.UTC().Format("2006-01"))
}
