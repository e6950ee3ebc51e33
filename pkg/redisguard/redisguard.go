// Package redisguard keeps a fast-path marker for already-applied paid
// effects. The database row remains the source of truth; the marker only
// short-circuits redundant replays before they reach the database.
package redisguard

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const markerTTL = 7 * 24 * time.Hour

func appliedKey(orderID uint) string {
	return fmt.Sprintf("fulfillment:paid_effects:%d", orderID)
}

// AlreadyApplied reports whether the marker for orderID exists.
func AlreadyApplied(ctx context.Context, rdb *rd.Client, orderID uint) (bool, error) {
	n, err := rdb.Exists(ctx, appliedKey(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkApplied sets the marker after the database transaction committed.
// First call returns true, replays return false.
func MarkApplied(ctx context.Context, rdb *rd.Client, orderID uint) (bool, error) {
	return rdb.SetNX(ctx, appliedKey(orderID), "1", markerTTL).Result()
}
