package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/palmistry/internal/palm"
)

const (
	verdictPrefix = "palm:verdict:"
	eventPrefix   = "stripe:event:"
)

// Cache keeps validation verdicts and webhook delivery markers in Redis.
// A nil *Cache is valid: lookups miss and every delivery counts as first.
type Cache struct {
	rdb        *redis.Client
	verdictTTL time.Duration
	eventTTL   time.Duration
}

func New(rdb *redis.Client, verdictTTL, eventTTL time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb, verdictTTL: verdictTTL, eventTTL: eventTTL}
}

// ImageKey identifies an image payload.
func ImageKey(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verdict returns a cached verdict for the image key.
func (c *Cache) Verdict(ctx context.Context, key string) (palm.Verdict, bool, error) {
	if c == nil {
		return palm.Verdict{}, false, nil
	}
	raw, err := c.rdb.Get(ctx, verdictPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return palm.Verdict{}, false, nil
	}
	if err != nil {
		return palm.Verdict{}, false, fmt.Errorf("failed to read verdict: %w", err)
	}
	var v palm.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return palm.Verdict{}, false, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return v, true, nil
}

func (c *Cache) StoreVerdict(ctx context.Context, key string, v palm.Verdict) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	if err := c.rdb.Set(ctx, verdictPrefix+key, raw, c.verdictTTL).Err(); err != nil {
		return fmt.Errorf("failed to store verdict: %w", err)
	}
	return nil
}

// FirstDelivery marks a webhook event id as seen and reports whether this is
// the first time it was seen within the event TTL.
func (c *Cache) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	if c == nil || eventID == "" {
		return true, nil
	}
	ok, err := c.rdb.SetNX(ctx, eventPrefix+eventID, time.Now().Unix(), c.eventTTL).Result()
	if err != nil {
		return true, fmt.Errorf("failed to mark event: %w", err)
	}
	return ok, nil
}

// ForgetDelivery drops the marker so a failed event can be retried by the sender.
func (c *Cache) ForgetDelivery(ctx context.Context, eventID string) error {
	if c == nil || eventID == "" {
		return nil
	}
	return c.rdb.Del(ctx, eventPrefix+eventID).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
