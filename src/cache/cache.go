package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached read can get even when an
// invalidation is missed.
const DefaultTTL = 5 * time.Minute

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: DefaultTTL}
}

func NewWithTTL(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func EventKey(eventID uint) string {
	return fmt.Sprintf("events:%d", eventID)
}

func TicketTypeKey(ticketTypeID uint) string {
	return fmt.Sprintf("ticket_types:%d", ticketTypeID)
}

func EventTicketTypesKey(eventID uint) string {
	return fmt.Sprintf("events:%d:ticket_types", eventID)
}

// Get loads key into dest. The bool reports a hit. Backend errors are
// returned so callers can decide to fall through to the database.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// A corrupt entry behaves like a miss and gets dropped.
		c.rdb.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate drops the given keys. Errors are logged, not returned, so a
// flaky cache backend never fails a committed purchase.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[cache] failed to invalidate %v: %s\n", keys, err.Error())
	}
}

// InvalidateTicketType drops the ticket type entry together with the
// event-level listings that embed its availability.
func (c *Cache) InvalidateTicketType(ctx context.Context, eventID, ticketTypeID uint) {
	c.Invalidate(ctx,
		TicketTypeKey(ticketTypeID),
		EventKey(eventID),
		EventTicketTypesKey(eventID),
	)
}

// InvalidatePrefix scans for keys under prefix and deletes them in
// batches. Used by admin mutations that touch an unknown set of entries.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			c.Invalidate(ctx, keys...)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("[cache] scan %q failed: %s\n", prefix, err.Error())
	}
	c.Invalidate(ctx, keys...)
}
