// Package queue implements a durable at-least-once work queue over redis
// lists. Two lists share one key namespace: the pending list holds items
// waiting for a consumer, the in-flight list holds items claimed but not yet
// acknowledged. A claim is a single server-side LMOVE, so two consumers can
// never observe the same item as fetched simultaneously.
package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// conn is the slice of the redis command surface the queue uses. Satisfied
// by *redis.Client.
type conn interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
}

type Queue struct {
	rdb  conn
	name string
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func newWithConn(rdb conn, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) pendingKey() string  { return q.name }
func (q *Queue) inflightKey() string { return q.name + "/inflight" }
func (q *Queue) claimsKey() string   { return q.name + "/claims" }

// Put appends a payload to the pending list. It scans the current pending
// list first and skips insertion if an identical payload is already queued.
// This bounds duplicate enqueues but is O(n) and only effective while the
// duplicate has not yet been dequeued.
func (q *Queue) Put(ctx context.Context, value string) error {
	pending, err := q.rdb.LRange(ctx, q.pendingKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, existing := range pending {
		if existing == value {
			return nil
		}
	}
	return q.rdb.RPush(ctx, q.pendingKey(), value).Err()
}

// Get claims at most one item, moving it from the head of the pending list
// to the tail of the in-flight list in a single server-side operation.
// Returns nil with no error when the queue is currently empty; never blocks.
func (q *Queue) Get(ctx context.Context) (*Item, error) {
	value, err := q.rdb.LMove(ctx, q.pendingKey(), q.inflightKey(), "LEFT", "RIGHT").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Claim time is advisory: it feeds the reaper, not the no-duplicate
	// guarantee. A crash between the LMOVE and this ZADD is adopted by the
	// next Reap pass.
	err = q.rdb.ZAdd(ctx, q.claimsKey(), redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: value,
	}).Err()
	if err != nil {
		return nil, err
	}

	return &Item{queue: q, value: value}, nil
}

// Len reports pending-list depth. For backpressure and observability, not
// correctness.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.pendingKey()).Result()
}

// Reap returns in-flight items whose claim is older than the visibility
// window to the head of the pending list, and adopts in-flight items with
// no recorded claim (a consumer crashed between claim and bookkeeping).
// Returns the number of items made pending again.
func (q *Queue) Reap(ctx context.Context, visibility time.Duration) (int, error) {
	cutoff := time.Now().Add(-visibility).Unix()
	expired, err := q.rdb.ZRangeByScore(ctx, q.claimsKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil && err != redis.Nil {
		return 0, err
	}

	reaped := 0
	for _, value := range expired {
		removed, err := q.rdb.LRem(ctx, q.inflightKey(), 1, value).Result()
		if err != nil {
			return reaped, err
		}
		if removed > 0 {
			if err := q.rdb.LPush(ctx, q.pendingKey(), value).Err(); err != nil {
				return reaped, err
			}
			reaped++
		}
		if err := q.rdb.ZRem(ctx, q.claimsKey(), value).Err(); err != nil {
			return reaped, err
		}
	}

	inflight, err := q.rdb.LRange(ctx, q.inflightKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return reaped, err
	}
	for _, value := range inflight {
		err := q.rdb.ZScore(ctx, q.claimsKey(), value).Err()
		if err == redis.Nil {
			err = q.rdb.ZAdd(ctx, q.claimsKey(), redis.Z{
				Score:  float64(time.Now().Unix()),
				Member: value,
			}).Err()
		}
		if err != nil && err != redis.Nil {
			return reaped, err
		}
	}

	return reaped, nil
}

// Item is a claimed work item. Exactly one of Complete or Abort must be
// called; With automates the choice.
type Item struct {
	queue *Queue
	value string
}

func (i *Item) Value() string { return i.value }

// Complete acknowledges the item; it is permanently gone.
func (i *Item) Complete(ctx context.Context) error {
	if err := i.queue.rdb.LRem(ctx, i.queue.inflightKey(), 1, i.value).Err(); err != nil {
		return err
	}
	return i.queue.rdb.ZRem(ctx, i.queue.claimsKey(), i.value).Err()
}

// Abort admits a failure to process the item and pushes it back onto the
// pending list's head. Retried items are deliberately delivered ahead of
// untouched ones; consumers must tolerate out-of-order delivery.
func (i *Item) Abort(ctx context.Context) error {
	if err := i.queue.rdb.LRem(ctx, i.queue.inflightKey(), 1, i.value).Err(); err != nil {
		return err
	}
	if err := i.queue.rdb.LPush(ctx, i.queue.pendingKey(), i.value).Err(); err != nil {
		return err
	}
	return i.queue.rdb.ZRem(ctx, i.queue.claimsKey(), i.value).Err()
}

// With runs fn with the item's payload. A nil return completes the item, an
// error or panic aborts it back onto the queue.
func (i *Item) With(ctx context.Context, fn func(value string) error) error {
	defer func() {
		if r := recover(); r != nil {
			_ = i.Abort(ctx)
			panic(r)
		}
	}()

	if err := fn(i.value); err != nil {
		_ = i.Abort(ctx)
		return err
	}
	return i.Complete(ctx)
}
