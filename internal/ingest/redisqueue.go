package ingest

import (
	"context"
	"time"

	"github.com/arrdem/skrode/internal/infra/queue"
)

// WrapQueue adapts the redis-backed durable queue to the WorkQueue
// contract. The indirection exists so the ingesters and their tests do not
// depend on redis.
func WrapQueue(q *queue.Queue) WorkQueue {
	return queueAdapter{q: q}
}

type queueAdapter struct {
	q *queue.Queue
}

func (a queueAdapter) Put(ctx context.Context, value string) error {
	return a.q.Put(ctx, value)
}

func (a queueAdapter) Get(ctx context.Context) (WorkItem, error) {
	item, err := a.q.Get(ctx)
	if err != nil || item == nil {
		return nil, err
	}
	return item, nil
}

func (a queueAdapter) Len(ctx context.Context) (int64, error) {
	return a.q.Len(ctx)
}

func (a queueAdapter) Reap(ctx context.Context, visibility time.Duration) (int, error) {
	return a.q.Reap(ctx, visibility)
}
