package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/upstream"
)

// Microblog is the slice of the upstream API the workers call.
type Microblog interface {
	GetUser(ctx context.Context, idOrName string) (domain.User, error)
	GetPost(ctx context.Context, id string) (domain.Status, error)
}

// Worker drains a durable queue of deferred references, materializing each
// through the upstream API and the resolution engine. Many workers may run
// against the same queue from independent processes.
type Worker struct {
	ingester *Ingester
	api      Microblog

	poll       time.Duration
	reapEvery  time.Duration
	visibility time.Duration
}

func NewWorker(ingester *Ingester, api Microblog, poll, reapEvery, visibility time.Duration) *Worker {
	return &Worker{
		ingester:   ingester,
		api:        api,
		poll:       poll,
		reapEvery:  reapEvery,
		visibility: visibility,
	}
}

// RunPosts drains the post queue until cancelled.
func (w *Worker) RunPosts(ctx context.Context) error {
	return w.run(ctx, w.ingester.postQueue, w.resolvePost)
}

// RunUsers drains the user queue until cancelled.
func (w *Worker) RunUsers(ctx context.Context) error {
	return w.run(ctx, w.ingester.userQueue, w.resolveUser)
}

func (w *Worker) run(ctx context.Context, queue WorkQueue, resolve func(ctx context.Context, id string) error) error {
	lastReap := time.Now()

	for ctx.Err() == nil {
		if time.Since(lastReap) >= w.reapEvery {
			lastReap = time.Now()
			reaped, err := queue.Reap(ctx, w.visibility)
			if err != nil {
				slog.Error("reap failed",
					slog.String("error", err.Error()),
					slog.String("module", "worker"),
				)
			} else if reaped > 0 {
				slog.Info("reaped stale claims",
					slog.Int("count", reaped),
					slog.String("module", "worker"),
				)
			}
		}

		item, err := queue.Get(ctx)
		if err != nil {
			slog.Error("queue get failed",
				slog.String("error", err.Error()),
				slog.String("module", "worker"),
			)
			item = nil
		}
		if item == nil {
			select {
			case <-time.After(w.poll):
			case <-ctx.Done():
			}
			continue
		}

		err = item.With(ctx, func(id string) error {
			return resolve(ctx, id)
		})
		if err != nil {
			slog.Error("work item aborted",
				slog.String("id", item.Value()),
				slog.String("error", err.Error()),
				slog.String("module", "worker"),
			)
		}
	}
	return nil
}

// resolvePost fetches a deferred post id and ingests the result. Gone or
// forbidden content becomes a tombstone: a deliberate terminal transition,
// not a retry.
func (w *Worker) resolvePost(ctx context.Context, nativeID string) error {
	if w.ingester.HavePost(ctx, nativeID) {
		post, err := w.ingester.posts.GetPost(ctx, w.ingester.service.ID, domain.ExternalID(w.ingester.service.Name, nativeID))
		if err == nil && !post.Placeholder() {
			return nil
		}
	}

	status, err := w.api.GetPost(ctx, nativeID)
	if err != nil {
		if upstream.IsGone(err) {
			slog.Warn("content gone, tombstoning",
				slog.String("id", nativeID),
				slog.String("module", "worker"),
			)
			return w.ingester.HandleDelete(ctx, nativeID)
		}
		return err
	}

	return w.ingester.IngestStatus(ctx, status, 0)
}

// resolveUser fetches a deferred user id and materializes the account.
func (w *Worker) resolveUser(ctx context.Context, nativeID string) error {
	externalID := domain.ExternalID(w.ingester.service.Name, nativeID)
	if w.ingester.resolver.AccountExists(ctx, w.ingester.service, externalID) {
		return nil
	}

	user, err := w.api.GetUser(ctx, nativeID)
	if err != nil {
		if upstream.IsGone(err) {
			slog.Warn("user gone, skipping",
				slog.String("id", nativeID),
				slog.String("module", "worker"),
			)
			return nil
		}
		return err
	}

	_, err = w.ingester.resolver.ResolveUser(ctx, w.ingester.service, user, nil)
	return err
}

// Requeue sweeps placeholder posts back onto the post queue so references
// observed before a crash are eventually resolved. Runs on a fixed
// interval until cancelled.
func (w *Worker) Requeue(ctx context.Context, every time.Duration, batch int) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ids, err := w.ingester.posts.UnresolvedPostIDs(ctx, w.ingester.service.ID, batch)
		if err != nil {
			slog.Error("unresolved sweep failed",
				slog.String("error", err.Error()),
				slog.String("module", "worker"),
			)
			continue
		}
		for _, externalID := range ids {
			if err := w.ingester.postQueue.Put(ctx, domain.NativeID(externalID)); err != nil {
				slog.Error("requeue failed",
					slog.String("id", externalID),
					slog.String("error", err.Error()),
					slog.String("module", "worker"),
				)
			}
		}
	}
}
