// Package ingest owns the live-stream ingestion controller, the deferred
// resolution workers, and the event decomposition they share. Unresolved
// references are never fetched synchronously on the stream path; they
// become placeholder rows plus durable queue items.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/arrdem/skrode/internal/domain"
)

var tracer = otel.Tracer("ingest")

// maxNestingDepth bounds recursive ingestion of nested content. One level
// of reshare-of-reshare unwrapping; anything deeper is logged and dropped.
const maxNestingDepth = 2

// Resolver is the slice of the entity resolution engine the ingesters use.
type Resolver interface {
	ResolveUser(ctx context.Context, service domain.Service, user domain.User, persona *domain.Persona) (domain.Account, error)
	AccountExists(ctx context.Context, service domain.Service, externalID string) bool
}

// PostStore defines the post persistence operations the ingesters use.
type PostStore interface {
	GetPost(ctx context.Context, serviceID, externalID string) (domain.Post, error)
	PostOrPlaceholder(ctx context.Context, serviceID, externalID string) (domain.Post, error)
	HydratePost(ctx context.Context, serviceID, externalID string, posterID string, when time.Time, text string, more *string) (domain.Post, error)
	SetTombstone(ctx context.Context, serviceID, externalID string) (domain.Post, error)
	GetOrCreatePostRelationship(ctx context.Context, leftID, rightID string, rel domain.PostRelKind) error
	CreatePostDistribution(ctx context.Context, postID, recipientID string, dist domain.Distribution) error
	UnresolvedPostIDs(ctx context.Context, serviceID string, limit int) ([]string, error)
}

// WorkQueue is the durable queue contract the ingesters depend on.
type WorkQueue interface {
	Put(ctx context.Context, value string) error
	Get(ctx context.Context) (WorkItem, error)
	Len(ctx context.Context) (int64, error)
	Reap(ctx context.Context, visibility time.Duration) (int, error)
}

// WorkItem is one claimed queue item.
type WorkItem interface {
	Value() string
	With(ctx context.Context, fn func(value string) error) error
}

// Ingester decomposes decoded events into graph writes and deferred work.
type Ingester struct {
	service   domain.Service
	resolver  Resolver
	posts     PostStore
	postQueue WorkQueue
	userQueue WorkQueue
	seen      SeenCache
	deadLet   *DeadLetter
}

func NewIngester(service domain.Service, res Resolver, posts PostStore, postQueue, userQueue WorkQueue, seen SeenCache, deadLetter *DeadLetter) *Ingester {
	if seen == nil {
		seen = NopSeenCache{}
	}
	return &Ingester{
		service:   service,
		resolver:  res,
		posts:     posts,
		postQueue: postQueue,
		userQueue: userQueue,
		seen:      seen,
		deadLet:   deadLetter,
	}
}

// Dispatch handles one decoded event. Errors are per-event: the caller logs
// and moves on, it never tears the stream down for a bad item.
func (i *Ingester) Dispatch(ctx context.Context, event domain.Event) error {
	ctx, span := tracer.Start(ctx, "Dispatch")
	defer span.End()

	switch ev := event.(type) {
	case domain.UserEvent:
		_, err := i.resolver.ResolveUser(ctx, i.service, ev.User, nil)
		return err

	case domain.DeleteEvent:
		// Deletions are handled synchronously to minimize the compliance
		// exposure window.
		return i.HandleDelete(ctx, ev.PostID)

	case domain.StatusEvent:
		return i.IngestStatus(ctx, ev.Status, 0)

	case domain.FriendsEvent:
		for _, id := range ev.UserIDs {
			if err := i.userQueue.Put(ctx, id); err != nil {
				return err
			}
		}
		return nil

	case domain.UnknownEvent:
		if i.deadLet == nil {
			return nil
		}
		return i.deadLet.Append(ev.Raw)

	default:
		return nil
	}
}

// HandleDelete tombstones the post for a native id, creating a placeholder
// if the post was never observed. Idempotent.
func (i *Ingester) HandleDelete(ctx context.Context, nativeID string) error {
	externalID := domain.ExternalID(i.service.Name, nativeID)
	_, err := i.posts.SetTombstone(ctx, i.service.ID, externalID)
	if err != nil {
		return err
	}
	i.seen.MarkSeen(externalID)
	return nil
}

// HavePost reports whether the post for a native id exists locally,
// consulting the shared seen-cache before the store.
func (i *Ingester) HavePost(ctx context.Context, nativeID string) bool {
	externalID := domain.ExternalID(i.service.Name, nativeID)
	if i.seen.Seen(externalID) {
		return true
	}
	_, err := i.posts.GetPost(ctx, i.service.ID, externalID)
	if err != nil {
		return false
	}
	i.seen.MarkSeen(externalID)
	return true
}

// IngestStatus persists one content item and decomposes its references.
// A reshare is unwrapped: the wrapped item is ingested first, then only the
// outer actor is resolved (reshares are not original content). Unresolved
// references become placeholders and queue items, never synchronous
// fetches.
func (i *Ingester) IngestStatus(ctx context.Context, status domain.Status, depth int) error {
	if depth > maxNestingDepth {
		slog.Info("rejecting overly nested content",
			slog.String("id", status.ID),
			slog.Int("depth", depth),
			slog.String("module", "ingest"),
		)
		return nil
	}

	if status.Reshared != nil {
		if err := i.IngestStatus(ctx, *status.Reshared, depth+1); err != nil {
			return err
		}
		if status.User != nil {
			if _, err := i.resolver.ResolveUser(ctx, i.service, *status.User, nil); err != nil {
				return err
			}
		}
		return nil
	}

	if status.User == nil {
		slog.Warn("dropping status with no author",
			slog.String("id", status.ID),
			slog.String("module", "ingest"),
		)
		return nil
	}
	account, err := i.resolver.ResolveUser(ctx, i.service, *status.User, nil)
	if err != nil {
		return err
	}
	posterID := account.ID

	externalID := domain.ExternalID(i.service.Name, status.ID)
	post, err := i.posts.HydratePost(ctx, i.service.ID, externalID, posterID, status.CreatedAt, status.Text, nil)
	if err != nil {
		return err
	}
	i.seen.MarkSeen(externalID)

	if status.ReplyToID != "" {
		if err := i.linkParent(ctx, post, status.ReplyToID, domain.PostRelReplyTo); err != nil {
			return err
		}
	}

	if status.Quoted != nil {
		if err := i.IngestStatus(ctx, *status.Quoted, depth+1); err != nil {
			return err
		}
		quoted, err := i.posts.GetPost(ctx, i.service.ID, domain.ExternalID(i.service.Name, status.Quoted.ID))
		if err == nil {
			if err := i.posts.GetOrCreatePostRelationship(ctx, post.ID, quoted.ID, domain.PostRelQuotes); err != nil {
				return err
			}
		}
	}

	for _, linkedID := range status.LinkedIDs {
		if !i.HavePost(ctx, linkedID) {
			if err := i.postQueue.Put(ctx, linkedID); err != nil {
				return err
			}
		}
	}

	for _, mention := range status.Mentions {
		if err := i.ingestMention(ctx, post, mention); err != nil {
			return err
		}
	}

	return nil
}

// linkParent creates a placeholder for an unknown referenced post, links it,
// and enqueues its id for deferred resolution.
func (i *Ingester) linkParent(ctx context.Context, post domain.Post, parentNativeID string, rel domain.PostRelKind) error {
	parentExternalID := domain.ExternalID(i.service.Name, parentNativeID)

	known := i.HavePost(ctx, parentNativeID)
	parent, err := i.posts.PostOrPlaceholder(ctx, i.service.ID, parentExternalID)
	if err != nil {
		return err
	}
	if err := i.posts.GetOrCreatePostRelationship(ctx, post.ID, parent.ID, rel); err != nil {
		return err
	}

	if !known {
		return i.postQueue.Put(ctx, parentNativeID)
	}
	return nil
}

// ingestMention resolves a mentioned actor when the payload carries enough
// to do so without a network call, and otherwise defers the id. Mentions
// that resolve locally get a "to" distribution record for the post.
func (i *Ingester) ingestMention(ctx context.Context, post domain.Post, mention domain.User) error {
	if mention.ScreenName != "" {
		account, err := i.resolver.ResolveUser(ctx, i.service, mention, nil)
		if err != nil {
			return err
		}
		return i.posts.CreatePostDistribution(ctx, post.ID, account.ID, domain.DistTo)
	}

	externalID := domain.ExternalID(i.service.Name, mention.ID)
	if i.resolver.AccountExists(ctx, i.service, externalID) {
		return nil
	}
	return i.userQueue.Put(ctx, mention.ID)
}
