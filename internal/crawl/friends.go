package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/upstream"
)

// SocialGraph fetches follower and following id snapshots.
type SocialGraph interface {
	GetFollowerIDs(ctx context.Context, id string) ([]string, error)
	GetFollowingIDs(ctx context.Context, id string) ([]string, error)
}

// RelationshipStore records directed account edges.
type RelationshipStore interface {
	GetOrCreateAccountRelationship(ctx context.Context, leftID, rightID string, rel domain.RelKind, when time.Time) error
}

// UserSink defers account resolution for ids seen only as graph endpoints.
type UserSink interface {
	Put(ctx context.Context, value string) error
}

// FriendCrawler snapshots one account's follow graph. Edge endpoints are
// materialized as bare accounts; filling in their profiles is the user
// queue's job.
type FriendCrawler struct {
	resolver  IdentityResolver
	graph     SocialGraph
	rels      RelationshipStore
	userQueue UserSink
	service   domain.Service
}

func NewFriendCrawler(res IdentityResolver, graph SocialGraph, rels RelationshipStore, userQueue UserSink, service domain.Service) *FriendCrawler {
	return &FriendCrawler{
		resolver:  res,
		graph:     graph,
		rels:      rels,
		userQueue: userQueue,
		service:   service,
	}
}

// Crawl records follows edges in both directions for one native user id.
func (c *FriendCrawler) Crawl(ctx context.Context, nativeID string) error {
	ctx, span := tracer.Start(ctx, "CrawlFriends")
	defer span.End()

	subject, err := c.resolver.GetOrCreateAccount(ctx, c.service, domain.ExternalID(c.service.Name, nativeID), nil)
	if err != nil {
		return err
	}

	followers, err := c.graph.GetFollowerIDs(ctx, nativeID)
	if err != nil {
		if upstream.IsGone(err) {
			slog.Warn("subject gone, skipping friend crawl",
				slog.String("id", nativeID),
				slog.String("module", "crawl"),
			)
			return nil
		}
		return err
	}
	following, err := c.graph.GetFollowingIDs(ctx, nativeID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, followerID := range followers {
		follower, err := c.link(ctx, followerID)
		if err != nil {
			return err
		}
		if err := c.rels.GetOrCreateAccountRelationship(ctx, follower.ID, subject.ID, domain.RelFollows, now); err != nil {
			return err
		}
	}
	for _, followedID := range following {
		followed, err := c.link(ctx, followedID)
		if err != nil {
			return err
		}
		if err := c.rels.GetOrCreateAccountRelationship(ctx, subject.ID, followed.ID, domain.RelFollows, now); err != nil {
			return err
		}
	}

	slog.Info("friend crawl complete",
		slog.String("id", nativeID),
		slog.Int("followers", len(followers)),
		slog.Int("following", len(following)),
		slog.String("module", "crawl"),
	)
	return nil
}

// link materializes a bare account for an edge endpoint and defers its
// profile fetch to the user queue.
func (c *FriendCrawler) link(ctx context.Context, nativeID string) (domain.Account, error) {
	account, err := c.resolver.GetOrCreateAccount(ctx, c.service, domain.ExternalID(c.service.Name, nativeID), nil)
	if err != nil {
		return domain.Account{}, err
	}
	if err := c.userQueue.Put(ctx, nativeID); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}
