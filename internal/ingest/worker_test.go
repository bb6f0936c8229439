package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/upstream"
)

func newTestWorker(t *testing.T) (*Worker, *fakePostStore, *fakeResolver, *fakeQueue, *fakeAPI) {
	t.Helper()
	ing, posts, res, postQueue, _ := newTestIngester(t)
	api := &fakeAPI{
		users: map[string]domain.User{},
		posts: map[string]domain.Status{},
		errs:  map[string]error{},
	}
	worker := NewWorker(ing, api, time.Millisecond, time.Minute, time.Minute)
	return worker, posts, res, postQueue, api
}

func TestResolvePostHydratesPlaceholder(t *testing.T) {
	ctx := context.Background()
	worker, posts, _, _, api := newTestWorker(t)

	if _, err := posts.PostOrPlaceholder(ctx, testService.ID, "twitter:41"); err != nil {
		t.Fatalf("placeholder failed: %v", err)
	}
	api.posts["41"] = domain.Status{
		ID:        "41",
		User:      &domain.User{ID: "9", ScreenName: "author"},
		Text:      "fetched",
		CreatedAt: time.Now(),
	}

	if err := worker.resolvePost(ctx, "41"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	post := posts.posts["twitter:41"]
	if post.Placeholder() {
		t.Fatalf("expected placeholder hydrated")
	}
	if post.Text == nil || *post.Text != "fetched" {
		t.Fatalf("expected fetched text, got %+v", post)
	}
}

func TestResolvePostSkipsResolved(t *testing.T) {
	ctx := context.Background()
	worker, posts, _, _, api := newTestWorker(t)

	posterID := "account-1"
	when := time.Now()
	if _, err := posts.HydratePost(ctx, testService.ID, "twitter:41", posterID, when, "already here", nil); err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}
	api.errs["41"] = errors.New("should not be fetched")

	if err := worker.resolvePost(ctx, "41"); err != nil {
		t.Fatalf("expected resolved post to be skipped, got %v", err)
	}
}

func TestResolvePostTombstonesGoneContent(t *testing.T) {
	ctx := context.Background()
	worker, posts, _, _, api := newTestWorker(t)

	api.errs["41"] = &upstream.APIError{Kind: upstream.KindForbidden, Status: 403, Msg: "private"}

	if err := worker.resolvePost(ctx, "41"); err != nil {
		t.Fatalf("gone content is terminal, expected nil error, got %v", err)
	}

	post, ok := posts.posts["twitter:41"]
	if !ok || !post.Tombstone {
		t.Fatalf("expected a tombstone for gone content, got %+v", post)
	}
}

func TestResolvePostTransientErrorPropagates(t *testing.T) {
	ctx := context.Background()
	worker, _, _, _, api := newTestWorker(t)

	api.errs["41"] = errors.New("connection reset")

	if err := worker.resolvePost(ctx, "41"); err == nil {
		t.Fatalf("transient errors must propagate so the item is redelivered")
	}
}

func TestResolveUserSkipsGone(t *testing.T) {
	ctx := context.Background()
	worker, _, res, _, api := newTestWorker(t)

	api.errs["7"] = &upstream.APIError{Kind: upstream.KindNotFound, Status: 404, Msg: "no such user"}

	if err := worker.resolveUser(ctx, "7"); err != nil {
		t.Fatalf("gone users are skipped, got %v", err)
	}
	if res.AccountExists(ctx, testService, "twitter:7") {
		t.Fatalf("no account should be created for a gone user")
	}
}

func TestResolveUserMaterializesAccount(t *testing.T) {
	ctx := context.Background()
	worker, _, res, _, api := newTestWorker(t)

	api.users["7"] = domain.User{ID: "7", ScreenName: "arrdem"}

	if err := worker.resolveUser(ctx, "7"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.AccountExists(ctx, testService, "twitter:7") {
		t.Fatalf("expected an account for the fetched user")
	}

	// Known accounts are not refetched.
	api.errs["7"] = errors.New("should not be fetched")
	if err := worker.resolveUser(ctx, "7"); err != nil {
		t.Fatalf("expected known user to be skipped, got %v", err)
	}
}
