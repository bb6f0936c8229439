package main

import (
	"context"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/arrdem/skrode/internal/config"
	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/infra/database"
	"github.com/arrdem/skrode/internal/infra/queue"
	"github.com/arrdem/skrode/internal/infra/repository"
	"github.com/arrdem/skrode/internal/ingest"
	"github.com/arrdem/skrode/internal/resolver"
)

const (
	serviceMicroblog = "twitter"
	serviceProofs    = "keybase"
)

// app holds the shared wiring every subcommand builds on: stores,
// queues, the service registry, and the resolution engine.
type app struct {
	config    config.Config
	db        *gorm.DB
	rdb       *redis.Client
	identity  *repository.IdentityRepository
	posts     *repository.PostRepository
	registry  *resolver.Registry
	resolver  *resolver.Resolver
	postQueue *queue.Queue
	userQueue *queue.Queue
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(cfg.Server.PostgresDsn)
	if err != nil {
		return nil, err
	}

	rdb := database.NewRedis(cfg.Server.RedisAddr, "", cfg.Server.RedisDB)

	identity := repository.NewIdentityRepository(db)
	posts := repository.NewPostRepository(db)

	registry, err := resolver.BuildRegistry(ctx, identity, []resolver.ServiceDef{
		{Name: serviceMicroblog, URLs: []string{cfg.Services.Microblog.BaseURL}},
		{Name: serviceProofs, URLs: []string{cfg.Services.Proofs.BaseURL}},
	})
	if err != nil {
		return nil, err
	}

	return &app{
		config:    cfg,
		db:        db,
		rdb:       rdb,
		identity:  identity,
		posts:     posts,
		registry:  registry,
		resolver:  resolver.New(identity, registry),
		postQueue: queue.New(rdb, cfg.Ingest.PostQueue),
		userQueue: queue.New(rdb, cfg.Ingest.UserQueue),
	}, nil
}

func (a *app) microblogService() (domain.Service, error) {
	service, ok := a.registry.Get(serviceMicroblog)
	if !ok {
		return domain.Service{}, domain.NotFoundError{Resource: "service " + serviceMicroblog}
	}
	return service, nil
}

func (a *app) proofsService() (domain.Service, error) {
	service, ok := a.registry.Get(serviceProofs)
	if !ok {
		return domain.Service{}, domain.NotFoundError{Resource: "service " + serviceProofs}
	}
	return service, nil
}

func (a *app) seenCache() ingest.SeenCache {
	if a.config.Server.MemcachedAddr == "" {
		return nil
	}
	return ingest.NewMemcacheSeenCache(memcache.New(a.config.Server.MemcachedAddr), 3600)
}

// newIngester assembles the shared ingester for the stream controller and
// the deferred workers. The returned cleanup closes the dead letter file.
func (a *app) newIngester() (*ingest.Ingester, func(), error) {
	service, err := a.microblogService()
	if err != nil {
		return nil, nil, err
	}

	deadLetter, err := ingest.OpenDeadLetter(a.config.Ingest.DeadLetterPath)
	if err != nil {
		return nil, nil, err
	}

	ing := ingest.NewIngester(
		service,
		a.resolver,
		a.posts,
		ingest.WrapQueue(a.postQueue),
		ingest.WrapQueue(a.userQueue),
		a.seenCache(),
		deadLetter,
	)
	return ing, func() { deadLetter.Close() }, nil
}
