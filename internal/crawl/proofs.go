// Package crawl owns the graph-expansion crawlers: identity proofs that
// drive cross-service persona merges, and follower/following snapshots
// that populate the account relationship graph.
package crawl

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/upstream"
)

var tracer = otel.Tracer("crawl")

// IdentityResolver is the slice of the resolution engine the crawlers use.
type IdentityResolver interface {
	GetOrCreateAccount(ctx context.Context, service domain.Service, externalID string, persona *domain.Persona) (domain.Account, error)
	InsertAccountName(ctx context.Context, accountID, text string, when time.Time) (domain.Name, error)
}

// ProofSource fetches cross-service identity proofs for a handle.
type ProofSource interface {
	GetProofs(ctx context.Context, handle string) ([]upstream.Proof, error)
}

// ServiceRegistry resolves service names observed in proofs.
type ServiceRegistry interface {
	Get(name string) (domain.Service, bool)
}

// PersonaSource looks up the persona owning an account.
type PersonaSource interface {
	GetPersona(ctx context.Context, id string) (domain.Persona, error)
}

// ProofCrawler walks published identity proofs and links every proven
// account to the proving account's persona. An account already owned by a
// different persona triggers a merge inside the resolution engine.
type ProofCrawler struct {
	resolver IdentityResolver
	proofs   ProofSource
	personas PersonaSource
	registry ServiceRegistry
	service  domain.Service
}

func NewProofCrawler(res IdentityResolver, proofs ProofSource, personas PersonaSource, registry ServiceRegistry, service domain.Service) *ProofCrawler {
	return &ProofCrawler{
		resolver: res,
		proofs:   proofs,
		personas: personas,
		registry: registry,
		service:  service,
	}
}

// Crawl fetches the proofs for one handle and folds each proven account
// into the handle's persona. Unknown proof services are logged and
// skipped, not failed: a new proof type upstream must not stall the crawl.
func (c *ProofCrawler) Crawl(ctx context.Context, handle string) error {
	ctx, span := tracer.Start(ctx, "CrawlProofs")
	defer span.End()

	account, err := c.resolver.GetOrCreateAccount(ctx, c.service, domain.ExternalID(c.service.Name, handle), nil)
	if err != nil {
		return err
	}
	if _, err := c.resolver.InsertAccountName(ctx, account.ID, handle, time.Now()); err != nil {
		return err
	}

	persona, err := c.personas.GetPersona(ctx, account.PersonaID)
	if err != nil {
		return err
	}

	proofs, err := c.proofs.GetProofs(ctx, handle)
	if err != nil {
		if upstream.IsGone(err) {
			slog.Warn("proof subject gone, skipping",
				slog.String("handle", handle),
				slog.String("module", "crawl"),
			)
			return nil
		}
		return err
	}

	for _, proof := range proofs {
		service, ok := c.registry.Get(proof.Service)
		if !ok {
			slog.Info("unknown proof service, skipping",
				slog.String("service", proof.Service),
				slog.String("handle", proof.Handle),
				slog.String("module", "crawl"),
			)
			continue
		}

		proven, err := c.resolver.GetOrCreateAccount(ctx, service, domain.ExternalID(service.Name, proof.Handle), &persona)
		if err != nil {
			return err
		}
		if _, err := c.resolver.InsertAccountName(ctx, proven.ID, proof.Handle, time.Now()); err != nil {
			return err
		}

		// The proving account's persona may itself have been merged away
		// by the write above. Reload so later proofs fold into the
		// surviving persona.
		persona, err = c.personas.GetPersona(ctx, proven.PersonaID)
		if err != nil {
			return err
		}
	}

	slog.Info("proof crawl complete",
		slog.String("handle", handle),
		slog.Int("proofs", len(proofs)),
		slog.String("module", "crawl"),
	)
	return nil
}
