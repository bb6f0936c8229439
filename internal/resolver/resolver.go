// Package resolver implements persona/account entity resolution: service
// registry, account lookup and creation, persona merge, and name history.
// It is the only component permitted to mutate persona/account/name linkage.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/arrdem/skrode/internal/domain"
)

var tracer = otel.Tracer("resolver")

// IdentityStore defines the persistence operations the resolver needs.
type IdentityStore interface {
	GetOrCreateService(ctx context.Context, name string, urls []string) (domain.Service, error)
	GetAccount(ctx context.Context, serviceID, externalID string) (domain.Account, error)
	CreateAccount(ctx context.Context, serviceID, externalID string, personaID *string) (domain.Account, error)
	ReassignAccounts(ctx context.Context, fromPersonaID, toPersonaID string) error
	ReassignPersonaNames(ctx context.Context, fromPersonaID, toPersonaID string) error
	DeletePersona(ctx context.Context, id string) error
	GetOrCreateName(ctx context.Context, name domain.Name) (domain.Name, error)
	FindPersonasByName(ctx context.Context, text string, exact bool, limit int) ([]domain.Persona, error)
}

type Resolver struct {
	store    IdentityStore
	registry *Registry
}

func New(store IdentityStore, registry *Registry) *Resolver {
	return &Resolver{store: store, registry: registry}
}

func (r *Resolver) Registry() *Registry { return r.registry }

// GetOrCreateAccount resolves the account for a (service, external id)
// pair. If the account is absent it is created, with a fresh persona unless
// one was supplied. If the account exists and a different persona was
// supplied, the supplied persona is merged into the account's existing one.
// The existing persona is always the merge target; it survives.
func (r *Resolver) GetOrCreateAccount(ctx context.Context, service domain.Service, externalID string, persona *domain.Persona) (domain.Account, error) {
	account, err := r.store.GetAccount(ctx, service.ID, externalID)
	if err != nil {
		if !domain.ErrNotFound.Is(err) {
			return domain.Account{}, err
		}

		var personaID *string
		if persona != nil {
			personaID = &persona.ID
		}
		return r.store.CreateAccount(ctx, service.ID, externalID, personaID)
	}

	if persona != nil && persona.ID != account.PersonaID {
		if err := r.MergeLeft(ctx, account.PersonaID, persona.ID); err != nil {
			return domain.Account{}, err
		}
	}

	return account, nil
}

// MergeLeft folds the right persona into the left, destroying the right.
// Merging a persona onto itself is a no-op. Each phase commits before the
// next begins: a crash mid-merge leaves the right persona emptied but
// present, which a retry finishes rather than corrupts.
func (r *Resolver) MergeLeft(ctx context.Context, leftID, rightID string) error {
	if leftID == rightID {
		return nil
	}

	ctx, span := tracer.Start(ctx, "MergeLeft")
	span.SetAttributes(
		attribute.String("persona.left", leftID),
		attribute.String("persona.right", rightID),
	)
	defer span.End()

	if err := r.store.ReassignAccounts(ctx, rightID, leftID); err != nil {
		return err
	}
	if err := r.store.ReassignPersonaNames(ctx, rightID, leftID); err != nil {
		return err
	}
	if err := r.store.DeletePersona(ctx, rightID); err != nil {
		return err
	}

	slog.Debug("merged personas",
		slog.String("left", leftID),
		slog.String("right", rightID),
		slog.String("module", "resolver"),
	)
	return nil
}

// InsertPersonaName links a free-form alias directly to a persona.
func (r *Resolver) InsertPersonaName(ctx context.Context, personaID, text string) (domain.Name, error) {
	return r.store.GetOrCreateName(ctx, domain.Name{
		Text:      text,
		PersonaID: &personaID,
	})
}

// InsertAccountName records a screen/display name observation for an
// account. History preserving: a changed name gets a new row, a repeated
// one does not.
func (r *Resolver) InsertAccountName(ctx context.Context, accountID, text string, when time.Time) (domain.Name, error) {
	return r.store.GetOrCreateName(ctx, domain.Name{
		Text:      text,
		AccountID: &accountID,
		When:      &when,
	})
}

// ResolveUser materializes an upstream user payload: the account (creating
// or merging personas as needed) plus its current screen and display names.
func (r *Resolver) ResolveUser(ctx context.Context, service domain.Service, user domain.User, persona *domain.Persona) (domain.Account, error) {
	externalID := domain.ExternalID(service.Name, user.ID)
	account, err := r.GetOrCreateAccount(ctx, service, externalID, persona)
	if err != nil {
		return domain.Account{}, err
	}

	now := time.Now()
	if user.ScreenName != "" {
		if _, err := r.InsertAccountName(ctx, account.ID, user.ScreenName, now); err != nil {
			return domain.Account{}, err
		}
	}
	if user.DisplayName != "" && user.DisplayName != user.ScreenName {
		if _, err := r.InsertAccountName(ctx, account.ID, user.DisplayName, now); err != nil {
			return domain.Account{}, err
		}
	}

	return account, nil
}

// AccountExists reports whether an account for (service, external id) is
// already materialized.
func (r *Resolver) AccountExists(ctx context.Context, service domain.Service, externalID string) bool {
	_, err := r.store.GetAccount(ctx, service.ID, externalID)
	return err == nil
}

// FindPersonasByName searches persona- and account-linked names, closest
// length first.
func (r *Resolver) FindPersonasByName(ctx context.Context, text string, exact bool, limit int) ([]domain.Persona, error) {
	return r.store.FindPersonasByName(ctx, text, exact, limit)
}
