package crawl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/upstream"
)

var (
	proofService    = domain.Service{ID: "svc-kb", Name: "keybase"}
	blogService     = domain.Service{ID: "svc-tw", Name: "twitter"}
	unknownRegistry = registryOf()
)

func registryOf(services ...domain.Service) fakeRegistry {
	reg := fakeRegistry{}
	for _, service := range services {
		reg[service.Name] = service
	}
	return reg
}

type fakeRegistry map[string]domain.Service

func (r fakeRegistry) Get(name string) (domain.Service, bool) {
	service, ok := r[name]
	return service, ok
}

// fakeIdentity mirrors the resolution engine's merge behaviour: the
// existing account's persona always survives a conflicting link.
type fakeIdentity struct {
	accounts map[string]*domain.Account
	personas map[string]domain.Persona
	names    []string
	merges   int
	nextID   int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accounts: map[string]*domain.Account{},
		personas: map[string]domain.Persona{},
	}
}

func (f *fakeIdentity) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeIdentity) GetOrCreateAccount(ctx context.Context, service domain.Service, externalID string, persona *domain.Persona) (domain.Account, error) {
	key := service.ID + "|" + externalID
	if account, ok := f.accounts[key]; ok {
		if persona != nil && persona.ID != account.PersonaID {
			f.merges++
			for _, other := range f.accounts {
				if other.PersonaID == persona.ID {
					other.PersonaID = account.PersonaID
				}
			}
			delete(f.personas, persona.ID)
		}
		return *account, nil
	}

	personaID := ""
	if persona != nil {
		personaID = persona.ID
	} else {
		personaID = f.id("persona")
		f.personas[personaID] = domain.Persona{ID: personaID}
	}
	account := &domain.Account{
		ID:         f.id("account"),
		ServiceID:  service.ID,
		ExternalID: externalID,
		PersonaID:  personaID,
	}
	f.accounts[key] = account
	return *account, nil
}

func (f *fakeIdentity) InsertAccountName(ctx context.Context, accountID, text string, when time.Time) (domain.Name, error) {
	f.names = append(f.names, text)
	return domain.Name{ID: f.id("name"), Text: text, AccountID: &accountID}, nil
}

func (f *fakeIdentity) GetPersona(ctx context.Context, id string) (domain.Persona, error) {
	if persona, ok := f.personas[id]; ok {
		return persona, nil
	}
	return domain.Persona{}, domain.NotFoundError{Resource: "persona"}
}

type fakeProofs struct {
	proofs map[string][]upstream.Proof
	err    error
}

func (f *fakeProofs) GetProofs(ctx context.Context, handle string) ([]upstream.Proof, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.proofs[handle], nil
}

func TestProofCrawlMergesAcrossServices(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()

	// The twitter account exists already, under its own persona.
	existing, err := identity.GetOrCreateAccount(ctx, blogService, "twitter:arrdem", nil)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	proofs := &fakeProofs{proofs: map[string][]upstream.Proof{
		"arrdem": {{Service: "twitter", Handle: "arrdem"}},
	}}
	crawler := NewProofCrawler(identity, proofs, identity, registryOf(blogService), proofService)

	if err := crawler.Crawl(ctx, "arrdem"); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if identity.merges != 1 {
		t.Fatalf("expected one merge, got %d", identity.merges)
	}
	keybase := identity.accounts["svc-kb|keybase:arrdem"]
	twitter := identity.accounts["svc-tw|twitter:arrdem"]
	if keybase == nil || twitter == nil {
		t.Fatalf("expected accounts on both services")
	}
	if keybase.PersonaID != twitter.PersonaID {
		t.Fatalf("expected one shared persona, got %s and %s", keybase.PersonaID, twitter.PersonaID)
	}
	if twitter.PersonaID != existing.PersonaID {
		t.Fatalf("the existing persona must survive the merge")
	}
	if len(identity.personas) != 1 {
		t.Fatalf("expected the losing persona deleted, have %d", len(identity.personas))
	}
}

func TestProofCrawlSkipsUnknownServices(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()

	proofs := &fakeProofs{proofs: map[string][]upstream.Proof{
		"arrdem": {{Service: "finger", Handle: "arrdem"}},
	}}
	crawler := NewProofCrawler(identity, proofs, identity, unknownRegistry, proofService)

	if err := crawler.Crawl(ctx, "arrdem"); err != nil {
		t.Fatalf("unknown proof services must not fail the crawl: %v", err)
	}
	if len(identity.accounts) != 1 {
		t.Fatalf("expected only the subject account, got %d", len(identity.accounts))
	}
}

func TestProofCrawlSkipsGoneSubject(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()

	proofs := &fakeProofs{err: &upstream.APIError{Kind: upstream.KindNotFound, Status: 404, Msg: "no such user"}}
	crawler := NewProofCrawler(identity, proofs, identity, unknownRegistry, proofService)

	if err := crawler.Crawl(ctx, "ghost"); err != nil {
		t.Fatalf("gone subjects are skipped, got %v", err)
	}
}

type fakeGraph struct {
	followers []string
	following []string
}

func (f *fakeGraph) GetFollowerIDs(ctx context.Context, id string) ([]string, error) {
	return f.followers, nil
}

func (f *fakeGraph) GetFollowingIDs(ctx context.Context, id string) ([]string, error) {
	return f.following, nil
}

type edge struct {
	left, right string
	rel         domain.RelKind
}

type fakeRels struct {
	edges []edge
}

func (f *fakeRels) GetOrCreateAccountRelationship(ctx context.Context, leftID, rightID string, rel domain.RelKind, when time.Time) error {
	f.edges = append(f.edges, edge{left: leftID, right: rightID, rel: rel})
	return nil
}

type fakeSink struct {
	ids []string
}

func (f *fakeSink) Put(ctx context.Context, value string) error {
	f.ids = append(f.ids, value)
	return nil
}

func TestFriendCrawlRecordsDirectedEdges(t *testing.T) {
	ctx := context.Background()
	identity := newFakeIdentity()
	graph := &fakeGraph{followers: []string{"2"}, following: []string{"3"}}
	rels := &fakeRels{}
	sink := &fakeSink{}

	crawler := NewFriendCrawler(identity, graph, rels, sink, blogService)
	if err := crawler.Crawl(ctx, "1"); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	subject := identity.accounts["svc-tw|twitter:1"]
	follower := identity.accounts["svc-tw|twitter:2"]
	followed := identity.accounts["svc-tw|twitter:3"]
	if subject == nil || follower == nil || followed == nil {
		t.Fatalf("expected all endpoints materialized")
	}

	if len(rels.edges) != 2 {
		t.Fatalf("expected 2 edges, got %v", rels.edges)
	}
	if rels.edges[0] != (edge{left: follower.ID, right: subject.ID, rel: domain.RelFollows}) {
		t.Fatalf("wrong follower edge: %+v", rels.edges[0])
	}
	if rels.edges[1] != (edge{left: subject.ID, right: followed.ID, rel: domain.RelFollows}) {
		t.Fatalf("wrong following edge: %+v", rels.edges[1])
	}

	if len(sink.ids) != 2 {
		t.Fatalf("expected both endpoints deferred to the user queue, got %v", sink.ids)
	}
}
