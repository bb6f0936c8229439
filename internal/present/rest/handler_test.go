package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arrdem/skrode/internal/domain"
)

type mockDirectory struct {
	personas map[string][]domain.Persona
	accounts map[string][]domain.Account
	names    map[string][]domain.Name
	gotExact bool
	gotLimit int
}

func (d *mockDirectory) FindPersonasByName(ctx context.Context, text string, exact bool, limit int) ([]domain.Persona, error) {
	d.gotExact = exact
	d.gotLimit = limit
	return d.personas[text], nil
}

func (d *mockDirectory) AccountsForPersona(ctx context.Context, personaID string) ([]domain.Account, error) {
	return d.accounts[personaID], nil
}

func (d *mockDirectory) NamesForPersona(ctx context.Context, personaID string) ([]domain.Name, error) {
	return d.names[personaID], nil
}

type staticQueue int64

func (q staticQueue) Len(ctx context.Context) (int64, error) {
	return int64(q), nil
}

func doRequest(t *testing.T, handler *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWhoisExpandsPersonas(t *testing.T) {
	when := time.Date(2016, 5, 1, 0, 0, 0, 0, time.UTC)
	accountID := "account-1"
	directory := &mockDirectory{
		personas: map[string][]domain.Persona{
			"arrdem": {{ID: "persona-1"}},
		},
		accounts: map[string][]domain.Account{
			"persona-1": {{ID: accountID, ServiceID: "svc-tw", ExternalID: "twitter:arrdem"}},
		},
		names: map[string][]domain.Name{
			"persona-1": {{ID: "name-1", Text: "arrdem", AccountID: &accountID, When: &when}},
		},
	}
	handler := NewHandler(directory, nil)

	rec := doRequest(t, handler, "/whois/arrdem?exact=true&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !directory.gotExact || directory.gotLimit != 5 {
		t.Fatalf("query params not threaded: exact=%v limit=%d", directory.gotExact, directory.gotLimit)
	}

	var response whoisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(response.Personas) != 1 {
		t.Fatalf("expected 1 persona, got %+v", response)
	}
	persona := response.Personas[0]
	if len(persona.Accounts) != 1 || persona.Accounts[0].ExternalID != "twitter:arrdem" {
		t.Fatalf("expected expanded accounts, got %+v", persona)
	}
	if len(persona.Names) != 1 || persona.Names[0].Text != "arrdem" {
		t.Fatalf("expected expanded names, got %+v", persona)
	}
}

func TestWhoisNoMatchesIsNotFound(t *testing.T) {
	handler := NewHandler(&mockDirectory{}, nil)

	rec := doRequest(t, handler, "/whois/nobody")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestWhoisRejectsBadLimit(t *testing.T) {
	handler := NewHandler(&mockDirectory{}, nil)

	rec := doRequest(t, handler, "/whois/arrdem?limit=zero")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueueStats(t *testing.T) {
	handler := NewHandler(&mockDirectory{}, map[string]QueueStats{
		"posts": staticQueue(12),
		"users": staticQueue(0),
	})

	rec := doRequest(t, handler, "/stats/queues")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if stats["posts"] != 12 || stats["users"] != 0 {
		t.Fatalf("wrong depths: %v", stats)
	}
}

func TestHealth(t *testing.T) {
	handler := NewHandler(&mockDirectory{}, nil)

	rec := doRequest(t, handler, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
