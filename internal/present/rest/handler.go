// Package rest exposes the read-only whois API: name search over the
// identity graph, queue depth statistics, and a health probe.
package rest

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arrdem/skrode/internal/domain"
	"github.com/arrdem/skrode/internal/present/rest/presenter"
)

const defaultSearchLimit = 10

// Directory is the slice of the identity store the whois API reads.
type Directory interface {
	FindPersonasByName(ctx context.Context, text string, exact bool, limit int) ([]domain.Persona, error)
	AccountsForPersona(ctx context.Context, personaID string) ([]domain.Account, error)
	NamesForPersona(ctx context.Context, personaID string) ([]domain.Name, error)
}

// QueueStats reports the depth of one work queue.
type QueueStats interface {
	Len(ctx context.Context) (int64, error)
}

type Handler struct {
	directory Directory
	queues    map[string]QueueStats
}

func NewHandler(directory Directory, queues map[string]QueueStats) *Handler {
	return &Handler{
		directory: directory,
		queues:    queues,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/whois/:name", h.handleWhois)
	e.GET("/stats/queues", h.handleQueueStats)
	e.GET("/health", h.handleHealth)
}

type accountResponse struct {
	ID         string `json:"id"`
	Service    string `json:"service_id"`
	ExternalID string `json:"external_id"`
}

type nameResponse struct {
	Text string     `json:"text"`
	When *time.Time `json:"when,omitempty"`
}

type personaResponse struct {
	ID       string            `json:"id"`
	Accounts []accountResponse `json:"accounts"`
	Names    []nameResponse    `json:"names"`
}

type whoisResponse struct {
	Query    string            `json:"query"`
	Personas []personaResponse `json:"personas"`
}

func (h *Handler) handleWhois(c echo.Context) error {
	ctx := c.Request().Context()

	name := c.Param("name")
	if name == "" {
		return presenter.BadRequestMessage(c, "name is required")
	}

	exact := c.QueryParam("exact") == "true"
	limit := defaultSearchLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return presenter.BadRequestMessage(c, "limit must be a positive integer")
		}
		limit = parsed
	}

	personas, err := h.directory.FindPersonasByName(ctx, name, exact, limit)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	if len(personas) == 0 {
		return presenter.NotFound(c, "no personas matching "+name)
	}

	response := whoisResponse{Query: name, Personas: []personaResponse{}}
	for _, persona := range personas {
		expanded, err := h.expandPersona(ctx, persona)
		if err != nil {
			return presenter.InternalError(c, err)
		}
		response.Personas = append(response.Personas, expanded)
	}
	return presenter.OK(c, response)
}

func (h *Handler) expandPersona(ctx context.Context, persona domain.Persona) (personaResponse, error) {
	response := personaResponse{
		ID:       persona.ID,
		Accounts: []accountResponse{},
		Names:    []nameResponse{},
	}

	accounts, err := h.directory.AccountsForPersona(ctx, persona.ID)
	if err != nil {
		return personaResponse{}, err
	}
	for _, account := range accounts {
		response.Accounts = append(response.Accounts, accountResponse{
			ID:         account.ID,
			Service:    account.ServiceID,
			ExternalID: account.ExternalID,
		})
	}

	names, err := h.directory.NamesForPersona(ctx, persona.ID)
	if err != nil {
		return personaResponse{}, err
	}
	for _, name := range names {
		response.Names = append(response.Names, nameResponse{Text: name.Text, When: name.When})
	}
	return response, nil
}

func (h *Handler) handleQueueStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats := map[string]int64{}
	for name, queue := range h.queues {
		depth, err := queue.Len(ctx)
		if err != nil {
			return presenter.InternalError(c, err)
		}
		stats[name] = depth
	}
	return presenter.OK(c, stats)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}
