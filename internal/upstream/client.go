// Package upstream implements HTTP and websocket clients for the external
// services skrode ingests: the microblogging platform and the
// proof-of-identity service.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/arrdem/skrode/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second

	// Rate-limit recovery is linear additive: each consecutive limited
	// response waits one more step before retrying.
	rateLimitStep  = 5 * time.Second
	rateLimitTries = 6
)

// Client talks to the microblogging platform's REST API. User lookups are
// cached in process with a TTL; posts are not cached (the store is the
// authority for those).
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	baseURL   string
	streamURL string
	token     string
	userAgent string
}

func NewClient(baseURL, streamURL, token string) *Client {
	httpClient := &http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		baseURL:   baseURL,
		streamURL: streamURL,
		token:     token,
		userAgent: "skrode/1.0",
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) getJSON(ctx context.Context, path string, response any) error {
	var lastErr error
	for attempt := 0; attempt < rateLimitTries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * rateLimitStep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.getJSONOnce(ctx, path, response)
		if !IsRateLimited(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) getJSONOnce(ctx context.Context, path string, response any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &APIError{Kind: KindNotFound, Status: resp.StatusCode, Msg: path}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &APIError{Kind: KindForbidden, Status: resp.StatusCode, Msg: path}
	case http.StatusTooManyRequests:
		return &APIError{Kind: KindRateLimited, Status: resp.StatusCode, Msg: path}
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// GetUser fetches a user by native id or screen name.
func (c *Client) GetUser(ctx context.Context, idOrName string) (domain.User, error) {
	cacheKey := "user:" + idOrName
	if x, found := c.cache.Get(cacheKey); found {
		return x.(domain.User), nil
	}

	var user domain.User
	err := c.getJSON(ctx, "/users/"+idOrName, &user)
	if err != nil {
		return domain.User{}, err
	}

	c.cache.Set(cacheKey, user, cache.DefaultExpiration)
	return user, nil
}

// GetPost fetches a post by native id.
func (c *Client) GetPost(ctx context.Context, id string) (domain.Status, error) {
	var status domain.Status
	err := c.getJSON(ctx, "/posts/"+id, &status)
	if err != nil {
		return domain.Status{}, err
	}
	return status, nil
}

type idsPage struct {
	IDs []json.Number `json:"ids"`
}

// GetFollowerIDs returns the native ids of the user's followers.
func (c *Client) GetFollowerIDs(ctx context.Context, id string) ([]string, error) {
	return c.getIDs(ctx, "/users/"+id+"/followers")
}

// GetFollowingIDs returns the native ids the user follows.
func (c *Client) GetFollowingIDs(ctx context.Context, id string) ([]string, error) {
	return c.getIDs(ctx, "/users/"+id+"/following")
}

func (c *Client) getIDs(ctx context.Context, path string) ([]string, error) {
	var page idsPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.IDs))
	for _, id := range page.IDs {
		ids = append(ids, id.String())
	}
	return ids, nil
}
