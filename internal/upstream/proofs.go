package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Proof is one cryptographically proven (service, handle) pair published by
// a proof-of-identity service user.
type Proof struct {
	Service string `json:"proof_type"`
	Handle  string `json:"nametag"`
}

// ProofsClient talks to the proof-of-identity service. Proofs are the only
// upstream source authoritative enough to drive persona merges.
type ProofsClient struct {
	client  *http.Client
	baseURL string
}

func NewProofsClient(baseURL string) *ProofsClient {
	return &ProofsClient{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
}

type proofsResponse struct {
	Username string  `json:"username"`
	Proofs   []Proof `json:"proofs"`
}

// GetProofs fetches the published proofs for a handle.
func (c *ProofsClient) GetProofs(ctx context.Context, handle string) ([]Proof, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+handle+"/proofs", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &APIError{Kind: KindNotFound, Status: resp.StatusCode, Msg: handle}
	case http.StatusForbidden:
		return nil, &APIError{Kind: KindForbidden, Status: resp.StatusCode, Msg: handle}
	case http.StatusTooManyRequests:
		return nil, &APIError{Kind: KindRateLimited, Status: resp.StatusCode, Msg: handle}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body proofsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	return body.Proofs, nil
}
