package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the external catalog service, the collaborator that owns
// listings. The core only needs one question answered: does this user
// currently own this product.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type ownershipResponse struct {
	Owns bool `json:"owns"`
}

func (c *Client) OwnsProduct(ctx context.Context, userID string, productID int64) (bool, error) {
	query := url.Values{"user_id": {userID}}
	endpoint := fmt.Sprintf("%s/internal/listings/%d/ownership?%s", c.baseURL, productID, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build ownership request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var body ownershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode ownership response: %w", err)
	}
	return body.Owns, nil
}
