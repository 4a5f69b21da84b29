package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient resolves profiles against a remote user service. Used when the
// ride API runs split from the identity process.
type HTTPClient struct {
	Endpoint string
	Token    string // service bearer credential forwarded on lookups
	Client   *http.Client
}

func NewHTTPClient(endpoint, token string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (c *HTTPClient) Profile(ctx context.Context, userID string) (Profile, error) {
	url := fmt.Sprintf("%s/api/users/%s", c.Endpoint, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Profile{}, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("user lookup: status %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
