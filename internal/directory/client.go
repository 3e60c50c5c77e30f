package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"ride-hail-mobile/internal/contracts"
)

// Client is the thin REST surface next to the realtime gateway: the active
// ride lookup and counterpart display names. Resolved names are cached for
// the process lifetime and never invalidated; ids do not change owners.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	names map[string]string
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		names:  make(map[string]string),
	}
}

// ActiveRide asks the server which ride the user is currently on. A 404
// means "none" and is not an error.
func (c *Client) ActiveRide(ctx context.Context, userID string) (contracts.ActiveRide, error) {
	url := fmt.Sprintf("%s/rides/active?user_id=%s", c.base, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return contracts.ActiveRide{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return contracts.ActiveRide{}, fmt.Errorf("active ride lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return contracts.ActiveRide{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return contracts.ActiveRide{}, fmt.Errorf("active ride lookup: unexpected status %d", resp.StatusCode)
	}

	var out contracts.ActiveRide
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return contracts.ActiveRide{}, fmt.Errorf("decode active ride: %w", err)
	}
	return out, nil
}

// DisplayName resolves a user's display name by id, hitting the network at
// most once per id.
func (c *Client) DisplayName(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	if name, ok := c.names[id]; ok {
		c.mu.Unlock()
		return name, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s/users/%s/brief", c.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("name lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("name lookup: unexpected status %d", resp.StatusCode)
	}

	var brief struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&brief); err != nil {
		return "", fmt.Errorf("decode brief: %w", err)
	}

	c.mu.Lock()
	c.names[id] = brief.Name
	c.mu.Unlock()
	return brief.Name, nil
}
