package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client provides access to the lobby HTTP API, used before and around the
// websocket connection: minting identities and validating stored sessions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new lobby API client. baseURL should be the base URL
// of the API, e.g. "http://localhost:8765/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// CreateLobby creates a lobby and returns its join code and admin identity.
func (c *Client) CreateLobby(ctx context.Context, req CreateLobbyRequest) (*LobbyInfo, error) {
	var resp LobbyInfo
	if err := c.post(ctx, "/create-lobby", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinLobby joins a lobby by code and returns the player identity to use in
// the websocket handshake.
func (c *Client) JoinLobby(ctx context.Context, req JoinLobbyRequest) (*JoinLobbyResponse, error) {
	var resp JoinLobbyResponse
	if err := c.post(ctx, "/join-lobby", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckSessions reports which of the given stored sessions the server still
// recognizes. Local storage is never trusted on its own; this round-trip is
// the authority consulted before any automatic reconnection.
func (c *Client) CheckSessions(ctx context.Context, req CheckSessionsRequest) (*CheckSessionsResponse, error) {
	var resp CheckSessionsResponse
	if err := c.post(ctx, "/check-sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Helper methods

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
