package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type APIError struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}

// APIResponse is the gateway's response envelope. Status responses carry
// State instead of Data.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	State   string          `json:"state,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

type GatewayClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewGatewayClient(baseURL, apiKey string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Get calls a session endpoint. A non-2xx response still decodes into
// APIResponse; the error is reserved for transport and decoding failures.
func (c *GatewayClient) Get(ctx context.Context, path string) (*APIResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var res APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return &res, resp.StatusCode, nil
}

func sessionPath(action, sessionID string) string {
	return "/session/" + action + "/" + url.PathEscape(sessionID)
}
