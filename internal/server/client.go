package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/warden-dev/warden/internal/approval"
	"github.com/warden-dev/warden/internal/executor"
	"github.com/warden-dev/warden/internal/procmgr"
	"github.com/warden-dev/warden/internal/store"
)

// Client talks to a running daemon's HTTP API.
type Client struct {
	// BaseURL is the daemon address (e.g. "http://127.0.0.1:7177").
	BaseURL string

	// HTTPClient is the HTTP client used for requests. If nil, a
	// default client with no timeout is used; command runs can
	// legitimately take minutes while waiting on approval.
	HTTPClient *http.Client
}

// NewClient creates a client for the daemon at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		BaseURL:    fmt.Sprintf("http://%s", addr),
		HTTPClient: &http.Client{},
	}
}

// Run submits a command and waits for its terminal result.
func (c *Client) Run(ctx context.Context, req RunRequest) (executor.Result, error) {
	var result executor.Result
	err := c.doRequest(ctx, http.MethodPost, "/commands", req, &result, http.StatusOK)
	return result, err
}

// Status fetches the daemon status summary.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var status StatusResponse
	err := c.doRequest(ctx, http.MethodGet, "/status", nil, &status, http.StatusOK)
	return status, err
}

// Approvals lists commands waiting on approval.
func (c *Client) Approvals(ctx context.Context) ([]approval.Pending, error) {
	var resp approvalsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/approvals", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// Approve resolves a pending approval as approved.
func (c *Client) Approve(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodPost, "/approvals/"+id+"/approve", nil, nil, http.StatusOK)
}

// Reject resolves a pending approval as rejected.
func (c *Client) Reject(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodPost, "/approvals/"+id+"/reject", nil, nil, http.StatusOK)
}

// Services lists tracked background processes.
func (c *Client) Services(ctx context.Context) ([]procmgr.ProcessInfo, error) {
	var resp servicesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/services", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// StopService stops a tracked background process.
func (c *Client) StopService(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/services/"+id, nil, nil, http.StatusOK)
}

// History fetches recent command results, most recent first.
func (c *Client) History(ctx context.Context, limit int) ([]store.CommandRecord, error) {
	var resp historyResponse
	path := "/history"
	if limit > 0 {
		path = fmt.Sprintf("/history?limit=%d", limit)
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// SaveCommand stores a named shortcut on the daemon.
func (c *Client) SaveCommand(ctx context.Context, saved store.SavedCommand) (store.SavedCommand, error) {
	var result store.SavedCommand
	err := c.doRequest(ctx, http.MethodPost, "/saved-commands", saved, &result, http.StatusCreated)
	return result, err
}

// ListSaved fetches all saved shortcuts.
func (c *Client) ListSaved(ctx context.Context) ([]store.SavedCommand, error) {
	var resp savedResponse
	if err := c.doRequest(ctx, http.MethodGet, "/saved-commands", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// DeleteSaved removes a saved shortcut by id.
func (c *Client) DeleteSaved(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/saved-commands/"+id, nil, nil, http.StatusOK)
}

// doRequest executes a request, JSON-encoding body and decoding the
// response into result when non-nil. Any status outside
// acceptedStatuses is returned as an error carrying the server's
// error message.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, acceptedStatuses ...int) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, status := range acceptedStatuses {
		if resp.StatusCode == status {
			accepted = true
			break
		}
	}
	if !accepted {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
