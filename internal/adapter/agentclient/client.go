// Package agentclient provides the HTTP client for sending A2A tasks to agents.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// SendTaskPath is appended to an agent's base URL.
const SendTaskPath = "/send-task"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4096

// Client is an HTTP client for sending tasks to agents.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new agent client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP wraps an existing http.Client.
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// SendTask POSTs a task to <endpoint>/send-task. Any status other than 200 is
// an error.
func (c *Client) SendTask(ctx context.Context, endpoint string, req domain.TaskRequest) (*domain.TaskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + SendTaskPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Task-ID", req.ID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("agent returned HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var taskResp domain.TaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&taskResp); err != nil {
		return nil, fmt.Errorf("failed to decode task response: %w", err)
	}
	return &taskResp, nil
}
