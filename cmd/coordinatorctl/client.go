package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// Client is a small REST client for the coordinator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the coordinator at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListPending lists pending approvals, optionally filtered.
func (c *Client) ListPending(ctx context.Context, approvalType, reviewer string) ([]domain.ApprovalRequest, error) {
	q := url.Values{}
	if approvalType != "" {
		q.Set("type", approvalType)
	}
	if reviewer != "" {
		q.Set("reviewer", reviewer)
	}
	var resp struct {
		Approvals []domain.ApprovalRequest `json:"approvals"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/approvals/pending?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// Decide records a verdict; verb is approve, reject or changes.
func (c *Client) Decide(ctx context.Context, approvalID, verb string, in domain.DecisionInput) (*domain.ApprovalRequest, error) {
	var approval domain.ApprovalRequest
	path := "/api/v1/approvals/" + url.PathEscape(approvalID) + "/" + verb
	if err := c.do(ctx, http.MethodPost, path, in, &approval); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ListEvolutions lists active evolutions, or a workshop's history when
// workshop is set.
func (c *Client) ListEvolutions(ctx context.Context, workshop string) ([]domain.Evolution, error) {
	path := "/api/v1/evolutions/active"
	if workshop != "" {
		path = "/api/v1/workshops/" + url.PathEscape(workshop) + "/evolutions"
	}
	var resp struct {
		Evolutions []domain.Evolution `json:"evolutions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Evolutions, nil
}

// FeedURL returns the websocket URL of the reviewer feed.
func (c *Client) FeedURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid coordinator url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
