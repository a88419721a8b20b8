// Package membership verifies student memberships by executing the remote
// membership function and reading membership.status from its response.
package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrExecutionFailed is returned when the function does not complete or
// answers with a non-2xx status.
var ErrExecutionFailed = errors.New("membership: function execution failed")

// Config points the client at one function of the backend project.
type Config struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	FunctionID string
	Timeout    time.Duration
}

// Client executes the membership function synchronously.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client.  A zero Timeout defaults to five seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type execution struct {
	Status             string `json:"status"`
	ResponseStatusCode int    `json:"responseStatusCode"`
	ResponseBody       string `json:"responseBody"`
}

type verdict struct {
	Membership *struct {
		Status string `json:"status"`
	} `json:"membership"`
}

// Verify reports whether studentID belongs to an active member.  An empty
// id is never a member and costs no remote call.
func (c *Client) Verify(ctx context.Context, studentID string) (bool, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return false, nil
	}
	inner, err := json.Marshal(map[string]string{"studentId": studentID})
	if err != nil {
		return false, err
	}
	payload, err := json.Marshal(map[string]any{"body": string(inner), "async": false})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/functions/%s/executions", c.cfg.Endpoint, c.cfg.FunctionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("membership: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	req.Header.Set("X-Appwrite-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("membership: execute: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("membership: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: status %d", ErrExecutionFailed, resp.StatusCode)
	}

	var ex execution
	if err := json.Unmarshal(raw, &ex); err != nil {
		return false, fmt.Errorf("membership: decode execution: %w", err)
	}
	if ex.Status != "completed" || ex.ResponseStatusCode < 200 || ex.ResponseStatusCode > 299 {
		return false, fmt.Errorf("%w: status %q code %d", ErrExecutionFailed, ex.Status, ex.ResponseStatusCode)
	}
	var v verdict
	if err := json.Unmarshal([]byte(ex.ResponseBody), &v); err != nil {
		return false, fmt.Errorf("membership: decode verdict: %w", err)
	}
	return v.Membership != nil && v.Membership.Status == "active", nil
}
