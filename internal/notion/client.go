// Package notion wraps the external task-persistence HTTP API. The core
// only needs idempotent create (keyed by content hash) and status updates;
// no transactions span multiple external tasks.
package notion

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when no task matches a content hash.
var ErrNotFound = errors.New("notion: task not found")

// Task is the external representation of a persisted task.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status"`
	ContentHash string     `json:"content_hash"`
	Due         *time.Time `json:"due,omitempty"`
}

// Client talks to the persistence proxy over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a persistence client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ContentHash derives the idempotency key for a task from its title and body.
// Repeated scans that re-extract the same commitment collapse onto one task.
func ContentHash(title, body string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(title)) + "\n" + strings.ToLower(strings.TrimSpace(body))))
	return hex.EncodeToString(sum[:])
}

// CreateTask creates a task unless one with the same content hash already
// exists, in which case the existing task is returned.
func (c *Client) CreateTask(ctx context.Context, task *Task) (*Task, error) {
	if task.ContentHash == "" {
		task.ContentHash = ContentHash(task.Title, task.Body)
	}

	if existing, err := c.FindByHash(ctx, task.ContentHash); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("create task: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create task: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("create task: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create task: status %d: %s", resp.StatusCode, truncate(body))
	}

	var created Task
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("create task: decode: %w", err)
	}
	return &created, nil
}

// FindByHash looks up a task by its content hash.
func (c *Client) FindByHash(ctx context.Context, hash string) (*Task, error) {
	endpoint := c.baseURL + "/v1/tasks?hash=" + url.QueryEscape(hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find by hash: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("find by hash: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("find by hash: status %d: %s", resp.StatusCode, truncate(body))
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("find by hash: decode: %w", err)
	}
	if task.ID == "" {
		return nil, ErrNotFound
	}
	return &task, nil
}

// UpdateStatus sets the status (and optionally priority) of an existing task.
func (c *Client) UpdateStatus(ctx context.Context, taskID, status, priority string) error {
	payload, _ := json.Marshal(map[string]string{
		"status":   status,
		"priority": priority,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/v1/tasks/"+url.PathEscape(taskID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update status: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("update status: status %d: %s", resp.StatusCode, truncate(body))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
