// Package taskify implements the service.Service interface over the Taskify
// REST API.
package taskify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskify/internal/api"
	"taskify/internal/service"
)

const (
	// TasksPath is the task collection endpoint.
	TasksPath = "/api/tasks"

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second
)

// Doer sends a backend request; *api.Client implements it.
type Doer interface {
	Do(ctx context.Context, req api.Request) (*api.Response, error)
}

// Client implements service.Service. Every call is authenticated.
type Client struct {
	api     Doer
	timeout time.Duration
}

var _ service.Service = (*Client)(nil)

// New returns a Client sending requests through d.
func New(d Doer) *Client {
	return &Client{api: d, timeout: APITimeout}
}

// WithTimeout overrides the per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

type taskReply struct {
	Data service.Task `json:"data"`
}

// ListTasks returns the window of tasks selected by q.
func (c *Client) ListTasks(ctx context.Context, q service.Query) (service.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q = q.Normalize()
	params := url.Values{
		"limit": {strconv.Itoa(q.Limit)},
		"sort":  {q.Sort},
		"order": {q.Order},
	}
	if q.Search != "" {
		params.Set("filter", q.Search)
	}

	resp, err := c.api.Do(ctx, api.Request{Method: http.MethodGet, Path: TasksPath, Query: params, Auth: true})
	if err != nil {
		return service.Page{}, wrapError(err)
	}
	var reply struct {
		Data service.Page `json:"data"`
	}
	if err := resp.Decode(&reply); err != nil {
		return service.Page{}, err
	}
	if reply.Data.Tasks == nil {
		reply.Data.Tasks = []service.Task{}
	}
	return reply.Data, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, text string, date time.Time) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := api.NewJSONRequest(http.MethodPost, TasksPath, struct {
		Text string    `json:"text"`
		Date time.Time `json:"date"`
	}{text, date})
	if err != nil {
		return service.Task{}, err
	}
	req.Auth = true
	return c.taskCall(ctx, req)
}

// UpdateTask applies patch to a task.
func (c *Client) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	if patch.IsEmpty() {
		return service.Task{}, errors.New("nothing to update")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := api.NewJSONRequest(http.MethodPut, taskPath(id), patch)
	if err != nil {
		return service.Task{}, err
	}
	req.Auth = true
	return c.taskCall(ctx, req)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: taskPath(id), Auth: true})
	return wrapError(err)
}

func (c *Client) taskCall(ctx context.Context, req api.Request) (service.Task, error) {
	resp, err := c.api.Do(ctx, req)
	if err != nil {
		return service.Task{}, wrapError(err)
	}
	var reply taskReply
	if err := resp.Decode(&reply); err != nil {
		return service.Task{}, err
	}
	return reply.Data, nil
}

func taskPath(id string) string {
	return TasksPath + "/" + url.PathEscape(id)
}

// wrapError maps transport-level errors to service errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	if api.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s", service.ErrNotFound, strings.TrimSpace(err.Error()))
	}
	return err
}
