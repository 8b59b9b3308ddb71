// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("task not found")

// Service defines the interface for task backend operations.
// Commands never talk HTTP directly.
type Service interface {
	// ListTasks returns the window of tasks selected by q, in server order,
	// with the total number of tasks matching the search.
	ListTasks(ctx context.Context, q Query) (Page, error)

	// CreateTask creates a task and returns it as stored.
	CreateTask(ctx context.Context, text string, date time.Time) (Task, error)

	// UpdateTask applies patch to the task with the given id.
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error
}
