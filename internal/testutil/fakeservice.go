// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskify/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu    sync.RWMutex
	tasks []service.Task
	seq   int

	// Queries records every ListTasks query.
	Queries []service.Query

	// Error injection for testing
	ListTasksErr  error
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error

	// ListGate, when set, is called before ListTasks answers; tests use it to
	// hold a response back.
	ListGate func(q service.Query)
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{}
}

// AddTask adds a task and returns it.
func (f *FakeService) AddTask(id, text string, date time.Time) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{ID: id, Text: text, Date: date}
	f.tasks = append(f.tasks, t)
	return t
}

// Stored returns all tasks in insertion order.
func (f *FakeService) Stored() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.Task(nil), f.tasks...)
}

// ListCalls returns the number of ListTasks calls.
func (f *FakeService) ListCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.Queries)
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, q service.Query) (service.Page, error) {
	q = q.Normalize()
	f.mu.Lock()
	f.Queries = append(f.Queries, q)
	gate := f.ListGate
	f.mu.Unlock()

	if gate != nil {
		gate(q)
	}
	if f.ListTasksErr != nil {
		return service.Page{}, f.ListTasksErr
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return window(f.tasks, q), nil
}

// window filters, sorts and limits tasks the way the backend does.
func window(tasks []service.Task, q service.Query) service.Page {
	var matched []service.Task
	for _, t := range tasks {
		if q.Search == "" || strings.Contains(strings.ToLower(t.Text), strings.ToLower(q.Search)) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if q.Order == service.OrderDesc {
			a, b = b, a
		}
		if q.Sort == service.SortDate {
			return a.Date.Before(b.Date)
		}
		return a.Text < b.Text
	})
	total := len(matched)
	if q.Limit >= 0 && q.Limit < total {
		matched = matched[:q.Limit]
	}
	if matched == nil {
		matched = []service.Task{}
	}
	return service.Page{Tasks: matched, TotalTasks: total}
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, text string, date time.Time) (service.Task, error) {
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := service.Task{ID: fmt.Sprintf("new%d", f.seq), Text: text, Date: date}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i] = patch.Apply(t)
			return f.tasks[i], nil
		}
	}
	return service.Task{}, fmt.Errorf("%w: %s", service.ErrNotFound, id)
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", service.ErrNotFound, id)
}
