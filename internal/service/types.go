// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"strings"
	"time"
)

// Task represents a single task item.
type Task struct {
	ID        string    `json:"_id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	Date      time.Time `json:"date" yaml:"date"`
	Completed bool      `json:"completed" yaml:"completed"`
}

// TaskPatch holds the fields of an update. Nil fields are left unchanged.
type TaskPatch struct {
	ID        string     `json:"-"`
	Text      *string    `json:"text,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Text == nil && p.Date == nil && p.Completed == nil
}

// PatchOf returns a patch setting every field of t.
func PatchOf(t Task) TaskPatch {
	return TaskPatch{ID: t.ID, Text: &t.Text, Date: &t.Date, Completed: &t.Completed}
}

// Apply returns t with the patch's fields merged in.
func (p TaskPatch) Apply(t Task) Task {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Sort keys accepted by the backend.
const (
	SortText = "text"
	SortDate = "date"
)

// Sort orders accepted by the backend.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// DefaultLimit is the initial listing window.
const DefaultLimit = 5

// Query selects a window of tasks.
type Query struct {
	Limit  int    `json:"limit"`
	Sort   string `json:"sort"`
	Order  string `json:"order"`
	Search string `json:"search,omitempty"`
}

// DefaultQuery returns the dashboard's initial query.
func DefaultQuery() Query {
	return Query{Limit: DefaultLimit, Sort: SortText, Order: OrderAsc}
}

// Normalize fills defaults and canonicalizes sort and order.
func (q Query) Normalize() Query {
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	if q.Sort != SortDate {
		q.Sort = SortText
	}
	q.Order = strings.ToUpper(strings.TrimSpace(q.Order))
	if q.Order != OrderDesc {
		q.Order = OrderAsc
	}
	return q
}

// Page is one listing response.
type Page struct {
	Tasks      []Task `json:"tasks"`
	TotalTasks int    `json:"totalTasks"`
}

// HasMore reports whether the window is smaller than the filtered total.
func (p Page) HasMore() bool {
	return len(p.Tasks) < p.TotalTasks
}
