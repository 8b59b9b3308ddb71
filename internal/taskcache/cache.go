package taskcache

import (
	"sync"

	"taskify/internal/service"
)

// Cache holds the task window. Listings are tagged with a generation so a
// slow, superseded response cannot overwrite a newer one.
type Cache struct {
	mu     sync.Mutex
	state  []service.Task
	total  int
	issued uint64
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Begin issues the sequence number for a new listing request.
func (c *Cache) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// ApplyFetch replaces the window and total with page if seq is the latest
// issued sequence. It reports whether the page was applied.
func (c *Cache) ApplyFetch(seq uint64, page service.Page) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.issued {
		return false
	}
	c.state = Reduce(c.state, ReplaceAll{Tasks: page.Tasks})
	c.total = page.TotalTasks
	return true
}

// Total returns the backend's task count from the last applied page,
// adjusted by AddTotal since.
func (c *Cache) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// AddTotal adjusts the total after a confirmed create or delete. It never
// goes below zero.
func (c *Cache) AddTotal(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = max(c.total+delta, 0)
}

// Dispatch applies a single-record action.
func (c *Cache) Dispatch(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, a)
}

// Tasks returns a copy of the window.
func (c *Cache) Tasks() []service.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]service.Task(nil), c.state...)
}

// Len returns the number of cached tasks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state)
}
