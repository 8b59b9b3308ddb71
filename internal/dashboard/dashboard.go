// Package dashboard is the task-side application controller: it issues
// listings and mutations through the service and keeps the task cache in
// step with confirmed results.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskify/internal/debounce"
	"taskify/internal/service"
	"taskify/internal/storage"
	"taskify/internal/taskcache"
)

// QueryKey persists the last listing query so task numbers stay stable
// between invocations.
const QueryKey = "taskify-last-query"

// Result is the outcome of a listing.
type Result struct {
	Tasks []service.Task
	Total int
	Query service.Query

	// Stale is set when a newer listing was issued before this one returned;
	// the cache was left untouched.
	Stale bool
	Err   error
}

// HasMore reports whether LoadMore would show more tasks.
func (r Result) HasMore() bool { return len(r.Tasks) < r.Total }

// Options configures a Controller.
type Options struct {
	PageSize    int
	SearchDelay time.Duration
	Logger      *zap.Logger
	// State persists the last query; nil keeps it in memory only.
	State storage.KV
	// OnSearch receives the results of debounced searches.
	OnSearch func(Result)
	// SearchTimer replaces the debounce timer source.
	SearchTimer debounce.AfterFunc
}

// Controller owns the task cache and the current query.
type Controller struct {
	svc   service.Service
	cache *taskcache.Cache
	kv    storage.KV
	log   *zap.Logger
	step  int

	mu       sync.Mutex
	query    service.Query
	onSearch func(Result)

	searcher *debounce.Debouncer[searchInput]
}

type searchInput struct {
	ctx  context.Context
	term string
}

// New returns a Controller with the default query.
func New(svc service.Service, opts Options) *Controller {
	if opts.PageSize < 1 {
		opts.PageSize = service.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		svc:      svc,
		cache:    taskcache.New(),
		kv:       opts.State,
		log:      opts.Logger.Named("dashboard"),
		step:     opts.PageSize,
		query:    service.Query{Limit: opts.PageSize, Sort: service.SortText, Order: service.OrderAsc},
		onSearch: opts.OnSearch,
	}
	c.searcher = debounce.New(opts.SearchDelay, c.runSearch)
	if opts.SearchTimer != nil {
		c.searcher.WithAfterFunc(opts.SearchTimer)
	}
	return c
}

// Query returns the current query.
func (c *Controller) Query() service.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SetQuery replaces the current query.
func (c *Controller) SetQuery(q service.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q.Normalize()
}

// Tasks returns the cached window.
func (c *Controller) Tasks() []service.Task { return c.cache.Tasks() }

// Total returns the total reported by the last applied listing, adjusted
// by confirmed adds and deletes since.
func (c *Controller) Total() int { return c.cache.Total() }

// Fetch lists tasks for the current query. Only the most recently issued
// listing may update the cache.
func (c *Controller) Fetch(ctx context.Context) (Result, error) {
	return c.fetch(ctx, c.Query())
}

func (c *Controller) fetch(ctx context.Context, q service.Query) (Result, error) {
	seq := c.cache.Begin()
	page, err := c.svc.ListTasks(ctx, q)
	if err != nil {
		return Result{Query: q, Err: err}, err
	}
	if !c.cache.ApplyFetch(seq, page) {
		c.log.Debug("discarding stale listing", zap.Uint64("seq", seq), zap.String("search", q.Search))
		return Result{Tasks: page.Tasks, Total: page.TotalTasks, Query: q, Stale: true}, nil
	}
	return Result{Tasks: c.cache.Tasks(), Total: page.TotalTasks, Query: q}, nil
}

// LoadMore grows the window by one page and fetches.
func (c *Controller) LoadMore(ctx context.Context) (Result, error) {
	c.mu.Lock()
	c.query.Limit += c.step
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// Search sets the search term after the input has been quiet for the
// search delay, then fetches. Results go to Options.OnSearch.
func (c *Controller) Search(ctx context.Context, term string) {
	c.searcher.Trigger(searchInput{ctx: ctx, term: term})
}

// SetOnSearch replaces the receiver of debounced search results.
func (c *Controller) SetOnSearch(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSearch = fn
}

// FlushSearch runs a pending search now and returns once every search
// already running has delivered its result. It reports whether a search
// was pending.
func (c *Controller) FlushSearch() bool { return c.searcher.Flush() }

func (c *Controller) runSearch(in searchInput) {
	c.mu.Lock()
	c.query.Search = in.term
	q := c.query
	c.mu.Unlock()

	res, _ := c.fetch(in.ctx, q)

	c.mu.Lock()
	onSearch := c.onSearch
	c.mu.Unlock()
	if onSearch != nil {
		onSearch(res)
	}
}

// Close cancels a pending search and waits for a running one to finish.
func (c *Controller) Close() {
	c.searcher.Stop()
	c.searcher.Wait()
}

// Add creates a task and puts it first in the window.
func (c *Controller) Add(ctx context.Context, text string, date time.Time) (service.Task, error) {
	task, err := c.svc.CreateTask(ctx, text, date)
	if err != nil {
		return service.Task{}, err
	}
	c.cache.Dispatch(taskcache.Prepend{Task: task})
	c.cache.AddTotal(1)
	return task, nil
}

// Edit updates a task and replaces the cached copy with the task the
// backend returned.
func (c *Controller) Edit(ctx context.Context, id string, patch service.TaskPatch) (service.Task, error) {
	task, err := c.svc.UpdateTask(ctx, id, patch)
	if err != nil {
		return service.Task{}, err
	}
	confirmed := service.PatchOf(task)
	if confirmed.ID == "" {
		confirmed.ID = id
	}
	c.cache.Dispatch(taskcache.PatchByID{Patch: confirmed})
	return task, nil
}

// Complete marks a task done. Completed tasks leave the dashboard, so the
// task is deleted on the backend.
func (c *Controller) Complete(ctx context.Context, id string) error {
	return c.remove(ctx, id)
}

// Delete deletes a task.
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.remove(ctx, id)
}

func (c *Controller) remove(ctx context.Context, id string) error {
	if err := c.svc.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.cache.Dispatch(taskcache.RemoveByID{ID: id})
	c.cache.AddTotal(-1)
	return nil
}

// LoadQuery restores the persisted query, if any.
func (c *Controller) LoadQuery(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	raw, err := c.kv.Get(ctx, QueryKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var q service.Query
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		c.log.Warn("ignoring unreadable saved query", zap.Error(err))
		return nil
	}
	c.SetQuery(q)
	return nil
}

// SaveQuery persists the current query.
func (c *Controller) SaveQuery(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	data, err := json.Marshal(c.Query())
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, QueryKey, string(data)); err != nil {
		return fmt.Errorf("save query: %w", err)
	}
	return nil
}
