package taskify

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskify/internal/api"
	"taskify/internal/auth"
	"taskify/internal/service"
	"taskify/internal/session"
	"taskify/internal/storage"
	"taskify/internal/testutil"
)

var day = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newClient(t *testing.T) (*Client, *testutil.FakeBackend, session.User) {
	t.Helper()
	b := testutil.NewFakeBackend(t)
	store := session.NewStore(storage.NewFileKV(t.TempDir()), nil)
	u := b.AddUser("Alice", "alice@example.com", "pw")
	require.NoError(t, store.Set(context.Background(), session.Authenticated(u)))

	public := api.New(b.URL)
	client := public.WithAuthenticator(auth.NewRefresher(public, store, nil))
	return New(client), b, u
}

func TestListTasks_QueryAndOrder(t *testing.T) {
	c, b, _ := newClient(t)
	b.AddTask("Buy milk", day.Add(48*time.Hour))
	b.AddTask("Answer email", day)
	b.AddTask("Call mom", day.Add(24*time.Hour))
	b.AddTask("Buy bread", day.Add(72*time.Hour))

	page, err := c.ListTasks(context.Background(), service.Query{Limit: 2, Sort: "text", Order: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalTasks)
	require.Len(t, page.Tasks, 2)
	assert.Equal(t, "Answer email", page.Tasks[0].Text)
	assert.Equal(t, "Buy bread", page.Tasks[1].Text)
	assert.True(t, page.HasMore())

	page, err = c.ListTasks(context.Background(), service.Query{Limit: 5, Sort: "date", Order: "DESC", Search: "buy"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalTasks)
	assert.Equal(t, []string{"Buy bread", "Buy milk"}, []string{page.Tasks[0].Text, page.Tasks[1].Text})
	assert.True(t, page.Tasks[0].Date.Equal(day.Add(72*time.Hour)))
}

func TestListTasks_Empty(t *testing.T) {
	c, _, _ := newClient(t)
	page, err := c.ListTasks(context.Background(), service.DefaultQuery())
	require.NoError(t, err)
	assert.NotNil(t, page.Tasks)
	assert.Empty(t, page.Tasks)
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t)

	task, err := c.CreateTask(ctx, "Water plants", day)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Water plants", task.Text)
	assert.True(t, task.Date.Equal(day))

	text := "Water all plants"
	updated, err := c.UpdateTask(ctx, task.ID, service.TaskPatch{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "Water all plants", updated.Text)
	assert.True(t, updated.Date.Equal(day), "unspecified fields preserved")

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	assert.Empty(t, b.Tasks())

	err = c.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCreateTask_ValidationMessage(t *testing.T) {
	c, _, _ := newClient(t)
	_, err := c.CreateTask(context.Background(), "   ", day)
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Task text is required", verr.Message)
}

func TestUpdateTask_EmptyPatch(t *testing.T) {
	c, b, _ := newClient(t)
	_, err := c.UpdateTask(context.Background(), "t1", service.TaskPatch{})
	assert.Error(t, err)
	assert.Zero(t, b.Calls("PUT /api/tasks/t1"))
}

func TestMutationsRetryAtMostOnce(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newClient(t)
	task := b.AddTask("Stretch", day)
	b.RejectAccess = true

	done := true
	_, err := c.UpdateTask(ctx, task.ID, service.TaskPatch{Completed: &done})
	assert.ErrorIs(t, err, api.ErrRepeatedAuthFailure)
	assert.Equal(t, 2, b.Calls("PUT /api/tasks/"+task.ID))

	err = c.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, api.ErrRepeatedAuthFailure)
	assert.Equal(t, 2, b.Calls("DELETE /api/tasks/"+task.ID))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))
	assert.ErrorIs(t, wrapError(&api.ValidationError{Status: http.StatusNotFound, Message: "Task not found"}), service.ErrNotFound)
	assert.ErrorIs(t, wrapError(context.DeadlineExceeded), context.DeadlineExceeded)

	plain := errors.New("boom")
	assert.Equal(t, plain, wrapError(plain))
}
