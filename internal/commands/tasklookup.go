package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"taskify/internal/app"
	"taskify/internal/service"
)

// errOutOfRange is returned when a task number is past the last listing.
type errOutOfRange int

func (e errOutOfRange) Error() string {
	return fmt.Sprintf("task number out of range: %d", int(e))
}

// resolveTask finds the task a reference points at. Numbers index the
// window of the last listing (same query, refetched), so "taskify done 2"
// acts on the second row "taskify list" printed.
func resolveTask(ctx context.Context, a *app.App, ref TaskRef) (service.Task, error) {
	if ref.ID != "" {
		return service.Task{ID: ref.ID}, nil
	}

	if err := a.Dashboard.LoadQuery(ctx); err != nil {
		return service.Task{}, err
	}
	q := a.Dashboard.Query()
	if ref.Num > q.Limit {
		// Reach past the saved window without changing it.
		q.Limit = ref.Num
		a.Dashboard.SetQuery(q)
	}
	if _, err := a.Dashboard.Fetch(ctx); err != nil {
		return service.Task{}, err
	}

	tasks := a.Dashboard.Tasks()
	if ref.Num > len(tasks) {
		return service.Task{}, errOutOfRange(ref.Num)
	}
	return tasks[ref.Num-1], nil
}

// lookupTask parses args and resolves the task, printing any error.
// ok is false when the command should exit with code.
func lookupTask(ctx context.Context, a *app.App, args []string, errOut io.Writer) (task service.Task, code int, ok bool) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, usageError(errOut, "%v", err), false
	}
	task, err = resolveTask(ctx, a, ref)
	if err != nil {
		var oor errOutOfRange
		if errors.As(err, &oor) {
			return service.Task{}, usageError(errOut, "%v", err), false
		}
		return service.Task{}, report(errOut, err), false
	}
	return task, 0, true
}
