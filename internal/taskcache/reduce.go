// Package taskcache mirrors the server's current window of tasks. State only
// changes through Reduce, and only after the server confirmed the change.
package taskcache

import (
	"fmt"

	"taskify/internal/service"
)

// Action is one cache mutation. Exactly one of the types below.
type Action interface {
	isAction()
}

// ReplaceAll replaces the whole window after a listing, keeping server order.
type ReplaceAll struct{ Tasks []service.Task }

// Prepend inserts a created task first, regardless of the active sort.
type Prepend struct{ Task service.Task }

// PatchByID merges the set fields of Patch into the task with Patch.ID.
type PatchByID struct{ Patch service.TaskPatch }

// RemoveByID drops the task with ID.
type RemoveByID struct{ ID string }

func (ReplaceAll) isAction() {}
func (Prepend) isAction()    {}
func (PatchByID) isAction()  {}
func (RemoveByID) isAction() {}

// Reduce returns the state after applying a. It never modifies state in
// place. Patching or removing an unknown id returns state unchanged.
func Reduce(state []service.Task, a Action) []service.Task {
	switch a := a.(type) {
	case ReplaceAll:
		return append([]service.Task(nil), a.Tasks...)

	case Prepend:
		next := make([]service.Task, 0, len(state)+1)
		next = append(next, a.Task)
		return append(next, state...)

	case PatchByID:
		i := indexOf(state, a.Patch.ID)
		if i < 0 {
			return state
		}
		next := append([]service.Task(nil), state...)
		next[i] = a.Patch.Apply(next[i])
		return next

	case RemoveByID:
		i := indexOf(state, a.ID)
		if i < 0 {
			return state
		}
		next := make([]service.Task, 0, len(state)-1)
		next = append(next, state[:i]...)
		return append(next, state[i+1:]...)

	default:
		panic(fmt.Sprintf("taskcache: unknown action %T", a))
	}
}

func indexOf(state []service.Task, id string) int {
	for i, t := range state {
		if t.ID == id {
			return i
		}
	}
	return -1
}
