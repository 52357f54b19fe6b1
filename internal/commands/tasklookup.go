package commands

import (
	"fmt"

	"todosync/internal/todo"
)

// findTask resolves ref against the visible list.
func findTask(store *todo.Store, ref TaskRef) (todo.Task, error) {
	if !ref.ID.IsZero() {
		task, ok := store.Lookup(ref.ID)
		if !ok {
			return todo.Task{}, fmt.Errorf("task not found: %s", ref.ID)
		}
		return task, nil
	}

	tasks := store.Tasks()
	if ref.TaskNum < 1 || ref.TaskNum > len(tasks) {
		return todo.Task{}, fmt.Errorf("task number out of range: %d", ref.TaskNum)
	}
	return tasks[ref.TaskNum-1], nil
}
