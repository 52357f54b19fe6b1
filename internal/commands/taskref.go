package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	TaskNum int     // 1-based position in the visible list, 0 if ID is set
	ID      todo.ID // explicit id, zero if TaskNum is set
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRefs parses one task reference per argument.
//
// Parsing rules:
//  1. All digits → position in the visible list (as printed by list)
//  2. ~<digits> → temporary id of an unsynced task
//  3. #<id> → ledger id
//  4. Otherwise → error: invalid task reference: <ref>
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, arg := range args {
		ref, err := parseTaskRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseTaskRef(arg string) (TaskRef, error) {
	arg = strings.TrimSpace(arg)

	switch {
	case isAllDigits(arg):
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{TaskNum: num}, nil

	case strings.HasPrefix(arg, "~") && isAllDigits(arg[1:]):
		n, err := strconv.ParseUint(arg[1:], 10, 64)
		if err != nil || n == 0 {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{ID: todo.Local(todo.LocalID(n))}, nil

	case strings.HasPrefix(arg, "#") && len(arg) > 1:
		return TaskRef{ID: todo.Remote(ledger.RemoteID(arg[1:]))}, nil
	}

	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
