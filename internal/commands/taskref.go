package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int    // 1-based position in the last listing, 0 if ID is set
	ID  string // raw task id
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
//  1. If the first arg is all digits, it is a position in the last listing
//  2. Otherwise the first arg is taken as a task id
//  3. Extra args are rejected
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, fmt.Errorf("unexpected argument: %s", args[1])
	}

	first := strings.TrimSpace(args[0])
	if first == "" {
		return TaskRef{}, ErrTaskRefRequired
	}

	if isAllDigits(first) {
		num, err := strconv.Atoi(first)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", first)
		}
		if num < 1 {
			return TaskRef{}, fmt.Errorf("task number out of range: %d", num)
		}
		return TaskRef{Num: num}, nil
	}

	if strings.ContainsAny(first, "/?# \t") {
		return TaskRef{}, fmt.Errorf("invalid task reference: %s", first)
	}
	return TaskRef{ID: first}, nil
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
