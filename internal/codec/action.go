package codec

import (
	"fmt"
	"strings"
)

// Action is the mutation a record carries. The zero value is ActionNoop.
type Action uint8

const (
	ActionNoop Action = iota
	ActionAdd
	ActionDelete
	ActionQuery
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionNoop:
		return "noop"
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	case ActionQuery:
		return "query"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Valid reports whether a is one of the four defined actions.
func (a Action) Valid() bool {
	return a <= ActionQuery
}

// ParseAction converts a name such as "add" into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noop", "":
		return ActionNoop, nil
	case "add":
		return ActionAdd, nil
	case "delete":
		return ActionDelete, nil
	case "query":
		return ActionQuery, nil
	default:
		return ActionNoop, fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAction, uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
