package todo

import "fmt"

// ChangeKind tags a pending change.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota + 1
	ChangeToggle
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeToggle:
		return "toggle"
	case ChangeDelete:
		return "delete"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one buffered edit.
// Add changes carry LocalID and Content; Toggle and Delete carry Target.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	LocalID LocalID    `json:"local_id,omitempty"`
	Content string     `json:"content,omitempty"`
	Target  ID         `json:"target,omitzero"`
}

// AddChange returns an Add change.
func AddChange(id LocalID, content string) Change {
	return Change{Kind: ChangeAdd, LocalID: id, Content: content}
}

// ToggleChange returns a Toggle change.
func ToggleChange(target ID) Change {
	return Change{Kind: ChangeToggle, Target: target}
}

// DeleteChange returns a Delete change.
func DeleteChange(target ID) Change {
	return Change{Kind: ChangeDelete, Target: target}
}

func (c Change) String() string {
	if c.Kind == ChangeAdd {
		return fmt.Sprintf("add(%s, %q)", Local(c.LocalID), c.Content)
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Target)
}

func (c Change) validate() error {
	switch c.Kind {
	case ChangeAdd:
		if c.LocalID == 0 {
			return fmt.Errorf("add change without local id")
		}
		if c.Content == "" {
			return fmt.Errorf("add change %s without content", Local(c.LocalID))
		}
	case ChangeToggle, ChangeDelete:
		if c.Target.IsZero() {
			return fmt.Errorf("%s change without target", c.Kind)
		}
	default:
		return fmt.Errorf("unknown change kind %d", int(c.Kind))
	}
	return nil
}
