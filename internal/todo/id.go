package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"todosync/internal/ledger"
)

// LocalID is a temporary id assigned by the client to an optimistically created task.
type LocalID uint64

// ID identifies a task either by a client-assigned LocalID or by the ledger's RemoteID.
// The zero value is invalid.
type ID struct {
	local  LocalID
	remote ledger.RemoteID
}

// Local returns the ID of a task that has not reached the ledger yet.
func Local(n LocalID) ID {
	return ID{local: n}
}

// Remote returns the ID of a task known to the ledger.
func Remote(r ledger.RemoteID) ID {
	return ID{remote: r}
}

// Local returns the temporary id and true if id is local.
func (id ID) Local() (LocalID, bool) {
	return id.local, id.local != 0
}

// Remote returns the ledger id and true if id is remote.
func (id ID) Remote() (ledger.RemoteID, bool) {
	return id.remote, id.remote != ""
}

// IsZero reports whether id is the invalid zero value.
func (id ID) IsZero() bool {
	return id.local == 0 && id.remote == ""
}

// String renders local ids as "~N" and remote ids verbatim.
func (id ID) String() string {
	if l, ok := id.Local(); ok {
		return "~" + strconv.FormatUint(uint64(l), 10)
	}
	return string(id.remote)
}

type idJSON struct {
	Local  LocalID         `json:"local,omitempty"`
	Remote ledger.RemoteID `json:"remote,omitempty"`
}

// MarshalJSON encodes id as {"local":N} or {"remote":"R"}.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return nil, errors.New("cannot marshal zero task id")
	}
	return json.Marshal(idJSON{Local: id.local, Remote: id.remote})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (id *ID) UnmarshalJSON(data []byte) error {
	var v idJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v.Local != 0 && v.Remote != "":
		return fmt.Errorf("task id has both local and remote parts: %s", data)
	case v.Local != 0:
		*id = Local(v.Local)
	case v.Remote != "":
		*id = Remote(v.Remote)
	default:
		return fmt.Errorf("empty task id: %s", data)
	}
	return nil
}

// IDMap maps temporary ids to the ledger ids their Add changes produced.
type IDMap map[LocalID]ledger.RemoteID

// Resolve returns the ledger id to submit for id.
// Remote ids resolve to themselves; local ids resolve only through m.
func (m IDMap) Resolve(id ID) (ledger.RemoteID, bool) {
	if r, ok := id.Remote(); ok {
		return r, true
	}
	if l, ok := id.Local(); ok {
		r, found := m[l]
		return r, found
	}
	return "", false
}
