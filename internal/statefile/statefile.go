// Package statefile persists the local task list and pending-change queue
// between invocations.
package statefile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todosync/internal/todo"
)

//go:embed state.schema.json
var schemaJSON []byte

const schemaURL = "mem://todosync/state.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}
	return schema, nil
})

// SchemaError lists the schema violations found in a state file.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid state file: " + strings.Join(e.Problems, "; ")
}

// Empty returns the snapshot of a fresh store.
func Empty() todo.Snapshot {
	return todo.Snapshot{Version: todo.SnapshotVersion, Tasks: []todo.Task{}, Pending: []todo.Change{}}
}

// Load reads the snapshot at path. A missing file yields Empty().
func Load(path string) (todo.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return todo.Snapshot{}, fmt.Errorf("read state file: %w", err)
	}
	return Decode(data)
}

// Decode checks data against the state schema and the store invariants.
func Decode(data []byte) (todo.Snapshot, error) {
	if err := Validate(data); err != nil {
		return todo.Snapshot{}, err
	}

	var snap todo.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return todo.Snapshot{}, fmt.Errorf("parse state file: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return todo.Snapshot{}, fmt.Errorf("invalid state file: %w", err)
	}
	return snap, nil
}

// Validate checks data against the state schema only.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse state file: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		se := &SchemaError{}
		collectProblems(se, ve)
		return se
	}
	return nil
}

func collectProblems(se *SchemaError, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		se.Problems = append(se.Problems, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectProblems(se, cause)
	}
}

// Save writes snap to path atomically: a temp file in the same directory is
// renamed over the target.
func Save(path string, snap todo.Snapshot) error {
	if snap.Tasks == nil {
		snap.Tasks = []todo.Task{}
	}
	if snap.Pending == nil {
		snap.Pending = []todo.Change{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
