package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

func TestPartition_IsStable(t *testing.T) {
	changes := []todo.Change{
		todo.AddChange(1, "a"),
		todo.ToggleChange(todo.Remote("9")),
		todo.AddChange(2, "b"),
		todo.DeleteChange(todo.Local(1)),
		todo.ToggleChange(todo.Local(2)),
	}

	p := Partition(changes)
	assert.Equal(t, []todo.Change{changes[0], changes[2]}, p.Adds)
	assert.Equal(t, []todo.Change{changes[1], changes[3], changes[4]}, p.Mutations)

	assert.Empty(t, Partition(nil).Adds)
}

func TestBuildMapping(t *testing.T) {
	adds := []todo.Change{todo.AddChange(3, "x"), todo.AddChange(4, "y")}

	tests := []struct {
		name    string
		created []ledger.Created
		want    todo.IDMap
		wantErr error
	}{
		{
			name:    "positional",
			created: []ledger.Created{{ID: "10", Content: "x"}, {ID: "11", Content: "y"}},
			want:    todo.IDMap{3: "10", 4: "11"},
		},
		{
			name:    "short",
			created: []ledger.Created{{ID: "10", Content: "x"}},
			want:    todo.IDMap{3: "10"},
			wantErr: ErrCreationCount,
		},
		{
			name:    "none",
			want:    todo.IDMap{},
			wantErr: ErrCreationCount,
		},
		{
			name:    "too many",
			created: []ledger.Created{{ID: "1", Content: "x"}, {ID: "2", Content: "y"}, {ID: "3", Content: "z"}},
			want:    todo.IDMap{},
			wantErr: ErrCreationCount,
		},
		{
			name:    "swapped",
			created: []ledger.Created{{ID: "10", Content: "y"}, {ID: "11", Content: "x"}},
			want:    todo.IDMap{},
			wantErr: ErrCreationOrder,
		},
		{
			name:    "duplicate id",
			created: []ledger.Created{{ID: "7", Content: "x"}, {ID: "7", Content: "y"}},
			want:    todo.IDMap{},
			wantErr: ErrCreationOrder,
		},
		{
			name:    "missing id",
			created: []ledger.Created{{ID: "", Content: "x"}},
			want:    todo.IDMap{},
			wantErr: ErrCreationOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildMapping(adds, tt.created)
			assert.Equal(t, tt.want, got)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestResolveMutations(t *testing.T) {
	changes := []todo.Change{
		todo.ToggleChange(todo.Remote("7")),
		todo.DeleteChange(todo.Local(1)),
		todo.ToggleChange(todo.Local(2)),
	}

	ops, dropped := ResolveMutations(changes, todo.IDMap{1: "20"})
	assert.Equal(t, []ledger.Op{
		{Kind: ledger.OpToggle, ID: "7"},
		{Kind: ledger.OpDelete, ID: "20"},
	}, ops)
	assert.Equal(t, []todo.Change{changes[2]}, dropped)
}

func TestReport(t *testing.T) {
	r := &Report{
		Consumed: 2,
		Adds:     []todo.Change{todo.AddChange(1, "a"), todo.AddChange(2, "b")},
		Created:  []Creation{{Local: 2, Remote: "5", Content: "b"}},
	}
	assert.False(t, r.Empty())
	assert.True(t, r.OK())
	assert.Equal(t, []todo.Change{todo.AddChange(1, "a")}, r.Uncreated())

	r.Failed = []FailedOp{{Op: ledger.Op{Kind: ledger.OpDelete, ID: "5"}}}
	assert.False(t, r.OK())

	r = &Report{ReloadErr: ErrReload}
	assert.ErrorIs(t, r.Err(), ErrReload)
	assert.True(t, r.Empty())
}
