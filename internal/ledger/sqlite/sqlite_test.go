package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/ledger"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_CreateToggleDeleteList(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	created, err := l.BatchCreate(ctx, []string{"Buy milk", "Task to delete", "Task 3"})
	require.NoError(t, err)
	assert.Equal(t, []ledger.Created{
		{ID: "1", Content: "Buy milk"},
		{ID: "2", Content: "Task to delete"},
		{ID: "3", Content: "Task 3"},
	}, created)

	_, err = l.BatchMutate(ctx, []ledger.Op{
		{Kind: ledger.OpToggle, ID: "1"},
		{Kind: ledger.OpDelete, ID: "2"},
		{Kind: ledger.OpToggle, ID: "3"},
		{Kind: ledger.OpToggle, ID: "3"},
	})
	require.NoError(t, err)

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Record{
		{ID: "1", Content: "Buy milk", Completed: true},
		{ID: "2", Content: "Task to delete", Deleted: true},
		{ID: "3", Content: "Task 3"},
	}, all)
}

func TestLedger_MutateBatchIsAtomic(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	_, err := l.BatchCreate(ctx, []string{"Task 1"})
	require.NoError(t, err)

	_, err = l.BatchMutate(ctx, []ledger.Op{
		{Kind: ledger.OpToggle, ID: "1"},
		{Kind: ledger.OpDelete, ID: "99"},
	})
	require.ErrorIs(t, err, ledger.ErrUnknownTask)

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Completed)
}

func TestLedger_EmptyBatches(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	_, err := l.BatchCreate(ctx, nil)
	assert.ErrorIs(t, err, ledger.ErrEmptyBatch)
	_, err = l.BatchMutate(ctx, nil)
	assert.ErrorIs(t, err, ledger.ErrEmptyBatch)
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = l.BatchCreate(ctx, []string{"durable"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Record{{ID: "1", Content: "durable"}}, all)
}

func TestBatchCreate_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() { _ = db.Close() }()

	l := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tasks").WithArgs("A").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO tasks").WithArgs("B").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	created, err := l.BatchCreate(context.Background(), []string{"A", "B"})
	require.Error(t, err)
	assert.Nil(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchCreate_ReturnsInsertIDsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	l := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tasks").WithArgs("A").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO tasks").WithArgs("B").WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectCommit()

	created, err := l.BatchCreate(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []ledger.Created{{ID: "5", Content: "A"}, {ID: "6", Content: "B"}}, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchMutate_RollsBackWhenNoRowMatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	l := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tasks SET completed").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tasks SET deleted").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = l.BatchMutate(context.Background(), []ledger.Op{
		{Kind: ledger.OpToggle, ID: "5"},
		{Kind: ledger.OpDelete, ID: "7"},
	})
	require.ErrorIs(t, err, ledger.ErrUnknownTask)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_ScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id", "content", "completed", "deleted"}).
		AddRow(int64(1), "a", int64(0), int64(0)).
		AddRow(int64(2), "b", int64(1), int64(1))
	mock.ExpectQuery("SELECT id, content, completed, deleted FROM tasks").WillReturnRows(rows)

	all, err := New(db).ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ledger.Record{
		{ID: "1", Content: "a"},
		{ID: "2", Content: "b", Completed: true, Deleted: true},
	}, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}
