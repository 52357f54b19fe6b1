package commands

import (
	"testing"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

func TestParseTaskRefs_NumericOnly(t *testing.T) {
	refs, err := ParseTaskRefs([]string{"5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(refs))
	}
	if refs[0].TaskNum != 5 {
		t.Errorf("expected TaskNum 5, got %d", refs[0].TaskNum)
	}
	if !refs[0].ID.IsZero() {
		t.Errorf("expected no id, got %s", refs[0].ID)
	}
}

func TestParseTaskRefs_LocalID(t *testing.T) {
	refs, err := ParseTaskRefs([]string{"~12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs[0].ID != todo.Local(12) {
		t.Errorf("expected ~12, got %s", refs[0].ID)
	}
}

func TestParseTaskRefs_RemoteID(t *testing.T) {
	refs, err := ParseTaskRefs([]string{"#MTIzNDU"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs[0].ID != todo.Remote(ledger.RemoteID("MTIzNDU")) {
		t.Errorf("expected remote MTIzNDU, got %s", refs[0].ID)
	}
}

func TestParseTaskRefs_Mixed(t *testing.T) {
	refs, err := ParseTaskRefs([]string{"1", "~2", "#3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if refs[0].TaskNum != 1 {
		t.Errorf("unexpected ref[0]: %#v", refs[0])
	}
	if refs[1].ID != todo.Local(2) {
		t.Errorf("unexpected ref[1]: %#v", refs[1])
	}
	if refs[2].ID != todo.Remote("3") {
		t.Errorf("unexpected ref[2]: %#v", refs[2])
	}
}

func TestParseTaskRefs_NoArgs_Error(t *testing.T) {
	_, err := ParseTaskRefs([]string{})
	if err != ErrTaskRefRequired {
		t.Errorf("expected ErrTaskRefRequired, got %v", err)
	}
}

func TestParseTaskRefs_Invalid_Error(t *testing.T) {
	tests := []string{"abc", "a1", "~", "~0", "~x", "#", "-1", "١"}
	for _, in := range tests {
		_, err := ParseTaskRefs([]string{in})
		if err == nil {
			t.Errorf("expected error for %q", in)
			continue
		}
		expectedMsg := "invalid task reference: " + in
		if err.Error() != expectedMsg {
			t.Errorf("expected %q, got %q", expectedMsg, err.Error())
		}
	}
}

func TestParseTaskRefs_InvalidToken_Error(t *testing.T) {
	_, err := ParseTaskRefs([]string{"1", "abc"})
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	expectedMsg := "invalid task reference: abc"
	if err.Error() != expectedMsg {
		t.Errorf("expected %q, got %q", expectedMsg, err.Error())
	}
}

func TestFindTask(t *testing.T) {
	store := todo.NewStore()
	store.Reload([]ledger.Record{{ID: "7", Content: "remote"}})
	local, _ := store.AddLocal("local")

	task, err := findTask(store, TaskRef{TaskNum: 2})
	if err != nil || task.ID != local {
		t.Errorf("position 2: got %v, %v", task, err)
	}
	task, err = findTask(store, TaskRef{ID: todo.Remote("7")})
	if err != nil || task.Content != "remote" {
		t.Errorf("#7: got %v, %v", task, err)
	}
	if _, err := findTask(store, TaskRef{TaskNum: 3}); err == nil || err.Error() != "task number out of range: 3" {
		t.Errorf("expected out of range, got %v", err)
	}
	if _, err := findTask(store, TaskRef{ID: todo.Local(9)}); err == nil || err.Error() != "task not found: ~9" {
		t.Errorf("expected not found, got %v", err)
	}
}
