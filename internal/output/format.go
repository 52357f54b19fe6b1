// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"todosync/internal/ledger"
	"todosync/internal/reconcile"
	"todosync/internal/todo"
)

const (
	// Separator is the separator line for status sections.
	Separator = "------------"

	checkDone = "[x]"
	checkOpen = "[ ]"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {CONTENT}{ *}\n" (4-wide right-aligned number, checkbox,
// content, and a trailing "*" for tasks the ledger has not seen yet)
func FormatTask(w io.Writer, num int, task todo.Task) {
	box := checkOpen
	if task.Completed {
		box = checkDone
	}
	mark := ""
	if !task.Synced() {
		mark = " *"
	}
	fmt.Fprintf(w, "%4d  %s %s%s\n", num, box, normalizeContent(task.Content), mark)
}

// FormatChange formats a pending change line.
// Format: "    {N:>4}  {change}\n"
func FormatChange(w io.Writer, num int, c todo.Change) {
	var desc string
	switch c.Kind {
	case todo.ChangeAdd:
		desc = fmt.Sprintf("add    %s %s", todo.Local(c.LocalID), normalizeContent(c.Content))
	default:
		desc = fmt.Sprintf("%-6s %s", c.Kind, c.Target)
	}
	fmt.Fprintf(w, "    %4d  %s\n", num, desc)
}

// FormatHeader formats a section header.
func FormatHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, Separator)
}

// FormatReport summarizes a flush.
// Dropped, uncreated and failed items are listed one per line so the user
// knows which edits were lost.
func FormatReport(w io.Writer, rep *reconcile.Report) {
	fmt.Fprintf(w, "created %d, submitted %d, dropped %d\n", len(rep.Created), len(rep.Submitted), len(rep.Dropped))
	for _, a := range rep.Uncreated() {
		fmt.Fprintf(w, "lost: %s\n", a)
	}
	for _, d := range rep.Dropped {
		fmt.Fprintf(w, "dropped: %s\n", d)
	}
	for _, f := range rep.Failed {
		fmt.Fprintf(w, "failed: %s: %v\n", formatOp(f.Op), f.Err)
	}
}

func formatOp(op ledger.Op) string {
	return fmt.Sprintf("%s #%s", op.Kind, op.ID)
}

// normalizeContent normalizes task content for display.
// - Empty or whitespace-only content becomes "(untitled)"
// - Newlines are replaced with spaces
func normalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r", " ")
	content = strings.ReplaceAll(content, "\n", " ")

	if strings.TrimSpace(content) == "" {
		return "(untitled)"
	}
	return content
}
