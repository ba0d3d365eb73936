package walog

import (
	"path/filepath"
	"testing"
)

func TestAppendAndLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if err := l.Append("File Name: composites/1.jpg"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("Phase One"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	lines, err := l.Lines()
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want := []string{"File Name: composites/1.jpg", "Phase One"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "log.txt")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Close()
}

func TestReadLinesMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	lines, err := ReadLines(filepath.Join(dir, "absent.txt"))
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines, got %v", lines)
	}
}

func TestListLogFilesMissingDir(t *testing.T) {
	dir := t.TempDir()
	matches, err := ListLogFiles(filepath.Join(dir, "log"), "log_*.txt")
	if err != nil {
		t.Fatalf("ListLogFiles: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}

func TestReopenAppendsAtEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	l1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l1.Append("a")
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	l2.Append("b")

	lines, err := l2.Lines()
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}
