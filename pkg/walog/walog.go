// Package walog implements the append-only, fsync-barriered text logs that
// make both sides of the commit protocol crash-safe (spec I7). A Log is a
// single on-disk file; every write is appended, fsynced, and only then
// considered durable. Callers on both the coordinator and participant side
// build their own line grammar on top of this primitive (see the coordinator
// package's commitLog and the participant package's participantLog).
package walog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log is an append-only text log with an fsync barrier after every write.
// All writes to a single Log are serialized by an internal mutex (I7: every
// fsync is called while holding the write lock for that file).
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Open creates (if absent) and opens the log file at path for appending,
// creating parent directories as needed.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("walog: create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}

	return &Log{file: f, path: path}, nil
}

// Append writes line (with a trailing newline) and fsyncs before returning.
// Per I7, the caller must not perform any externally observable action that
// depends on this write (message send, file delete) until Append returns nil.
func (l *Log) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("walog: write %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("walog: fsync %s: %w", l.path, err)
	}
	return nil
}

// Lines reads every line currently on disk, in order. It holds the write
// lock while reading, so it does not interleave with Append. Recovery paths
// read through ReadLines instead.
func (l *Log) Lines() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("walog: reopen %s: %w", l.path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("walog: scan %s: %w", l.path, err)
	}
	return lines, nil
}

// Path returns the file path backing this log.
func (l *Log) Path() string {
	return l.path
}

// Close releases the underlying file descriptor.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadLines is a convenience for recovery paths that only need to read a log
// that may not exist yet; a missing file yields an empty slice, not an error.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("walog: scan %s: %w", path, err)
	}
	return lines, nil
}

// ListLogFiles returns the paths of every file directly under dir matching
// glob, sorted, or an empty slice if dir does not exist yet.
func ListLogFiles(dir, glob string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("walog: glob %s: %w", dir, err)
	}
	return matches, nil
}
