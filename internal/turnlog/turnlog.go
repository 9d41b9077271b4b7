// Package turnlog implements the durable, append-only conversation-turn log.
//
// The log is a JSON-lines file: one completed turn per line, carrying its
// messages, sync status, retry count, and timestamp. Records are appended at
// finalize time regardless of sync outcome; sync success or failure is later
// recorded by updating the line in place (identified by its 1-based line
// number), never by deleting it. The file is the source of truth for the
// reconciliation sweep — the in-memory sync queue can be lost without losing
// turns.
//
// A Log serialises all file access through one mutex, giving the
// single-writer discipline the format requires. Open exactly one Log per
// file per process.
package turnlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxtale/voxtale/pkg/memstore"
)

// Record is one persisted conversation turn.
type Record struct {
	// ID is a unique identifier assigned at append time.
	ID string `json:"id"`

	// Messages is the user/assistant exchange, in order.
	Messages []memstore.Message `json:"messages"`

	// Synced reports whether the record has been delivered to the memory
	// store. Never reverts from true to false.
	Synced bool `json:"synced"`

	// RetryCount is the number of failed delivery attempts so far. It only
	// increases.
	RetryCount int `json:"retry_count"`

	// Timestamp is when the turn was finalized.
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord builds an unsynced Record for the given exchange.
func NewRecord(userText, assistantText string) Record {
	return Record{
		ID: uuid.NewString(),
		Messages: []memstore.Message{
			{Role: "user", Content: userText},
			{Role: "assistant", Content: assistantText},
		},
		Timestamp: time.Now(),
	}
}

// Entry pairs a record with its 1-based line number in the log file.
type Entry struct {
	Line   int
	Record Record
}

// Log is the file-backed turn log. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open prepares a Log at path, creating parent directories as needed. The
// file itself is created lazily on first append.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("turnlog: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("turnlog: create dir %s: %w", dir, err)
		}
	}
	return &Log{path: path}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes rec as a new line and returns its 1-based line number. The
// write is synchronous: when Append returns, the record is durable.
func (l *Log) Append(rec Record) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("turnlog: marshal record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("turnlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	line, err := l.countLines()
	if err != nil {
		return 0, err
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return 0, fmt.Errorf("turnlog: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("turnlog: sync: %w", err)
	}
	return line + 1, nil
}

// UpdateStatus rewrites the record at the given 1-based line with the new
// sync status and retry count. Retry counts never decrease; passing a lower
// value than the stored one is rejected.
func (l *Log) UpdateStatus(line int, synced bool, retryCount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}
	if line < 1 || line > len(lines) {
		return fmt.Errorf("turnlog: line %d out of range (1..%d)", line, len(lines))
	}

	var rec Record
	if err := json.Unmarshal([]byte(lines[line-1]), &rec); err != nil {
		return fmt.Errorf("turnlog: parse line %d: %w", line, err)
	}
	if retryCount < rec.RetryCount {
		return fmt.Errorf("turnlog: retry count for line %d would decrease (%d -> %d)",
			line, rec.RetryCount, retryCount)
	}

	rec.Synced = synced
	rec.RetryCount = retryCount

	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("turnlog: marshal line %d: %w", line, err)
	}
	lines[line-1] = string(updated)

	return l.writeLines(lines)
}

// Unsynced returns every record not yet marked synced, with line numbers,
// in file order. Corrupt lines are skipped — they cannot be retried.
func (l *Log) Unsynced() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for i, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if !rec.Synced {
			out = append(out, Entry{Line: i + 1, Record: rec})
		}
	}
	return out, nil
}

// readLines returns the raw lines of the log file, without trailing
// newlines. A missing file reads as empty.
func (l *Log) readLines() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("turnlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("turnlog: scan %s: %w", l.path, err)
	}
	return lines, nil
}

// writeLines atomically replaces the log file contents via a temp file and
// rename, so a crash mid-update never corrupts earlier records.
func (l *Log) writeLines(lines []string) error {
	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("turnlog: open temp: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("turnlog: write temp: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("turnlog: flush temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("turnlog: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("turnlog: close temp: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("turnlog: replace %s: %w", l.path, err)
	}
	return nil
}

func (l *Log) countLines() (int, error) {
	lines, err := l.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}
