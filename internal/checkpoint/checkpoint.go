// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists completed analysis results as an append-only
// JSON-lines file so an interrupted run can resume. Only successes are
// recorded; failed records are retried by the next run.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pdiddy/paper-triage/pkg/types"
)

const maxLineSize = 16 << 20

// Entry is one line of the checkpoint file.
type Entry struct {
	ID          string               `json:"id"`
	CompletedAt time.Time            `json:"completed_at"`
	Result      types.AnalysisResult `json:"result"`
}

// Log is the content of a checkpoint file, keyed by record identifier.
type Log struct {
	results   map[string]types.AnalysisResult
	truncated bool
}

// Load reads the checkpoint at path. A missing file is an empty log. An
// unparseable final line is the remnant of an interrupted write and is
// ignored; an unparseable line elsewhere is an error.
func Load(path string) (*Log, error) {
	l := &Log{results: make(map[string]types.AnalysisResult)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var pending error
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if pending != nil {
			return nil, pending
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			if err == nil {
				err = errors.New("missing id")
			}
			pending = fmt.Errorf("checkpoint %s line %d: %w", path, lineNo, err)
			continue
		}
		l.results[e.ID] = e.Result
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	l.truncated = pending != nil
	return l, nil
}

// Has reports whether id completed in a previous run.
func (l *Log) Has(id string) bool {
	_, ok := l.results[id]
	return ok
}

// IDs returns the checkpointed identifiers in sorted order.
func (l *Log) IDs() []string {
	ids := make([]string, 0, len(l.results))
	for id := range l.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Results returns the checkpointed results sorted by identifier.
func (l *Log) Results() []types.AnalysisResult {
	out := make([]types.AnalysisResult, 0, len(l.results))
	for _, id := range l.IDs() {
		out = append(out, l.results[id])
	}
	return out
}

// Len returns the number of checkpointed records.
func (l *Log) Len() int { return len(l.results) }

// Truncated reports whether Load dropped an incomplete final line.
func (l *Log) Truncated() bool { return l.truncated }

// Writer appends entries to a checkpoint file. It is not safe for
// concurrent use; the dispatcher is its only caller.
type Writer struct {
	f   *os.File
	now func() time.Time
}

// OpenWriter opens path for appending, creating it and its directory as
// needed. If the file ends in a partial line, a newline is written first so
// the next entry starts cleanly.
func OpenWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating checkpoint directory: %w", err)
		}
	}

	needsNewline, err := endsMidLine(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	if needsNewline {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return nil, fmt.Errorf("repairing checkpoint %s: %w", path, err)
		}
	}
	return &Writer{f: f, now: time.Now}, nil
}

// Append writes one line per result and syncs the file.
func (w *Writer) Append(results []types.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	now := w.now().UTC()
	for _, r := range results {
		if err := enc.Encode(Entry{ID: r.Record.ID, CompletedAt: now, Result: r}); err != nil {
			return fmt.Errorf("encoding checkpoint entry %s: %w", r.Record.ID, err)
		}
	}

	if _, err := w.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

func endsMidLine(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat checkpoint %s: %w", path, err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return false, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	return last[0] != '\n', nil
}
