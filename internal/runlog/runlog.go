// Package runlog owns the two append-only run logs: the activity log,
// which records every completed file, and the per-algorithm hash log.
// Both survive across runs; each run appends a header marker and then
// one tab-separated line per file. Appends are safe from multiple
// workers; no ordering is guaranteed between interleaved lines.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger appends verification lines to the activity and hash logs.
type Logger struct {
	mu       sync.Mutex
	activity *os.File
	hash     *os.File
}

// Open creates or opens the run logs under dir. The hash log is named
// after the algorithm (e.g. sha256.log) so switching algorithms starts
// a separate history.
func Open(dir, algorithm string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	activity, err := openAppend(filepath.Join(dir, "activity.log"))
	if err != nil {
		return nil, err
	}
	hashName := strings.ToLower(strings.TrimSpace(algorithm)) + ".log"
	hash, err := openAppend(filepath.Join(dir, hashName))
	if err != nil {
		_ = activity.Close()
		return nil, err
	}

	l := &Logger{activity: activity, hash: hash}
	l.header()
	return l, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return f, nil
}

// header marks the start of a run in both logs.
func (l *Logger) header() {
	line := fmt.Sprintf("# run %s\n", time.Now().Format(timeLayout))
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.activity.WriteString(line)
	_, _ = l.hash.WriteString(line)
}

// Record appends one completed-file line to both logs:
// timestamp<TAB>status<TAB>path[<TAB>error]. Log write failures are
// swallowed; the logs are an audit trail, not pipeline state.
func (l *Logger) Record(status, path, errMsg string) {
	var b strings.Builder
	b.WriteString(time.Now().Format(timeLayout))
	b.WriteByte('\t')
	b.WriteString(status)
	b.WriteByte('\t')
	b.WriteString(path)
	if errMsg != "" {
		b.WriteByte('\t')
		b.WriteString(sanitize(errMsg))
	}
	b.WriteByte('\n')
	line := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.activity.WriteString(line)
	_, _ = l.hash.WriteString(line)
}

// sanitize keeps log lines one-per-record even when an error message
// contains newlines or tabs.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}

// Close flushes and closes both logs.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.activity.Close()
	err2 := l.hash.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
