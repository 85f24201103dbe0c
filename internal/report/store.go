// Package report persists and reloads the run report. The report file
// is both the output of a run and the resume input of the next one:
// records whose status is OK are never re-hashed.
package report

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mirrorverify/internal/record"
)

// Column layout of the report file. One logical record per distinct
// relative path, tab-separated, header row first.
var columns = []string{"FullPath", "RelativePath", "SizeBytes", "SrcHash", "DstHash", "Status", "Error"}

// Load reads a prior run's report into a map keyed by relative path.
// Any failure to read or parse degrades to a cold start: an empty map,
// a warning, and no error. A broken resume file must never block a run.
func Load(path string, logger *slog.Logger) map[string]*record.FileRecord {
	out := make(map[string]*record.FileRecord)

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("resume report unreadable, starting cold", "path", path, "error", err)
		}
		return out
	}
	defer func() {
		_ = f.Close()
	}()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return out
	}
	if header := sc.Text(); header != strings.Join(columns, "\t") {
		logger.Warn("resume report has unknown header, starting cold", "path", path)
		return out
	}

	line := 1
	for sc.Scan() {
		line++
		rec, err := parseRow(sc.Text())
		if err != nil {
			logger.Warn("skipping malformed resume row", "path", path, "line", line, "error", err)
			continue
		}
		out[rec.RelativePath] = rec
	}
	if err := sc.Err(); err != nil {
		logger.Warn("resume report truncated, keeping rows read so far", "path", path, "error", err)
	}
	return out
}

func parseRow(row string) (*record.FileRecord, error) {
	fields := strings.Split(row, "\t")
	if len(fields) < len(columns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(columns), len(fields))
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad size %q: %w", fields[2], err)
	}
	if fields[1] == "" {
		return nil, fmt.Errorf("empty relative path")
	}
	return &record.FileRecord{
		FullPath:     fields[0],
		RelativePath: fields[1],
		SizeBytes:    size,
		SrcHash:      fields[3],
		DstHash:      fields[4],
		Status:       record.Status(fields[5]),
		Error:        fields[6],
	}, nil
}

// Merge combines resume entries with fresh results. A fresh result
// always wins its key; resume-only keys are carried through untouched,
// so a record is never silently dropped between runs.
func Merge(resume, fresh map[string]*record.FileRecord) map[string]*record.FileRecord {
	out := make(map[string]*record.FileRecord, len(resume)+len(fresh))
	for k, v := range resume {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

// Sorted returns the records ordered by (Status, RelativePath).
func Sorted(m map[string]*record.FileRecord) []*record.FileRecord {
	recs := make([]*record.FileRecord, 0, len(m))
	for _, r := range m {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return record.Less(recs[i], recs[j]) })
	return recs
}

// Save overwrites the report at path with the full record set. The
// write goes to a temp file first and is renamed into place so an
// interrupted run never leaves a half-written resume input behind.
func Save(path string, m map[string]*record.FileRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640) // #nosec G304
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	for _, r := range Sorted(m) {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.FullPath, r.RelativePath, r.SizeBytes, r.SrcHash, r.DstHash, r.Status, oneline(r.Error))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return os.Rename(tmp, path)
}

// SaveMismatch rewrites the companion mismatch file: one line per
// non-OK record, Status<TAB>RelativePath<TAB>Error.
func SaveMismatch(path string, m map[string]*record.FileRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create mismatch dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640) // #nosec G304
	if err != nil {
		return fmt.Errorf("create mismatch file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, r := range Sorted(m) {
		if r.Status == record.StatusOK {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Status, r.RelativePath, oneline(r.Error))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write mismatch file: %w", err)
	}
	return f.Close()
}

// oneline keeps a record on a single row even when its captured error
// message contains tabs or newlines.
func oneline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}
