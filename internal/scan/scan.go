package scan

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Candidate is one file discovered under the source root.
type Candidate struct {
	Path string
	Size int64
}

// normalize lowercases and converts separators to forward slashes so a
// fragment matches regardless of how the caller or the OS spelled the
// path. Both the path and the fragment go through this; stripping
// separators from only one side misses matches on mixed-separator
// paths.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\\", "/")
	return strings.Trim(s, "/")
}

// Excluded reports whether path falls under any of the exclusion
// fragments. Fragments are case-insensitive substrings of the
// normalized path ("#recycle", "@eaDir", "System Volume Information").
func Excluded(path string, fragments []string) bool {
	p := normalize(path)
	for _, f := range fragments {
		f = normalize(f)
		if f == "" {
			continue
		}
		if strings.Contains(p, f) {
			return true
		}
	}
	return false
}

// ListCandidates walks sourceRoot and returns every regular file not
// matched by an exclusion fragment. Unreadable entries are skipped, not
// fatal: one bad directory must not abort a multi-million-file walk.
func ListCandidates(sourceRoot string, exclude []string) ([]Candidate, error) {
	var out []Candidate

	err := filepath.WalkDir(sourceRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if Excluded(p, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, Candidate{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RelPath computes the source-root-relative identity key for a file.
// The relative suffix is preserved exactly apart from separator
// normalization to forward slashes, so the same tree produces the same
// keys on every platform.
func RelPath(root, full string) (string, error) {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
