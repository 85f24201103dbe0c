package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestExcluded_TableDriven(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		fragments []string
		want      bool
	}{
		{
			name:      "no fragments",
			path:      "/nas/anime/a.mkv",
			fragments: nil,
			want:      false,
		},
		{
			name:      "plain substring",
			path:      "/nas/#recycle/a.mkv",
			fragments: []string{"#recycle"},
			want:      true,
		},
		{
			name:      "case insensitive",
			path:      "/nas/System Volume Information/x",
			fragments: []string{"system volume information"},
			want:      true,
		},
		{
			name:      "backslash path against slash fragment",
			path:      `\\nas\share\#recycle\a.mkv`,
			fragments: []string{"#recycle/"},
			want:      true,
		},
		{
			name:      "slash path against backslash fragment",
			path:      "/nas/share/@eaDir/thumb.jpg",
			fragments: []string{`\@eadir\`},
			want:      true,
		},
		{
			name:      "fragment not present",
			path:      "/nas/share/recycled-art/a.png",
			fragments: []string{"#recycle"},
			want:      false,
		},
		{
			name:      "empty fragment never matches",
			path:      "/nas/share/a.png",
			fragments: []string{""},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excluded(tt.path, tt.fragments))
		})
	}
}

func TestListCandidates(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "a.txt", []byte("aaa"))
	writeFile(t, root, filepath.Join("sub", "b.txt"), []byte("bbbb"))
	writeFile(t, root, filepath.Join("#recycle", "junk.txt"), []byte("junk"))

	cands, err := ListCandidates(root, []string{"#recycle"})
	require.NoError(t, err)

	got := map[string]int64{}
	for _, c := range cands {
		rel, err := RelPath(root, c.Path)
		require.NoError(t, err)
		got[rel] = c.Size
	}

	assert.Equal(t, map[string]int64{
		"a.txt":     3,
		"sub/b.txt": 4,
	}, got)
}

func TestListCandidates_SkipsNonRegular(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("aaa"))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))

	cands, err := ListCandidates(root, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, filepath.Join(root, "a.txt"), cands[0].Path)
}

func TestRelPath_InjectiveAcrossTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("1"))
	writeFile(t, root, filepath.Join("d1", "a.txt"), []byte("2"))
	writeFile(t, root, filepath.Join("d1", "d2", "a.txt"), []byte("3"))

	cands, err := ListCandidates(root, nil)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	seen := map[string]string{}
	for _, c := range cands {
		rel, err := RelPath(root, c.Path)
		require.NoError(t, err)
		prev, dup := seen[rel]
		require.False(t, dup, "relative key %q maps to both %q and %q", rel, prev, c.Path)
		seen[rel] = c.Path
	}
}
