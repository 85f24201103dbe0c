package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirrorverify/internal/config"
	"mirrorverify/internal/record"
	"mirrorverify/internal/report"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func testConfig(t *testing.T, src, dst string) config.Config {
	t.Helper()
	logDir := t.TempDir()
	return config.Config{
		SourceRoot:      src,
		DestRoot:        dst,
		Workers:         2,
		Algorithm:       "SHA256",
		LogDir:          logDir,
		ReportPath:      filepath.Join(logDir, "report.tsv"),
		MismatchPath:    filepath.Join(logDir, "mismatches.tsv"),
		DisableProgress: true,
	}
}

// The canonical three-file scenario: a.txt identical, b.txt source
// only, c.txt present on both sides with different content. After one
// full run everything must land on OK.
func TestRun_ScenarioRepairsEverything(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", []byte("identical"))
	writeFile(t, dst, "a.txt", []byte("identical"))
	writeFile(t, src, "b.txt", []byte("source only"))
	writeFile(t, src, "c.txt", []byte("source content"))
	writeFile(t, dst, "c.txt", []byte("other content!"))

	cfg := testConfig(t, src, dst)
	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)

	assert.Equal(t, int64(3), snap.Processed)
	assert.Equal(t, int64(1), snap.OK)
	assert.Equal(t, int64(1), snap.Missing)
	assert.Equal(t, int64(1), snap.Mismatches)
	assert.Equal(t, int64(2), snap.Recovered)
	assert.Equal(t, int64(0), snap.RecoveryFailed)

	final := report.Load(cfg.ReportPath, discard())
	require.Len(t, final, 3)
	for rel, rec := range final {
		assert.Equal(t, record.StatusOK, rec.Status, "%s", rel)
		assert.Equal(t, rec.SrcHash, rec.DstHash, "%s", rel)
		assert.NotEmpty(t, rec.SrcHash, "%s", rel)
	}

	data, err := os.ReadFile(filepath.Join(dst, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "source only", string(data))
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", []byte("one"))
	writeFile(t, dst, "a.txt", []byte("one"))
	writeFile(t, src, filepath.Join("sub", "b.txt"), []byte("two"))
	writeFile(t, dst, filepath.Join("sub", "b.txt"), []byte("two"))

	cfg := testConfig(t, src, dst)

	_, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)

	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)

	assert.Equal(t, int64(0), snap.Processed, "second-run work queue is empty")
	assert.Equal(t, int64(2), snap.Resumed)

	second, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "final report unchanged")
}

func TestRun_ResumeSkipsOnlySettled(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	okPath := writeFile(t, src, "ok.txt", []byte("fine"))
	writeFile(t, dst, "ok.txt", []byte("fine"))
	badPath := writeFile(t, src, "bad.txt", []byte("fixed now"))
	writeFile(t, dst, "bad.txt", []byte("fixed now"))

	cfg := testConfig(t, src, dst)

	// Hand-written resume state: ok.txt settled, bad.txt mismatched.
	resume := map[string]*record.FileRecord{
		"ok.txt": {
			RelativePath: "ok.txt", FullPath: okPath, SizeBytes: 4,
			SrcHash: "CAFE", DstHash: "CAFE", Status: record.StatusOK,
		},
		"bad.txt": {
			RelativePath: "bad.txt", FullPath: badPath, SizeBytes: 9,
			SrcHash: "AAAA", DstHash: "BBBB", Status: record.StatusMismatch,
		},
	}
	require.NoError(t, report.Save(cfg.ReportPath, resume))

	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.Processed, "only the mismatch re-enqueued")
	assert.Equal(t, int64(1), snap.Resumed)

	final := report.Load(cfg.ReportPath, discard())
	require.Len(t, final, 2)
	assert.Equal(t, "CAFE", final["ok.txt"].SrcHash, "settled record passed through untouched")
	assert.Equal(t, record.StatusOK, final["bad.txt"].Status, "mismatch re-verified clean")
	assert.NotEqual(t, "AAAA", final["bad.txt"].SrcHash)
}

func TestRun_EmptySourceIsCleanSuccess(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), t.TempDir())
	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Processed)
}

func TestRun_ExclusionsNeverEnqueued(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "keep.txt", []byte("keep"))
	writeFile(t, dst, "keep.txt", []byte("keep"))
	writeFile(t, src, filepath.Join("#recycle", "junk.txt"), []byte("junk"))

	cfg := testConfig(t, src, dst)
	cfg.ExcludePaths = []string{"#recycle"}

	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.Processed)
	final := report.Load(cfg.ReportPath, discard())
	require.Len(t, final, 1)
	_, ok := final["keep.txt"]
	assert.True(t, ok)
}

func TestRun_UnrecoverableSourceGone(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "keeper.txt", []byte("healthy"))
	writeFile(t, dst, "keeper.txt", []byte("healthy"))
	cfg := testConfig(t, src, dst)

	// Resume state left by an interrupted run: doomed.txt was found
	// MISSING, and its source has vanished since. Recovery has nothing
	// to copy from and must fail terminally, not abort the run.
	resume := map[string]*record.FileRecord{
		"doomed.txt": {
			RelativePath: "doomed.txt",
			FullPath:     filepath.Join(src, "doomed.txt"),
			SizeBytes:    11,
			Status:       record.StatusMissing,
		},
	}
	require.NoError(t, report.Save(cfg.ReportPath, resume))

	snap, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.RecoveryFailed)

	final := report.Load(cfg.ReportPath, discard())
	require.Len(t, final, 2)
	assert.Equal(t, record.StatusRecoveryFailed, final["doomed.txt"].Status)
	assert.NotEmpty(t, final["doomed.txt"].Error)
	assert.Equal(t, record.StatusOK, final["keeper.txt"].Status)
}

func TestRun_ReportUsableAsNextRunInput(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", []byte("stable"))
	writeFile(t, dst, "a.txt", []byte("stable"))

	cfg := testConfig(t, src, dst)
	_, err := Run(context.Background(), cfg, discard())
	require.NoError(t, err)

	loaded := report.Load(cfg.ReportPath, discard())
	require.Len(t, loaded, 1)
	rec := loaded["a.txt"]
	assert.True(t, rec.Settled())
	assert.Equal(t, int64(len("stable")), rec.SizeBytes)
	assert.Equal(t, filepath.Join(src, "a.txt"), rec.FullPath)
}
