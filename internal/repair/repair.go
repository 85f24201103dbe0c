// Package repair re-copies files that validation found missing or
// corrupted. Recovery is strictly sequential: it mutates the
// destination tree, the broken set is small relative to the full tree,
// and predictability matters more than throughput here.
package repair

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"mirrorverify/internal/metrics"
	"mirrorverify/internal/record"
	"mirrorverify/internal/runlog"
	"mirrorverify/internal/validate"
)

// Strategy is one rung of the recovery ladder: a way of copying source
// over destination, with the status a hash-verified success earns.
type Strategy struct {
	Name  string
	Fixed record.Status
	Copy  func(src, dst string) error
}

// DefaultStrategies returns the production ladder: a plain copy, then
// the same copy through long-path-escaped names for destinations that
// exceed the conventional path-length limit.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:  "copy",
			Fixed: record.StatusFixedByCopy,
			Copy:  CopyFile,
		},
		{
			Name:  "copy-longpath",
			Fixed: record.StatusFixedByCopyLongPath,
			Copy: func(src, dst string) error {
				return CopyFile(LongPath(src), LongPath(dst))
			},
		},
	}
}

// CopyFile copies src over dst, creating the parent directory and
// truncating any existing destination.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type Engine struct {
	sourceRoot string
	destRoot   string
	algorithm  string
	strategies []Strategy
	stats      *metrics.Stats
	log        *runlog.Logger
}

func NewEngine(sourceRoot, destRoot, algorithm string, strategies []Strategy, stats *metrics.Stats, log *runlog.Logger) *Engine {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Engine{
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
		algorithm:  algorithm,
		strategies: strategies,
		stats:      stats,
		log:        log,
	}
}

// Run repairs every record in merged whose status calls for recovery
// (MISSING, MISMATCH, ERROR), mutating records in place. It returns
// the records it touched, in processing order, for re-validation.
func (e *Engine) Run(merged map[string]*record.FileRecord) []*record.FileRecord {
	var touched []*record.FileRecord
	for _, rec := range sortedByKey(merged) {
		if !rec.Status.NeedsRecovery() {
			continue
		}
		e.repairOne(rec)
		touched = append(touched, rec)

		switch rec.Status {
		case record.StatusFixedByCopy, record.StatusFixedByCopyLongPath:
			atomic.AddInt64(&e.stats.Recovered, 1)
		default:
			atomic.AddInt64(&e.stats.RecoveryFailed, 1)
		}
		if e.log != nil {
			e.log.Record(string(rec.Status), rec.FullPath, rec.Error)
		}
	}
	return touched
}

// repairOne walks the strategy ladder for a single record. A copy or
// hash failure falls through to the next rung; a hash mismatch deletes
// the bad destination first. The last rung's failure is terminal:
// RECOVERY_FAILED on error, FAILED_AFTER_COPY_HASHMISMATCH on
// mismatch. No cancellation: the ladder always runs to a terminal
// status.
func (e *Engine) repairOne(rec *record.FileRecord) {
	dst := filepath.Join(e.destRoot, filepath.FromSlash(rec.RelativePath))

	for i, strat := range e.strategies {
		last := i == len(e.strategies)-1

		if err := strat.Copy(rec.FullPath, dst); err != nil {
			if last {
				rec.Status = record.StatusRecoveryFailed
				rec.Error = err.Error()
				return
			}
			continue
		}

		srcHash, err := validate.FileHashHex(rec.FullPath, e.algorithm, nil)
		if err == nil {
			var dstHash string
			dstHash, err = validate.FileHashHex(dst, e.algorithm, nil)
			if err == nil {
				rec.SrcHash = srcHash
				rec.DstHash = dstHash
				if srcHash == dstHash {
					rec.Status = strat.Fixed
					rec.Error = ""
					return
				}
				// Bad copy: remove it so a later run sees MISSING
				// rather than trusting the corrupt bytes.
				_ = os.Remove(dst)
				if last {
					rec.Status = record.StatusFailedAfterCopy
					rec.Error = ""
					return
				}
				continue
			}
		}
		if last {
			rec.Status = record.StatusRecoveryFailed
			rec.Error = err.Error()
			return
		}
	}
}

// sortedByKey gives the engine a deterministic processing order; map
// iteration order would make run logs differ between identical runs.
func sortedByKey(m map[string]*record.FileRecord) []*record.FileRecord {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*record.FileRecord, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
