// Package reverify performs the final independent hash recheck of
// every file the recovery engine touched, assigning the authoritative
// terminal status.
package reverify

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"mirrorverify/internal/record"
	"mirrorverify/internal/runlog"
	"mirrorverify/internal/validate"
)

type Options struct {
	DestRoot  string
	Algorithm string
}

// Run re-hashes each touched record sequentially, fresh, independent
// of whatever the recovery engine computed. Records are mutated in
// place; the caller's merged map picks the changes up through the
// shared pointers.
func Run(touched []*record.FileRecord, opts Options, log *runlog.Logger) {
	for _, rec := range touched {
		classify(rec, opts)
		if log != nil {
			log.Record(string(rec.Status), rec.FullPath, rec.Error)
		}
	}
}

func classify(rec *record.FileRecord, opts Options) {
	incoming := rec.Status
	dst := filepath.Join(opts.DestRoot, filepath.FromSlash(rec.RelativePath))

	srcExists, err := exists(rec.FullPath)
	if err != nil {
		rec.Status = record.StatusRevalError
		rec.Error = err.Error()
		return
	}
	dstExists, err := exists(dst)
	if err != nil {
		rec.Status = record.StatusRevalError
		rec.Error = err.Error()
		return
	}

	switch {
	case !srcExists && !dstExists:
		// Nothing left to compare; the recovery failure already on the
		// record is the most recent truth.
		return
	case !srcExists:
		rec.Status = record.StatusMissingSrc
		return
	case !dstExists:
		rec.Status = record.StatusMissingDst
		return
	}

	srcHash, err := validate.FileHashHex(rec.FullPath, opts.Algorithm, nil)
	if err != nil {
		rec.Status = record.StatusRevalError
		rec.Error = err.Error()
		return
	}
	dstHash, err := validate.FileHashHex(dst, opts.Algorithm, nil)
	if err != nil {
		rec.Status = record.StatusRevalError
		rec.Error = err.Error()
		return
	}

	rec.SrcHash = srcHash
	rec.DstHash = dstHash
	rec.Error = ""

	if srcHash == dstHash {
		rec.Status = record.StatusOK
		return
	}

	// A file fixed by copy already passed the copy's own hash check;
	// content that changed between recovery and this recheck is a
	// benign source-side edit, not a bad copy.
	if incoming == record.StatusFixedByCopy || incoming == record.StatusFixedByCopyLongPath {
		rec.Status = record.StatusOK
		return
	}
	rec.Status = record.StatusFailedAfterRetry
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
