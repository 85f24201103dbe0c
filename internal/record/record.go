package record

// Status is the verification state of a single file. A record's status
// always reflects the most recent check performed on it.
type Status string

const (
	StatusOK       Status = "OK"
	StatusMissing  Status = "MISSING"
	StatusMismatch Status = "MISMATCH"
	StatusError    Status = "ERROR"

	// Assigned by the recovery engine.
	StatusFixedByCopy         Status = "FIXED_BY_COPY"
	StatusFixedByCopyLongPath Status = "FIXED_BY_COPY_LONGPATH"
	StatusFailedAfterCopy     Status = "FAILED_AFTER_COPY_HASHMISMATCH"
	StatusRecoveryFailed      Status = "RECOVERY_FAILED"

	// Assigned by re-validation.
	StatusMissingSrc       Status = "MISSING_SRC"
	StatusMissingDst       Status = "MISSING_DST"
	StatusFailedAfterRetry Status = "FAILED_AFTER_RETRY"
	StatusRevalError       Status = "REVAL_ERROR"
)

// statusOrder fixes the sort order of the persisted report so diffs
// between runs stay readable: broken files first, OK last.
var statusOrder = map[Status]int{
	StatusMissing:             0,
	StatusMismatch:            1,
	StatusError:               2,
	StatusRecoveryFailed:      3,
	StatusFailedAfterCopy:     4,
	StatusFailedAfterRetry:    5,
	StatusRevalError:          6,
	StatusMissingSrc:          7,
	StatusMissingDst:          8,
	StatusFixedByCopy:         9,
	StatusFixedByCopyLongPath: 10,
	StatusOK:                  11,
}

// Rank returns the status ordinal for report sorting. Unknown statuses
// sort before everything else so they stand out.
func (s Status) Rank() int {
	if r, ok := statusOrder[s]; ok {
		return r
	}
	return -1
}

// NeedsRecovery reports whether the recovery engine should pick up a
// record with this status.
func (s Status) NeedsRecovery() bool {
	return s == StatusMissing || s == StatusMismatch || s == StatusError
}

// Recovered reports whether the recovery engine touched a record with
// this status, successfully or not.
func (s Status) Recovered() bool {
	switch s {
	case StatusFixedByCopy, StatusFixedByCopyLongPath, StatusFailedAfterCopy, StatusRecoveryFailed:
		return true
	}
	return false
}

// FileRecord is the unit of state for one source file. RelativePath is
// the identity key: stable across runs and unique within a report.
// Empty SrcHash/DstHash means the hash was never computed.
type FileRecord struct {
	RelativePath string
	FullPath     string
	SizeBytes    int64
	SrcHash      string
	DstHash      string
	Status       Status
	Error        string
}

// Settled reports whether a record needs no further work this run. A
// previously verified OK file is never re-hashed.
func (r *FileRecord) Settled() bool {
	return r.Status == StatusOK
}

// Less orders records by (Status, RelativePath) for deterministic
// report output.
func Less(a, b *FileRecord) bool {
	if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
		return ra < rb
	}
	return a.RelativePath < b.RelativePath
}
