// Package validate implements the concurrent hash-validation pool: N
// workers drain a shared queue of candidate files, hash the source and
// destination copy of each, and write one FileRecord per file into a
// shared result map.
package validate

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/asaskevich/EventBus"

	"mirrorverify/internal/events"
	"mirrorverify/internal/metrics"
	"mirrorverify/internal/record"
	"mirrorverify/internal/runlog"
	"mirrorverify/internal/scan"
)

type Options struct {
	Workers    int
	Algorithm  string
	SourceRoot string
	DestRoot   string
}

// current is the "currently processing" indicator backing the progress
// display. Updates are opportunistic: a worker that cannot take the
// lock immediately skips its update. Last writer wins and entries may
// be skipped; nothing reads this for correctness.
type current struct {
	mu   sync.Mutex
	path string
}

func (c *current) set(p string) {
	if c.mu.TryLock() {
		c.path = p
		c.mu.Unlock()
	}
}

func (c *current) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Pool validates a batch of candidates. Construct with New, call Run
// once; Run returns only after every worker has been joined.
type Pool struct {
	opts  Options
	stats *metrics.Stats
	log   *runlog.Logger
	bus   EventBus.Bus

	cur current

	mu      sync.Mutex
	results map[string]*record.FileRecord
}

func New(opts Options, stats *metrics.Stats, log *runlog.Logger, bus EventBus.Bus) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pool{
		opts:    opts,
		stats:   stats,
		log:     log,
		bus:     bus,
		results: make(map[string]*record.FileRecord),
	}
}

// Current returns the most recently observed in-flight path, for
// progress display only.
func (p *Pool) Current() string { return p.cur.get() }

// Run hashes every candidate and returns the result map keyed by
// relative path. One file's failure never affects another; workers keep
// draining the queue until it is empty.
func (p *Pool) Run(cands []scan.Candidate) map[string]*record.FileRecord {
	jobs := make(chan scan.Candidate)
	var wg sync.WaitGroup

	wg.Add(p.opts.Workers)
	for i := 0; i < p.opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for c := range jobs {
				p.processOne(c)
			}
		}()
	}

	for _, c := range cands {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	return p.results
}

func (p *Pool) processOne(c scan.Candidate) {
	p.cur.set(c.Path)

	rec := p.validate(c)

	// Each worker owns a distinct key, so the map insert is the only
	// operation that needs the lock.
	p.mu.Lock()
	p.results[rec.RelativePath] = rec
	p.mu.Unlock()

	p.account(rec)
	if p.log != nil {
		p.log.Record(string(rec.Status), rec.FullPath, rec.Error)
	}
	if p.bus != nil {
		p.bus.Publish(events.TopicFileDone, string(rec.Status))
	}
}

func (p *Pool) validate(c scan.Candidate) *record.FileRecord {
	rec := &record.FileRecord{
		FullPath:  c.Path,
		SizeBytes: c.Size,
	}

	rel, err := scan.RelPath(p.opts.SourceRoot, c.Path)
	if err != nil {
		rec.RelativePath = c.Path
		rec.Status = record.StatusError
		rec.Error = err.Error()
		return rec
	}
	rec.RelativePath = rel

	dst := filepath.Join(p.opts.DestRoot, filepath.FromSlash(rel))

	if _, err := os.Stat(dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			rec.Status = record.StatusMissing
			return rec
		}
		rec.Status = record.StatusError
		rec.Error = err.Error()
		return rec
	}

	onProgress := func(n int64) {
		atomic.AddInt64(&p.stats.BytesHashed, n)
		if p.bus != nil {
			p.bus.Publish(events.TopicBytesHashed, n)
		}
	}

	srcHash, err := FileHashHex(c.Path, p.opts.Algorithm, onProgress)
	if err != nil {
		rec.Status = record.StatusError
		rec.Error = err.Error()
		return rec
	}
	dstHash, err := FileHashHex(dst, p.opts.Algorithm, onProgress)
	if err != nil {
		rec.Status = record.StatusError
		rec.Error = err.Error()
		return rec
	}

	rec.SrcHash = srcHash
	rec.DstHash = dstHash
	if srcHash == dstHash {
		rec.Status = record.StatusOK
	} else {
		rec.Status = record.StatusMismatch
	}
	return rec
}

func (p *Pool) account(rec *record.FileRecord) {
	atomic.AddInt64(&p.stats.Processed, 1)
	switch rec.Status {
	case record.StatusOK:
		atomic.AddInt64(&p.stats.OK, 1)
	case record.StatusMissing:
		atomic.AddInt64(&p.stats.Missing, 1)
	case record.StatusMismatch:
		atomic.AddInt64(&p.stats.Mismatches, 1)
	default:
		atomic.AddInt64(&p.stats.Errors, 1)
	}
}
