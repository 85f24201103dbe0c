// Package progress renders the validation progress bar. It is fed
// entirely by events published on the run bus; removing it changes no
// outcome of any pipeline stage.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/schollz/progressbar/v3"

	"mirrorverify/internal/events"
	"mirrorverify/internal/record"
)

// CurrentFn reports the path being processed right now, best effort.
type CurrentFn func() string

type Bar struct {
	bar     *progressbar.ProgressBar
	bus     EventBus.Bus
	ch      chan int64
	done    chan struct{}
	current CurrentFn

	total      int64
	processed  int64
	ok         int64
	mismatches int64
	missing    int64
	errs       int64
}

// New builds a byte-denominated bar for totalBytes of hashing across
// totalFiles files and subscribes it to the bus. current may be nil.
func New(totalBytes, totalFiles int64, bus EventBus.Bus, current CurrentFn) (*Bar, error) {
	b := &Bar{
		bus:     bus,
		ch:      make(chan int64, 16384),
		done:    make(chan struct{}),
		current: current,
		total:   totalFiles,
	}

	b.bar = progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription("hashing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
	)
	if err := b.bar.RenderBlank(); err != nil {
		return nil, err
	}

	go func() {
		defer close(b.done)
		for n := range b.ch {
			_ = b.bar.Add64(n)
		}
		_ = b.bar.Finish()
	}()

	if err := bus.Subscribe(events.TopicBytesHashed, b.onBytes); err != nil {
		return nil, err
	}
	if err := bus.Subscribe(events.TopicFileDone, b.onFileDone); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bar) onBytes(n int64) {
	if n <= 0 {
		return
	}
	b.ch <- n
}

func (b *Bar) onFileDone(status string) {
	atomic.AddInt64(&b.processed, 1)
	switch record.Status(status) {
	case record.StatusOK:
		atomic.AddInt64(&b.ok, 1)
	case record.StatusMissing:
		atomic.AddInt64(&b.missing, 1)
	case record.StatusMismatch:
		atomic.AddInt64(&b.mismatches, 1)
	default:
		atomic.AddInt64(&b.errs, 1)
	}

	desc := fmt.Sprintf("hashing %d/%d files | ok=%d mismatch=%d missing=%d err=%d",
		atomic.LoadInt64(&b.processed), b.total,
		atomic.LoadInt64(&b.ok),
		atomic.LoadInt64(&b.mismatches),
		atomic.LoadInt64(&b.missing),
		atomic.LoadInt64(&b.errs),
	)
	if b.current != nil {
		if p := b.current(); p != "" {
			desc += " | " + filepath.Base(p)
		}
	}
	b.bar.Describe(desc)
}

// Close unsubscribes from the bus and finishes rendering. Call only
// after the validation stage has been joined.
func (b *Bar) Close() {
	_ = b.bus.Unsubscribe(events.TopicBytesHashed, b.onBytes)
	_ = b.bus.Unsubscribe(events.TopicFileDone, b.onFileDone)
	close(b.ch)
	<-b.done
}
