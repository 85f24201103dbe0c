package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

type Snapshot struct {
	DurationMs     int64
	Total          int64
	Processed      int64
	OK             int64
	Missing        int64
	Mismatches     int64
	Errors         int64
	Resumed        int64
	Recovered      int64
	RecoveryFailed int64
	BytesHashed    int64
	TotalBytes     int64
}

func (s *Stats) Snapshot() Snapshot {
	dur := s.Duration()

	return Snapshot{
		DurationMs:     dur.Milliseconds(),
		Total:          atomic.LoadInt64(&s.Total),
		Processed:      atomic.LoadInt64(&s.Processed),
		OK:             atomic.LoadInt64(&s.OK),
		Missing:        atomic.LoadInt64(&s.Missing),
		Mismatches:     atomic.LoadInt64(&s.Mismatches),
		Errors:         atomic.LoadInt64(&s.Errors),
		Resumed:        atomic.LoadInt64(&s.Resumed),
		Recovered:      atomic.LoadInt64(&s.Recovered),
		RecoveryFailed: atomic.LoadInt64(&s.RecoveryFailed),
		BytesHashed:    atomic.LoadInt64(&s.BytesHashed),
		TotalBytes:     atomic.LoadInt64(&s.TotalBytes),
	}
}

func Print(s *Stats) {
	PrintSnapshot(s.Snapshot())
}

func PrintSnapshot(snap Snapshot) {
	fmt.Println("--- stats ---")
	fmt.Println("duration_ms:", snap.DurationMs)
	fmt.Println("total:", snap.Total)
	fmt.Println("resumed_ok:", snap.Resumed)
	fmt.Println("processed:", snap.Processed)
	fmt.Println("ok:", snap.OK)
	fmt.Println("missing:", snap.Missing)
	fmt.Println("mismatches:", snap.Mismatches)
	fmt.Println("errors:", snap.Errors)
	fmt.Println("recovered:", snap.Recovered)
	fmt.Println("recovery_failed:", snap.RecoveryFailed)
	fmt.Println("bytes_hashed:", humanize.Bytes(uint64(snap.BytesHashed)))

	if snap.DurationMs > 0 {
		secs := float64(snap.DurationMs) / 1000.0
		bps := uint64(float64(snap.BytesHashed) / secs)
		fmt.Printf("throughput: %s/s\n", humanize.Bytes(bps))
	}
}
