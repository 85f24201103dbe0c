package metrics

import "time"

// Stats holds the run counters. Fields mutated during validation are
// only touched through sync/atomic; everything else is single-threaded.
type Stats struct {
	Total      int64
	TotalBytes int64

	Processed  int64
	OK         int64
	Missing    int64
	Mismatches int64
	Errors     int64
	Resumed    int64

	Recovered      int64
	RecoveryFailed int64

	BytesHashed int64
	Started     time.Time
	Finished    time.Time
}

func (s *Stats) Start() { s.Started = time.Now() }
func (s *Stats) Stop()  { s.Finished = time.Now() }
func (s *Stats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}
