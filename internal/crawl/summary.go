package crawl

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Summary accumulates run totals (spec.md §4.7, "run summary").
// BytesHashed is touched from worker-pool goroutines and is updated with
// atomic adds; the other counters and the tracker outcomes are updated
// only from the single traversal goroutine, the counters with plain
// increments rather than atomic ones.
type Summary struct {
	DirectoriesScanned    int64
	SinglesProcessed      int64
	SequencesProcessed    int64
	SidecarsWritten       int64
	SidecarsMarkedMissing int64
	CacheHits             int64
	CacheMisses           int64
	BytesHashed           int64

	trackerOutcomes sync.Map
}

func (s *Summary) addTrackerOutcome(tag string) {
	if tag == "" {
		return
	}
	actual, _ := s.trackerOutcomes.LoadOrStore(tag, new(int64))
	atomic.AddInt64(actual.(*int64), 1)
}

// TrackerOutcomes returns a snapshot of tracker outcome counts by status
// tag.
func (s *Summary) TrackerOutcomes() map[string]int64 {
	result := make(map[string]int64)
	s.trackerOutcomes.Range(func(key, value any) bool {
		result[key.(string)] = atomic.LoadInt64(value.(*int64))
		return true
	})
	return result
}

// String renders the human-readable run report (spec.md §4.7).
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directories scanned: %d\n", atomic.LoadInt64(&s.DirectoriesScanned))
	fmt.Fprintf(&b, "Singles processed: %d\n", atomic.LoadInt64(&s.SinglesProcessed))
	fmt.Fprintf(&b, "Sequences processed: %d\n", atomic.LoadInt64(&s.SequencesProcessed))
	fmt.Fprintf(&b, "Sidecars written: %d\n", atomic.LoadInt64(&s.SidecarsWritten))
	fmt.Fprintf(&b, "Marked missing: %d\n", atomic.LoadInt64(&s.SidecarsMarkedMissing))
	fmt.Fprintf(&b, "Hash cache hits/misses: %d/%d\n", atomic.LoadInt64(&s.CacheHits), atomic.LoadInt64(&s.CacheMisses))
	fmt.Fprintf(&b, "Bytes hashed: %s\n", humanize.Bytes(uint64(atomic.LoadInt64(&s.BytesHashed))))
	outcomes := s.TrackerOutcomes()
	if len(outcomes) > 0 {
		fmt.Fprint(&b, "Tracker outcomes:")
		for tag, count := range outcomes {
			fmt.Fprintf(&b, " %s=%d", tag, count)
		}
		fmt.Fprint(&b, "\n")
	}
	return b.String()
}
