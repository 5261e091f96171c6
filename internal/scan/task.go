package scan

import (
	"net/netip"
	"sync/atomic"
	"time"
)

// Range is a contiguous run of host octets [Start, Start+Len).
type Range struct {
	Start int
	Len   int
}

// End returns the first octet past the range.
func (r Range) End() int {
	return r.Start + r.Len
}

// Partition splits the host octets 1..254 across workers. Every worker gets
// 254/workers+1 octets; the last ranges are clipped at 254 and may be empty.
func Partition(workers int) []Range {
	if workers < 1 {
		return nil
	}
	perWorker := LastHost/workers + 1

	ranges := make([]Range, workers)
	for i := range ranges {
		start := FirstHost + i*perWorker
		n := perWorker
		switch {
		case start > LastHost:
			n = 0
		case start+n-1 > LastHost:
			n = LastHost - start + 1
		}
		ranges[i] = Range{Start: start, Len: n}
	}
	return ranges
}

// Task describes the work of one worker. Results is the worker's own slice of the
// scan result: Results[octet-Start] belongs to host octet.
type Task struct {
	Index   int
	Base    netip.Addr
	Range   Range
	Results []int8
	Timeout time.Duration

	done atomic.Bool
}

// Done reports whether the worker has finished.
func (t *Task) Done() bool {
	return t.done.Load()
}

func (t *Task) finish() {
	t.done.Store(true)
}

// empty reports whether the task has nothing to probe.
func (t *Task) empty() bool {
	return t.Range.Len <= 0 || t.Range.Start > LastHost
}
