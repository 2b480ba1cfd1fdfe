package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TimeValue is a scalar sample at a point in time, ordered by value only.
type TimeValue struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// TimeValueWindow is a bounded FIFO window over TimeValues keeping a
// value-ordered index, so the current min and max are available without
// scanning. Appending beyond capacity evicts the oldest sample.
type TimeValueWindow struct {
	maxSize int
	queue   []TimeValue
	sorted  []TimeValue
}

func NewTimeValueWindow(maxSize int) *TimeValueWindow {
	if maxSize < 1 {
		maxSize = 1
	}
	return &TimeValueWindow{
		maxSize: maxSize,
		queue:   make([]TimeValue, 0, maxSize),
		sorted:  make([]TimeValue, 0, maxSize),
	}
}

func (w *TimeValueWindow) Len() int {
	return len(w.queue)
}

// Append inserts a sample, evicting the oldest one first when the window is
// at capacity.
func (w *TimeValueWindow) Append(tv TimeValue) {
	if len(w.queue) >= w.maxSize {
		oldest := w.queue[0]
		w.queue = w.queue[1:]
		w.removeSorted(oldest)
	}

	w.queue = append(w.queue, tv)
	i := sort.Search(len(w.sorted), func(i int) bool {
		return w.sorted[i].Value.GreaterThan(tv.Value)
	})
	w.sorted = append(w.sorted, TimeValue{})
	copy(w.sorted[i+1:], w.sorted[i:])
	w.sorted[i] = tv
}

func (w *TimeValueWindow) removeSorted(tv TimeValue) {
	// Jump to the first entry with an equal value, then scan the equal run
	// for the matching timestamp.
	i := sort.Search(len(w.sorted), func(i int) bool {
		return !w.sorted[i].Value.LessThan(tv.Value)
	})
	for ; i < len(w.sorted) && w.sorted[i].Value.Equal(tv.Value); i++ {
		if w.sorted[i].Time.Equal(tv.Time) {
			w.sorted = append(w.sorted[:i], w.sorted[i+1:]...)
			return
		}
	}
}

// Min returns the smallest sample currently in the window.
func (w *TimeValueWindow) Min() (TimeValue, bool) {
	if len(w.sorted) == 0 {
		return TimeValue{}, false
	}
	return w.sorted[0], true
}

// Max returns the largest sample currently in the window.
func (w *TimeValueWindow) Max() (TimeValue, bool) {
	if len(w.sorted) == 0 {
		return TimeValue{}, false
	}
	return w.sorted[len(w.sorted)-1], true
}
