package clock

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// DriftStat keeps a fixed-capacity ring of recent A/V drift samples and
// reports their mean/stddev, exposed through Clock.DriftMeanStdDev; no
// controller logic reads it (DOMAIN STACK: gonum.org/v1/gonum/stat, since neither the teacher nor a
// hand-rolled Welford implementation gives the weighted-variance headroom
// a later resync heuristic may want).
type DriftStat struct {
	mu      sync.Mutex
	samples []float64
	cap     int
	next    int
	filled  bool
}

// NewDriftStat constructs a DriftStat holding up to capacity samples.
func NewDriftStat(capacity int) *DriftStat {
	if capacity <= 0 {
		capacity = 32
	}
	return &DriftStat{samples: make([]float64, capacity), cap: capacity}
}

// Add records one drift sample (seconds, audio-reported minus estimated).
func (d *DriftStat) Add(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples[d.next] = seconds
	d.next = (d.next + 1) % d.cap
	if d.next == 0 {
		d.filled = true
	}
}

// MeanStdDev returns the mean and (population) standard deviation of the
// currently held samples. Returns (0, 0) with no samples yet.
func (d *DriftStat) MeanStdDev() (mean, stddev float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.next
	if d.filled {
		n = d.cap
	}
	if n == 0 {
		return 0, 0
	}
	window := d.samples[:n]
	mean = stat.Mean(window, nil)
	stddev = stat.StdDev(window, nil)
	return mean, stddev
}
