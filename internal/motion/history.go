package motion

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// Horizon is how much history is retained behind the newest report.
	Horizon = time.Second

	// MaxStep bounds a single integration segment. A gap larger than
	// this means the velocity data is too sparse or stale to
	// interpolate across, so the walk stops there.
	MaxStep = 100 * time.Millisecond

	warnInterval = 10 * time.Second
)

// History is a time-ordered window of recent velocity reports. It is
// written by the velocity subscription and read by the synchronizer
// during compensation, so it carries its own lock and never touches
// the round lock.
type History struct {
	mu       sync.Mutex
	reports  []VelocityReport
	lastWarn time.Time
}

func NewHistory() *History {
	return &History{}
}

// Record appends a report and trims everything older than Horizon
// behind it. A report stamped before the newest one we already hold
// means the source restarted (log replay, clock reset); stale history
// would extrapolate garbage, so the window is cleared first.
func (h *History) Record(r VelocityReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.reports); n > 0 && r.Stamp.Before(h.reports[n-1].Stamp) {
		h.reports = h.reports[:0]
	}
	h.reports = append(h.reports, r)

	cutoff := r.Stamp.Add(-Horizon)
	i := 0
	for i < len(h.reports) && !h.reports[i].Stamp.After(cutoff) {
		i++
	}
	if i > 0 {
		h.reports = append(h.reports[:0], h.reports[i:]...)
	}
}

// Len returns the number of retained reports.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reports)
}

// Compensate returns the planar rigid transform mapping a capture at
// newStamp back into the frame at oldStamp, by integrating the
// recorded velocity between the two instants. With no history, or an
// inverted request, there is nothing to compensate and the identity is
// returned. A segment longer than MaxStep aborts the walk and the
// partial transform accumulated so far is returned.
func (h *History) Compensate(oldStamp, newStamp time.Time) Transform {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reports) == 0 || oldStamp.After(newStamp) {
		return Identity()
	}

	oldIdx := h.searchLocked(oldStamp)
	newIdx := h.searchLocked(newStamp)

	prev := oldStamp
	var x, y, yaw float64
	for i := oldIdx; i <= newIdx; i++ {
		var dt float64
		if i != newIdx {
			dt = h.reports[i].Stamp.Sub(prev).Seconds()
		} else {
			dt = newStamp.Sub(prev).Seconds()
		}

		if math.Abs(dt) > MaxStep.Seconds() {
			h.warnLocked("motion: velocity gap too large to interpolate, returning partial compensation; check the velocity topic and its stamps")
			break
		}

		dis := h.reports[i].Longitudinal * dt
		yaw += h.reports[i].HeadingRate * dt
		x += dis * math.Cos(yaw)
		y += dis * math.Sin(yaw)
		prev = h.reports[i].Stamp
	}

	return Transform{Yaw: yaw, X: x, Y: y}
}

// searchLocked finds the first report stamped at or after t, falling
// back to the last report when every stamp is older.
func (h *History) searchLocked(t time.Time) int {
	i := sort.Search(len(h.reports), func(i int) bool {
		return !h.reports[i].Stamp.Before(t)
	})
	if i == len(h.reports) {
		i = len(h.reports) - 1
	}
	return i
}

func (h *History) warnLocked(msg string) {
	now := time.Now()
	if now.Sub(h.lastWarn) < warnInterval {
		return
	}
	h.lastWarn = now
	log.Println(msg)
}
