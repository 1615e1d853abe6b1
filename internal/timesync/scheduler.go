package timesync

import (
	"sync"
	"time"

	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

// RetryInterval is how soon an expired timer tries again when it finds
// the round lock held by a concurrent arrival. Short enough that a
// partial round still closes promptly, long enough not to spin.
const RetryInterval = 10 * time.Millisecond

// Closer closes the round held in a StreamBuffer and publishes it.
// Implemented by Synchronizer; tests substitute a recorder.
type Closer interface {
	CloseAndPublish(buf *StreamBuffer)
}

// Scheduler decides when a round closes: immediately once every stream
// has reported, or at the timeout deadline otherwise. One mutex
// serializes arrivals, timer state and the close itself; it is never
// held across an external blocking call.
type Scheduler struct {
	mu      sync.Mutex
	buffer  *StreamBuffer
	closer  Closer
	timer   Timer
	timeout time.Duration
	offsets map[string]time.Duration
}

// NewScheduler wires the scheduler to its buffer and closer. newTimer
// builds the deadline timer around the scheduler's own expiry handler.
func NewScheduler(
	buffer *StreamBuffer,
	closer Closer,
	timeout time.Duration,
	offsets map[string]time.Duration,
	newTimer func(expire func()) Timer,
) *Scheduler {
	s := &Scheduler{
		buffer:  buffer,
		closer:  closer,
		timeout: timeout,
		offsets: offsets,
	}
	s.timer = newTimer(s.handleTimeout)
	return s
}

// HandleArrival runs on every sample delivery for one of the
// configured streams.
func (s *Scheduler) HandleArrival(stream string, c *scan.Cloud) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, hadStaged := s.buffer.Arrive(stream, c)
	switch res {
	case RoundCompleted:
		// The round closes now; no point waiting out the deadline.
		s.timer.Cancel()
		s.closer.CloseAndPublish(s.buffer)

	case Restaged:
		// First overflow into the staging slots starts the clock so a
		// stalled peer cannot hold the next round open forever.
		if !hadStaged {
			s.timer.Arm(s.timeout)
		}

	case RoundStillPartial:
		d := s.timeout
		if off := s.offsets[stream]; off > 0 {
			// A known-lagging stream gets a tighter deadline so the
			// round still closes near the nominal timeout.
			d = s.timeout - off
		}
		s.timer.Arm(d)
	}
}

// handleTimeout is the timer expiry path. It must not stall the timer
// goroutine behind an arrival that is already closing the round, so it
// try-acquires the lock and re-arms itself on contention.
func (s *Scheduler) handleTimeout() {
	if !s.mu.TryLock() {
		s.timer.Arm(RetryInterval)
		return
	}
	defer s.mu.Unlock()
	s.closer.CloseAndPublish(s.buffer)
}
