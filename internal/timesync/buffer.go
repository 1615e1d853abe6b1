package timesync

import (
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

// ArrivalResult tells the scheduler what an arrival did to the round.
type ArrivalResult int

const (
	// RoundStillPartial: the sample joined the round but other slots
	// remain empty.
	RoundStillPartial ArrivalResult = iota
	// RoundCompleted: the sample filled the last empty slot.
	RoundCompleted
	// Restaged: the stream had already reported this round, so the new
	// sample was staged for the next round instead.
	Restaged
)

// Sample pairs a stream identity with its buffered cloud.
type Sample struct {
	Stream string
	Cloud  *scan.Cloud
}

// StreamBuffer holds two slots per configured stream: the sample that
// belongs to the round in progress and, when a stream reports twice
// before the round closes, the sample staged for the next round. Only
// the freshest staged sample per stream is kept; anything it replaces
// was superseded anyway.
//
// Callers serialize access under the round lock; StreamBuffer has no
// lock of its own. Stream identities must come from the configured
// set.
type StreamBuffer struct {
	streams []string
	current map[string]*scan.Cloud
	staged  map[string]*scan.Cloud
}

func NewStreamBuffer(streams []string) *StreamBuffer {
	b := &StreamBuffer{
		streams: streams,
		current: make(map[string]*scan.Cloud, len(streams)),
		staged:  make(map[string]*scan.Cloud, len(streams)),
	}
	for _, s := range streams {
		b.current[s] = nil
		b.staged[s] = nil
	}
	return b
}

// Arrive stores one incoming sample. hadStaged reports whether any
// stream already held staged data before this arrival; the scheduler
// needs that on the Restaged path to decide whether to start the
// next-round clock.
func (b *StreamBuffer) Arrive(stream string, c *scan.Cloud) (res ArrivalResult, hadStaged bool) {
	hadStaged = b.anyStaged()

	if b.current[stream] != nil {
		b.staged[stream] = c
		return Restaged, hadStaged
	}

	b.current[stream] = c
	if b.allCurrent() {
		return RoundCompleted, hadStaged
	}
	return RoundStillPartial, hadStaged
}

// CloseRound drains the round: it returns every present sample in
// configured stream order plus the identities that never reported,
// then promotes staged samples into the next round's current slots.
// An empty round is left untouched so a timer pop on an idle node is a
// true no-op.
func (b *StreamBuffer) CloseRound() (present []Sample, missing []string) {
	for _, s := range b.streams {
		if c := b.current[s]; c != nil {
			present = append(present, Sample{Stream: s, Cloud: c})
		} else {
			missing = append(missing, s)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}

	for _, s := range b.streams {
		b.current[s] = b.staged[s]
		b.staged[s] = nil
	}
	return present, missing
}

func (b *StreamBuffer) anyStaged() bool {
	for _, s := range b.streams {
		if b.staged[s] != nil {
			return true
		}
	}
	return false
}

func (b *StreamBuffer) allCurrent() bool {
	for _, s := range b.streams {
		if b.current[s] == nil {
			return false
		}
	}
	return true
}
