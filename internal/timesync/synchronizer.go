package timesync

import (
	"log"
	"sort"
	"time"

	"github.com/relabs-tech/scan_synchronizer/internal/motion"
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

// SyncedSuffix is appended to each input topic to name its
// synchronized output topic.
const SyncedSuffix = "_synchronized"

// Publisher sends one synchronized cloud per source stream.
type Publisher interface {
	Publish(stream string, c *scan.Cloud) error
}

// FrameLookup reprojects a cloud into a target coordinate frame.
type FrameLookup interface {
	ToFrame(c *scan.Cloud, target string) (*scan.Cloud, error)
}

// Compensator yields the rigid transform mapping a capture at newStamp
// back to the instant oldStamp.
type Compensator interface {
	Compensate(oldStamp, newStamp time.Time) motion.Transform
}

// Synchronizer assembles a round's output: each present cloud is
// reprojected into the output frame, re-registered to the oldest stamp
// in the round, and published on its own topic. Streams that could not
// contribute are reported to diagnostics.
type Synchronizer struct {
	outputFrame string
	frames      FrameLookup
	motion      Compensator
	publisher   Publisher
	diag        *Diagnostics
}

func NewSynchronizer(
	outputFrame string,
	frames FrameLookup,
	comp Compensator,
	pub Publisher,
	diag *Diagnostics,
) *Synchronizer {
	return &Synchronizer{
		outputFrame: outputFrame,
		frames:      frames,
		motion:      comp,
		publisher:   pub,
		diag:        diag,
	}
}

// CloseAndPublish closes the round held in buf and publishes whatever
// arrived. With nothing present it publishes nothing and leaves the
// buffer untouched. Caller holds the round lock.
func (s *Synchronizer) CloseAndPublish(buf *StreamBuffer) {
	present, missing := buf.CloseRound()
	if len(present) == 0 {
		return
	}

	// Distinct stamps, newest first; the oldest is the output stamp
	// every published cloud is re-registered to.
	stamps := distinctStamps(present)
	oldest := stamps[len(stamps)-1]

	for _, p := range present {
		reframed, err := s.frames.ToFrame(p.Cloud, s.outputFrame)
		if err != nil {
			log.Printf("sync: dropping %s from this round: %v", p.Stream, err)
			missing = append(missing, p.Stream)
			continue
		}

		// Walk the compensation through every stamp in the round rather
		// than jumping straight to the oldest, so velocity changes
		// between sources are integrated segment by segment. A stream
		// sharing a stamp with another stream can pick up a segment
		// twice; kept as is until field data says otherwise.
		total := motion.Identity()
		cur := p.Cloud.Stamp
		for _, st := range stamps {
			step := s.motion.Compensate(st, cur)
			total = step.Compose(total)
			if st.Before(cur) {
				cur = st
			}
		}

		out := applyTransform(reframed, total)
		out.Stamp = oldest
		out.FrameID = s.outputFrame
		if err := s.publisher.Publish(p.Stream, out); err != nil {
			log.Printf("sync: publish for %s failed: %v", p.Stream, err)
		}
	}

	s.diag.Update(missing)
}

func distinctStamps(present []Sample) []time.Time {
	stamps := make([]time.Time, 0, len(present))
	for _, p := range present {
		dup := false
		for _, st := range stamps {
			if st.Equal(p.Cloud.Stamp) {
				dup = true
				break
			}
		}
		if !dup {
			stamps = append(stamps, p.Cloud.Stamp)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].After(stamps[j]) })
	return stamps
}

func applyTransform(c *scan.Cloud, t motion.Transform) *scan.Cloud {
	out := &scan.Cloud{
		FrameID: c.FrameID,
		Stamp:   c.Stamp,
		Points:  make([]scan.Point, len(c.Points)),
	}
	if t.IsIdentity() {
		copy(out.Points, c.Points)
		return out
	}
	for i, p := range c.Points {
		x, y, z := t.Apply(float64(p.X), float64(p.Y), float64(p.Z))
		out.Points[i] = scan.Point{
			X:         float32(x),
			Y:         float32(y),
			Z:         float32(z),
			Intensity: p.Intensity,
		}
	}
	return out
}
