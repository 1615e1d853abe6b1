package timesync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/scan_synchronizer/internal/motion"
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

type fakePublisher struct {
	clouds map[string]*scan.Cloud
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{clouds: make(map[string]*scan.Cloud)}
}

func (f *fakePublisher) Publish(stream string, c *scan.Cloud) error {
	f.clouds[stream] = c
	return nil
}

// fakeFrames relabels the cloud to the target frame without moving any
// points, except for the frame it is told to reject.
type fakeFrames struct {
	failFor string
}

func (f fakeFrames) ToFrame(c *scan.Cloud, target string) (*scan.Cloud, error) {
	if c.FrameID == f.failFor {
		return nil, errors.New("no transform on record")
	}
	out := &scan.Cloud{
		FrameID: target,
		Stamp:   c.Stamp,
		Points:  make([]scan.Point, len(c.Points)),
	}
	copy(out.Points, c.Points)
	return out, nil
}

func originCloud(frame string, stamp time.Time) *scan.Cloud {
	return &scan.Cloud{
		FrameID: frame,
		Stamp:   stamp,
		Points:  []scan.Point{{X: 0, Y: 0, Z: 0, Intensity: 50}},
	}
}

func TestSynchronizerRepublishesAtOldestStamp(t *testing.T) {
	streams := []string{"lidar/front", "lidar/left", "lidar/right"}
	pub := newFakePublisher()
	diag := NewDiagnostics(streams)
	sync := NewSynchronizer("base", fakeFrames{}, motion.NewHistory(), pub, diag)

	base := time.Unix(2000, 0)
	buf := NewStreamBuffer(streams)
	buf.Arrive("lidar/front", originCloud("front", base.Add(20*time.Millisecond)))
	buf.Arrive("lidar/left", originCloud("left", base))
	buf.Arrive("lidar/right", originCloud("right", base.Add(40*time.Millisecond)))

	sync.CloseAndPublish(buf)

	require.Len(t, pub.clouds, 3)
	for _, s := range streams {
		c := pub.clouds[s]
		require.NotNil(t, c, "stream %s was not published", s)
		assert.True(t, c.Stamp.Equal(base), "every output carries the oldest stamp of the round")
		assert.Equal(t, "base", c.FrameID)
	}

	st := diag.Snapshot()
	assert.Equal(t, LevelOK, st.Level)
}

func TestSynchronizerCompensatesNewerStreams(t *testing.T) {
	streams := []string{"lidar/front", "lidar/rear"}
	pub := newFakePublisher()
	diag := NewDiagnostics(streams)

	// Constant 1 m/s forward across the whole round.
	hist := motion.NewHistory()
	base := time.Unix(2000, 0)
	for _, off := range []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond} {
		hist.Record(motion.VelocityReport{Stamp: base.Add(off), Longitudinal: 1.0})
	}

	sync := NewSynchronizer("base", fakeFrames{}, hist, pub, diag)

	buf := NewStreamBuffer(streams)
	buf.Arrive("lidar/front", originCloud("front", base))
	buf.Arrive("lidar/rear", originCloud("rear", base.Add(100*time.Millisecond)))

	sync.CloseAndPublish(buf)
	require.Len(t, pub.clouds, 2)

	// The cloud captured at the round's oldest stamp is untouched.
	front := pub.clouds["lidar/front"]
	assert.InDelta(t, 0, float64(front.Points[0].X), 1e-6)

	// The 100 ms newer capture is pulled back by the distance travelled.
	rear := pub.clouds["lidar/rear"]
	assert.InDelta(t, 0.1, float64(rear.Points[0].X), 1e-6)
	assert.InDelta(t, 0, float64(rear.Points[0].Y), 1e-6)
	assert.True(t, rear.Stamp.Equal(base))
}

func TestSynchronizerReportsMissingStreams(t *testing.T) {
	streams := []string{"lidar/front", "lidar/left", "lidar/right"}
	pub := newFakePublisher()
	diag := NewDiagnostics(streams)
	sync := NewSynchronizer("base", fakeFrames{}, motion.NewHistory(), pub, diag)

	base := time.Unix(2000, 0)
	buf := NewStreamBuffer(streams)
	buf.Arrive("lidar/front", originCloud("front", base))
	buf.Arrive("lidar/left", originCloud("left", base.Add(10*time.Millisecond)))

	sync.CloseAndPublish(buf)
	assert.Len(t, pub.clouds, 2)

	st := diag.Snapshot()
	assert.Equal(t, LevelWarn, st.Level)
	assert.Equal(t, "NG", st.Streams["lidar/right"])
	assert.Equal(t, "OK", st.Streams["lidar/front"])
	assert.Equal(t, "OK", st.Streams["lidar/left"])
}

func TestSynchronizerDropsStreamWithoutTransform(t *testing.T) {
	streams := []string{"lidar/front", "lidar/left"}
	pub := newFakePublisher()
	diag := NewDiagnostics(streams)
	sync := NewSynchronizer("base", fakeFrames{failFor: "left"}, motion.NewHistory(), pub, diag)

	base := time.Unix(2000, 0)
	buf := NewStreamBuffer(streams)
	buf.Arrive("lidar/front", originCloud("front", base))
	buf.Arrive("lidar/left", originCloud("left", base))

	sync.CloseAndPublish(buf)

	assert.Contains(t, pub.clouds, "lidar/front")
	assert.NotContains(t, pub.clouds, "lidar/left")
	assert.Equal(t, "NG", diag.Snapshot().Streams["lidar/left"])
}

func TestSynchronizerEmptyRoundPublishesNothing(t *testing.T) {
	streams := []string{"lidar/front", "lidar/left"}
	pub := newFakePublisher()
	diag := NewDiagnostics(streams)
	sync := NewSynchronizer("base", fakeFrames{}, motion.NewHistory(), pub, diag)

	sync.CloseAndPublish(NewStreamBuffer(streams))
	assert.Empty(t, pub.clouds)
	assert.Equal(t, LevelOK, diag.Snapshot().Level, "an empty close must not flip diagnostics")
}

func TestDiagnosticsSnapshot(t *testing.T) {
	d := NewDiagnostics([]string{"a", "b"})

	st := d.Snapshot()
	assert.Equal(t, LevelOK, st.Level)
	assert.Equal(t, map[string]string{"a": "OK", "b": "OK"}, st.Streams)
	assert.NotZero(t, st.StampNS)

	d.Update([]string{"b"})
	st = d.Snapshot()
	assert.Equal(t, LevelWarn, st.Level)
	assert.Equal(t, "NG", st.Streams["b"])

	// A clean round recovers the OK level.
	d.Update(nil)
	assert.Equal(t, LevelOK, d.Snapshot().Level)
}
