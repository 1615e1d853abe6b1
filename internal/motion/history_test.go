package motion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1000, 0)

func at(offsetSec float64) time.Time {
	return t0.Add(time.Duration(offsetSec * float64(time.Second)))
}

// fill records reports every stepSec from fromSec to toSec inclusive,
// all with the given speed and heading rate.
func fill(h *History, fromSec, toSec, stepSec, speed, rate float64) {
	for s := fromSec; s <= toSec+1e-9; s += stepSec {
		h.Record(VelocityReport{Stamp: at(s), Longitudinal: speed, HeadingRate: rate})
	}
}

func TestCompensateEmptyHistory(t *testing.T) {
	h := NewHistory()
	tr := h.Compensate(at(0), at(0.5))
	assert.True(t, tr.IsIdentity(), "empty history must compensate to identity, got %+v", tr)
}

func TestCompensateInvertedRequest(t *testing.T) {
	h := NewHistory()
	fill(h, 0, 0.5, 0.05, 1.0, 0)
	tr := h.Compensate(at(0.5), at(0))
	assert.True(t, tr.IsIdentity(), "oldStamp after newStamp must compensate to identity, got %+v", tr)
}

func TestCompensateZeroVelocity(t *testing.T) {
	// Zero linear speed means zero displacement no matter how the
	// heading spins.
	h := NewHistory()
	fill(h, 0, 0.5, 0.05, 0, 2.0)

	tr := h.Compensate(at(0), at(0.5))
	assert.InDelta(t, 0, tr.X, 1e-9)
	assert.InDelta(t, 0, tr.Y, 1e-9)
}

func TestCompensateConstantVelocity(t *testing.T) {
	h := NewHistory()
	fill(h, 0, 0.9, 0.05, 2.0, 0)

	tr := h.Compensate(at(0), at(0.5))
	assert.InDelta(t, 1.0, tr.X, 1e-6, "2 m/s over 0.5 s must integrate to 1 m")
	assert.InDelta(t, 0, tr.Y, 1e-9)
	assert.InDelta(t, 0, tr.Yaw, 1e-9)
}

func TestCompensateConstantTurn(t *testing.T) {
	h := NewHistory()
	fill(h, 0, 0.9, 0.05, 0, math.Pi/2)

	tr := h.Compensate(at(0), at(0.5))
	assert.InDelta(t, math.Pi/4, tr.Yaw, 1e-6)
	assert.InDelta(t, 0, tr.X, 1e-9)
	assert.InDelta(t, 0, tr.Y, 1e-9)
}

func TestCompensateLargeGapReturnsPartial(t *testing.T) {
	h := NewHistory()
	h.Record(VelocityReport{Stamp: at(0), Longitudinal: 1.0})
	h.Record(VelocityReport{Stamp: at(0.05), Longitudinal: 1.0})
	h.Record(VelocityReport{Stamp: at(0.6), Longitudinal: 1.0})

	// The walk crosses the 0.55 s hole between the last two reports
	// and must stop there with only the first segment integrated.
	tr := h.Compensate(at(0), at(0.6))
	assert.InDelta(t, 0.05, tr.X, 1e-6)
}

func TestRecordTrimsHorizon(t *testing.T) {
	h := NewHistory()
	h.Record(VelocityReport{Stamp: at(0)})
	h.Record(VelocityReport{Stamp: at(0.5)})
	h.Record(VelocityReport{Stamp: at(1.0)})
	require.Equal(t, 2, h.Len(), "the sample a full horizon behind the newest must be dropped")

	h.Record(VelocityReport{Stamp: at(1.61)})
	assert.Equal(t, 2, h.Len(), "only samples within the horizon of the newest survive")
}

func TestRecordBackwardJumpClears(t *testing.T) {
	h := NewHistory()
	h.Record(VelocityReport{Stamp: at(10.0), Longitudinal: 3.0})
	h.Record(VelocityReport{Stamp: at(10.1), Longitudinal: 3.0})

	// A replayed session starts over in the past; everything recorded
	// before must go.
	h.Record(VelocityReport{Stamp: at(5.0), Longitudinal: 1.0})
	require.Equal(t, 1, h.Len())

	tr := h.Compensate(at(5.0), at(5.1))
	assert.InDelta(t, 0.1, tr.X, 1e-6, "compensation must only see the post-jump sample")
}

func TestHeadingRateFromCourse(t *testing.T) {
	// Crossing north the short way around.
	rate := HeadingRateFromCourse(350, 10, 1.0)
	assert.InDelta(t, 20*math.Pi/180, rate, 1e-9)

	rate = HeadingRateFromCourse(10, 350, 1.0)
	assert.InDelta(t, -20*math.Pi/180, rate, 1e-9)

	assert.Zero(t, HeadingRateFromCourse(10, 20, 0))
}
