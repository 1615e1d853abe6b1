package motion

import (
	"encoding/json"
	"math"
	"time"
)

// KnotsToMPS converts speed over ground as reported by NMEA into m/s.
const KnotsToMPS = 0.514444

// VelocityReport is one motion sample from the platform: planar linear
// speed plus heading rate, as published on the velocity topic.
type VelocityReport struct {
	Stamp        time.Time
	Longitudinal float64 // m/s, along the platform's forward axis
	Lateral      float64 // m/s
	HeadingRate  float64 // rad/s about the vertical axis
}

type reportWire struct {
	StampNS      int64   `json:"stamp_ns"`
	Longitudinal float64 `json:"longitudinal_mps"`
	Lateral      float64 `json:"lateral_mps"`
	HeadingRate  float64 `json:"heading_rate_rps"`
}

func (r VelocityReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportWire{
		StampNS:      r.Stamp.UnixNano(),
		Longitudinal: r.Longitudinal,
		Lateral:      r.Lateral,
		HeadingRate:  r.HeadingRate,
	})
}

func (r *VelocityReport) UnmarshalJSON(b []byte) error {
	var w reportWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.Stamp = time.Unix(0, w.StampNS)
	r.Longitudinal = w.Longitudinal
	r.Lateral = w.Lateral
	r.HeadingRate = w.HeadingRate
	return nil
}

// HeadingRateFromCourse derives an angular rate (rad/s) from two
// consecutive course-over-ground readings in degrees, taking the short
// way around the circle.
func HeadingRateFromCourse(prevDeg, curDeg, dtSec float64) float64 {
	if dtSec <= 0 {
		return 0
	}
	delta := math.Mod(curDeg-prevDeg, 360)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return delta * math.Pi / 180.0 / dtSec
}
