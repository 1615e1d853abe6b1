package scan

import (
	"encoding/json"
	"math"
	"time"
)

// Point is a single return in cartesian sensor coordinates.
// Convention: X=right, Y=forward, Z=up.
type Point struct {
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	Intensity float32 `json:"intensity"`
}

// Cloud is one scan from one source: a batch of points sharing a
// coordinate frame and a capture stamp.
type Cloud struct {
	FrameID string
	Stamp   time.Time
	Points  []Point
}

// cloudWire is the JSON form carried over MQTT. Stamps travel as unix
// nanoseconds so subscribers in other languages don't have to parse
// RFC3339.
type cloudWire struct {
	FrameID string  `json:"frame_id"`
	StampNS int64   `json:"stamp_ns"`
	Points  []Point `json:"points"`
}

func (c Cloud) MarshalJSON() ([]byte, error) {
	return json.Marshal(cloudWire{
		FrameID: c.FrameID,
		StampNS: c.Stamp.UnixNano(),
		Points:  c.Points,
	})
}

func (c *Cloud) UnmarshalJSON(b []byte) error {
	var w cloudWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	c.FrameID = w.FrameID
	c.Stamp = time.Unix(0, w.StampNS)
	c.Points = w.Points
	return nil
}

// SphericalToCartesian converts distance (meters), azimuth (degrees)
// and elevation (degrees) into cartesian sensor-frame coordinates.
func SphericalToCartesian(distance, azimuthDeg, elevationDeg float64) (x, y, z float64) {
	azimuthRad := azimuthDeg * math.Pi / 180.0
	elevationRad := elevationDeg * math.Pi / 180.0

	cosElevation := math.Cos(elevationRad)
	x = distance * cosElevation * math.Sin(azimuthRad)
	y = distance * cosElevation * math.Cos(azimuthRad)
	z = distance * math.Sin(elevationRad)
	return
}
