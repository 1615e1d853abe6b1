package scan

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestSphericalToCartesian(t *testing.T) {
	cases := []struct {
		name                string
		dist, az, el        float64
		wantX, wantY, wantZ float64
	}{
		{"straight ahead", 5, 0, 0, 0, 5, 0},
		{"due right", 5, 90, 0, 5, 0, 0},
		{"behind", 5, 180, 0, 0, -5, 0},
		{"straight up", 5, 0, 90, 0, 0, 5},
		{"diagonal", 1, 90, 45, math.Sqrt2 / 2, 0, math.Sqrt2 / 2},
	}
	for _, tc := range cases {
		x, y, z := SphericalToCartesian(tc.dist, tc.az, tc.el)
		if math.Abs(x-tc.wantX) > 1e-9 || math.Abs(y-tc.wantY) > 1e-9 || math.Abs(z-tc.wantZ) > 1e-9 {
			t.Errorf("%s: got (%v,%v,%v), want (%v,%v,%v)",
				tc.name, x, y, z, tc.wantX, tc.wantY, tc.wantZ)
		}
	}
}

func TestCloudJSONCarriesUnixNanos(t *testing.T) {
	stamp := time.Unix(1700000000, 123456789)
	c := Cloud{
		FrameID: "front",
		Stamp:   stamp,
		Points:  []Point{{X: 1, Y: 2, Z: 3, Intensity: 4}},
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"stamp_ns":1700000000123456789`) {
		t.Errorf("wire form missing nanosecond stamp: %s", b)
	}

	var back Cloud
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Stamp.Equal(stamp) {
		t.Errorf("stamp = %v, want %v", back.Stamp, stamp)
	}
	if back.FrameID != "front" || len(back.Points) != 1 || back.Points[0].Intensity != 4 {
		t.Errorf("round trip lost fields: %+v", back)
	}
}
