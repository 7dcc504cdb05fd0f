package lidar

import (
	"testing"

	"go.viam.com/test"

	"github.com/eurobot-nav/navcore/spatialmath"
)

func beams(angles []float64, distance float64) Measurements {
	ms := make(Measurements, 0, len(angles))
	for _, a := range angles {
		ms = append(ms, NewMeasurement(a, distance))
	}
	return ms
}

func TestSector(t *testing.T) {
	front := DefaultConfig.Front
	test.That(t, front.Contains(0), test.ShouldBeTrue)
	test.That(t, front.Contains(359.5), test.ShouldBeTrue)
	test.That(t, front.Contains(30), test.ShouldBeTrue)
	test.That(t, front.Contains(31), test.ShouldBeFalse)
	test.That(t, front.Contains(180), test.ShouldBeFalse)

	rear := DefaultConfig.Rear
	test.That(t, rear.Contains(180), test.ShouldBeTrue)
	test.That(t, rear.Contains(149), test.ShouldBeFalse)
	test.That(t, rear.Contains(0), test.ShouldBeFalse)
}

func TestMeasurement(t *testing.T) {
	test.That(t, NewMeasurement(-10, 5).AngleDeg(), test.ShouldEqual, 350.0)
	test.That(t, NewMeasurement(370, 5).AngleDeg(), test.ShouldEqual, 10.0)

	// the scanner counts clockwise, the pose counter-clockwise
	p := NewMeasurement(90, 100).WorldPoint(spatialmath.Position{X: 1000, Y: 1000, Theta: 90})
	test.That(t, p.X, test.ShouldAlmostEqual, 1100.0)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1000.0)
	p = NewMeasurement(0, 100).WorldPoint(spatialmath.Position{X: 1000, Y: 1000, Theta: 90})
	test.That(t, p.X, test.ShouldAlmostEqual, 1000.0)
	test.That(t, p.Y, test.ShouldAlmostEqual, 1100.0)
}

func TestObstacleAhead(t *testing.T) {
	center := spatialmath.Position{X: 1500, Y: 1000}
	ahead := beams([]float64{355, 0, 5}, 300)
	behind := beams([]float64{175, 180, 185}, 300)

	for _, tc := range []struct {
		name      string
		ms        Measurements
		pose      spatialmath.Position
		direction int
		expected  bool
	}{
		{"ahead forward", ahead, center, 1, true},
		{"ahead reversing", ahead, center, -1, false},
		{"behind reversing", behind, center, -1, true},
		{"behind forward", behind, center, 1, false},
		{"turning", ahead, center, 0, false},
		{"far", beams([]float64{0}, 800), center, 1, false},
		{"side", beams([]float64{90, 270}, 100), center, 1, false},
		{"off table", beams([]float64{0}, 300), spatialmath.Position{X: 2900, Y: 1000}, 1, false},
		{"near wall", beams([]float64{0}, 50), spatialmath.Position{X: 2900, Y: 1000}, 1, true},
		{"empty", nil, center, 1, false},
		{"zero range", beams([]float64{0}, 0), center, 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, ObstacleAhead(tc.ms, tc.pose, tc.direction, DefaultConfig), test.ShouldEqual, tc.expected)
		})
	}
}

func TestObstacleAheadIgnoresStrayBeam(t *testing.T) {
	center := spatialmath.Position{X: 1500, Y: 1000}
	var angles []float64
	for a := 340.; a < 360; a++ {
		angles = append(angles, a)
	}
	ms := append(beams(angles, 1000), NewMeasurement(0, 100))
	test.That(t, ObstacleAhead(ms, center, 1, DefaultConfig), test.ShouldBeFalse)

	cfg := DefaultConfig
	cfg.Percentile = 1
	test.That(t, ObstacleAhead(ms, center, 1, cfg), test.ShouldBeTrue)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig
	test.That(t, cfg.Validate("lidar"), test.ShouldBeNil)

	bad := DefaultConfig
	bad.ObstacleMM = 0
	test.That(t, bad.Validate("lidar"), test.ShouldNotBeNil)

	bad = DefaultConfig
	bad.Percentile = 101
	test.That(t, bad.Validate("lidar"), test.ShouldNotBeNil)

	bad = DefaultConfig
	bad.Rear = Sector{From: 150, To: 360}
	err := bad.Validate("lidar")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rear")
}
