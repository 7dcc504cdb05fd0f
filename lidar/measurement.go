package lidar

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/utils"
)

// Measurements is one rotation, sortable by angle then distance.
type Measurements []*Measurement

func (ms Measurements) Len() int {
	return len(ms)
}

func (ms Measurements) Swap(i, j int) {
	ms[i], ms[j] = ms[j], ms[i]
}

func (ms Measurements) Less(i, j int) bool {
	if ms[i].angleDeg < ms[j].angleDeg {
		return true
	}
	if ms[i].angleDeg == ms[j].angleDeg {
		return ms[i].distance < ms[j].distance
	}
	return false
}

// Measurement is a single beam.
type Measurement struct {
	angleDeg float64
	distance float64
}

// NewMeasurement takes the beam angle in degrees, clockwise from the robot's front as the
// scanner reports it, and the range in millimeters.
func NewMeasurement(angleDeg, distanceMM float64) *Measurement {
	return &Measurement{
		angleDeg: math.Mod(math.Mod(angleDeg, 360)+360, 360),
		distance: distanceMM,
	}
}

// AngleDeg is in [0, 360).
func (m *Measurement) AngleDeg() float64 {
	return m.angleDeg
}

// Distance in millimeters.
func (m *Measurement) Distance() float64 {
	return m.distance
}

// WorldPoint projects the beam's hit onto the table for a robot at pose.
func (m *Measurement) WorldPoint(pose spatialmath.Position) r3.Vector {
	heading := utils.DegToRad(pose.Theta - m.angleDeg)
	return r3.Vector{
		X: pose.X + m.distance*math.Cos(heading),
		Y: pose.Y + m.distance*math.Sin(heading),
	}
}
