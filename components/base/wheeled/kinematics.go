package wheeled

import (
	"math"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/utils"
)

// Geometry describes the encoder wheels the odometry and targets are computed from.
type Geometry struct {
	PulsesPerRev           float64 `json:"pulses_per_rev"`
	EncoderWheelDiameterMM float64 `json:"encoder_wheel_diameter_mm"`
	WheelSeparationMM      float64 `json:"wheel_separation_mm"`
	BotWidthMM             float64 `json:"bot_width_mm"`
}

// DefaultGeometry is the competition robot.
var DefaultGeometry = Geometry{
	PulsesPerRev:           1200,
	EncoderWheelDiameterMM: 50,
	WheelSeparationMM:      127.5,
	BotWidthMM:             180,
}

// Validate ensures all parts of the config are valid.
func (g *Geometry) Validate(path string) error {
	if g.PulsesPerRev <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pulses_per_rev")
	}
	if g.EncoderWheelDiameterMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "encoder_wheel_diameter_mm")
	}
	if g.WheelSeparationMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "wheel_separation_mm")
	}
	if g.BotWidthMM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("bot_width_mm must not be negative"))
	}
	return nil
}

// PulsesPerMM is how many encoder pulses one millimeter of wheel travel produces.
func (g Geometry) PulsesPerMM() float64 {
	return g.PulsesPerRev / (math.Pi * g.EncoderWheelDiameterMM)
}

// straightPulses returns the per-wheel target for a straight drive.
func (g Geometry) straightPulses(mm float64) float64 {
	return mm * g.PulsesPerMM()
}

// spinPulses returns the right wheel target for an in-place turn; the left wheel gets the negation.
func (g Geometry) spinPulses(angleDeg float64) float64 {
	wheelTravel := g.WheelSeparationMM * math.Pi * angleDeg / 360.0
	return wheelTravel * g.PulsesPerMM()
}

// PlanDriveTo returns the turn and drive that take a robot at from to (x, y), and a final
// turn to theta if given. A robot already at (x, y) keeps its heading.
func PlanDriveTo(from spatialmath.Position, x, y float64, theta *float64) []actions.Action {
	dist := from.DistanceTo(x, y)
	heading := from.Theta
	if dist > 0 {
		heading = from.HeadingTo(x, y)
	}
	out := []actions.Action{
		actions.TurnRelative{Deg: utils.NormalizeDeg(heading - from.Theta)},
		actions.DriveDistance{MM: dist},
	}
	if theta != nil {
		out = append(out, actions.TurnToHeading{Deg: *theta})
	}
	return out
}
