// Package control contains the per-wheel feedback law used by the drive controller.
package control

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// saturation is the command magnitude at which the motor board clips.
const saturation = 255

// GainConfig holds the PID gains.
type GainConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// DefaultGains are the gains the drive was tuned with.
var DefaultGains = GainConfig{Kp: 0.45, Ki: 0, Kd: 0.005}

// Validate ensures all parts of the config are valid.
func (c *GainConfig) Validate(path string) error {
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		return goutils.NewConfigValidationError(path, errors.New("pid should have at least one of kp, ki or kd"))
	}
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return goutils.NewConfigValidationError(path, errors.New("pid gains must not be negative"))
	}
	return nil
}

// PID is a discrete controller for one wheel. The derivative term is taken from the
// paired wheel's reading so that both wheels are pulled towards the same progress.
// The integral has no windup clamp.
type PID struct {
	mu       sync.Mutex
	gains    GainConfig
	integral float64
}

// NewPID returns a PID with a zeroed integrator.
func NewPID(gains GainConfig) *PID {
	return &PID{gains: gains}
}

// Evaluate returns the command magnitude and its sign for axis A given the paired axis B.
// dt must be positive.
func (p *PID) Evaluate(posA, posB, targetA, targetB float64, dt time.Duration) (uint8, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dtS := dt.Seconds()
	errA := targetA - posA
	errB := targetB - posB

	dedt := 0.
	if dtS > 0 {
		dedt = (math.Abs(posB) - math.Abs(posA)) / dtS
	}
	if errA < 0 {
		dedt = -dedt
	}
	if p.gains.Kp*errA < saturation || p.gains.Kp*errB < saturation {
		dedt = 0
	}
	p.integral += errA * dtS

	u := p.gains.Kp*errA + p.gains.Kd*dedt + p.gains.Ki*p.integral
	power := math.Min(math.Round(math.Abs(u)), saturation)
	switch {
	case u > 0:
		return uint8(power), 1
	case u < 0:
		return uint8(power), -1
	default:
		return 0, 0
	}
}

// Reset clears the integrator.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = 0
}

// Integral returns the accumulated error.
func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.integral
}
