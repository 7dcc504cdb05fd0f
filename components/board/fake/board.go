// Package fake implements a simulated drive board.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/edaniels/golog"

	"github.com/eurobot-nav/navcore/components/board"
	"github.com/eurobot-nav/navcore/utils"
)

// DefaultPulsesPerPWM is how far a wheel's encoder moves per unit of duty between two pose reads.
const DefaultPulsesPerPWM = 0.5

// Command is one PWM command received by the board.
type Command struct {
	PWM [2]uint8
	Dir [2]int
}

// Board simulates the drive board: each GetPose integrates the last command once.
type Board struct {
	mu           sync.Mutex
	pulsesPerMM  float64
	separationMM float64
	pulsesPerPWM float64
	logger       golog.Logger

	enc     [2]float64
	x, y    float64
	theta   float64
	last    Command
	history []Command
}

var _ board.Transport = (*Board)(nil)

// NewBoard returns a simulated board for a robot with the given geometry.
func NewBoard(pulsesPerMM, separationMM float64, logger golog.Logger) *Board {
	return &Board{
		pulsesPerMM:  pulsesPerMM,
		separationMM: separationMM,
		pulsesPerPWM: DefaultPulsesPerPWM,
		logger:       logger,
	}
}

// SetPulsesPerPWM changes the simulated motor response.
func (b *Board) SetPulsesPerPWM(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pulsesPerPWM = v
}

// GetPose advances the simulation by one step and reports it.
func (b *Board) GetPose(ctx context.Context) (board.PoseReading, error) {
	if err := ctx.Err(); err != nil {
		return board.PoseReading{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var step [2]float64
	for k := range step {
		step[k] = float64(b.last.PWM[k]) * float64(b.last.Dir[k]) * b.pulsesPerPWM
		b.enc[k] += step[k]
	}
	dl := step[board.Left] / b.pulsesPerMM
	dr := step[board.Right] / b.pulsesPerMM
	ds := (dl + dr) / 2
	dTheta := (dr - dl) / b.separationMM
	mid := utils.DegToRad(b.theta) + dTheta/2
	b.x += ds * math.Cos(mid)
	b.y += ds * math.Sin(mid)
	b.theta = utils.NormalizeDeg(b.theta + utils.RadToDeg(dTheta))

	return board.PoseReading{
		EncLeft:  int64(math.Round(b.enc[board.Left])),
		EncRight: int64(math.Round(b.enc[board.Right])),
		X:        math.Round(b.x),
		Y:        math.Round(b.y),
		Theta:    b.theta,
	}, nil
}

// SendPWM records the command.
func (b *Board) SendPWM(ctx context.Context, pwm [2]uint8, dir [2]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = Command{PWM: pwm, Dir: dir}
	b.history = append(b.history, b.last)
	return nil
}

// ResetPose zeroes the encoders.
func (b *Board) ResetPose(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enc = [2]float64{}
	return nil
}

// SetPose moves the simulated robot.
func (b *Board) SetPose(ctx context.Context, x, y, theta float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.x, b.y, b.theta = x, y, theta
	b.logger.Debugw("simulated pose set", "x", x, "y", y, "theta", theta)
	return nil
}

// LastCommand returns the most recent PWM command.
func (b *Board) LastCommand() Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// History returns every PWM command received so far.
func (b *Board) History() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.history...)
}
