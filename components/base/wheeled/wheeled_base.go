// Package wheeled implements closed-loop position control of a differential drive base.
package wheeled

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/components/board"
	"github.com/eurobot-nav/navcore/control"
	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/utils"
)

const (
	decelStep     = 2
	decelInterval = 3 * time.Millisecond
	minTickDt     = time.Millisecond
)

// DriveConfig holds the drive loop tuning.
type DriveConfig struct {
	PWMCutoff         int                `json:"pwm_cutoff"`
	PWMMax            int                `json:"pwm_max"`
	PulsesCutoff      float64            `json:"pulses_cutoff"`
	PositionTolerance float64            `json:"position_tolerance"`
	PoseIntervalMS    int                `json:"pose_interval_ms"`
	Gains             control.GainConfig `json:"pid"`
}

// DefaultDriveConfig is what the drive was tuned with.
var DefaultDriveConfig = DriveConfig{
	PWMCutoff:         10,
	PWMMax:            254,
	PulsesCutoff:      4,
	PositionTolerance: 30,
	PoseIntervalMS:    50,
	Gains:             control.DefaultGains,
}

// Validate ensures all parts of the config are valid.
func (cfg *DriveConfig) Validate(path string) error {
	if cfg.PWMMax <= 0 || cfg.PWMMax > 255 {
		return goutils.NewConfigValidationError(path, errors.Errorf("pwm_max must be in (0, 255], got %d", cfg.PWMMax))
	}
	if cfg.PWMCutoff < 0 || cfg.PWMCutoff >= cfg.PWMMax {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("pwm_cutoff must be in [0, pwm_max), got %d", cfg.PWMCutoff))
	}
	if cfg.PulsesCutoff <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pulses_cutoff")
	}
	if cfg.PositionTolerance <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "position_tolerance")
	}
	if cfg.PoseIntervalMS <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pose_interval_ms")
	}
	return cfg.Gains.Validate(path + ".pid")
}

// Config is how you configure a Controller.
type Config struct {
	Geometry Geometry
	Drive    DriveConfig
}

// Advisory tells the controller whether it must hold still. Held is the operator's part
// of Stopped.
type Advisory interface {
	Stopped(pose spatialmath.Position, direction int) bool
	Held() bool
}

// DriveState is the per-tick snapshot of the controller.
type DriveState struct {
	Pose      spatialmath.Position
	Finished  bool
	Stopped   bool
	// Held is set while Stopped comes from an operator hold rather than the path.
	Held      bool
	Direction int
}

// A Controller owns the wheel targets, the pose cache and the PWM ramp. It must only be
// driven from one goroutine.
type Controller struct {
	geom     Geometry
	cfg      DriveConfig
	poseIvl  time.Duration
	port     board.Transport
	advisory Advisory
	clock    clock.Clock
	logger   golog.Logger

	pids        [2]*control.PID
	target      [2]float64
	pos         [2]float64
	lastPos     [2]float64
	haveReading bool
	pose        spatialmath.Position

	lastPoseUpdate time.Time
	lastTick       time.Time
	lastPWM        int
	lastSent       [2]uint8
	direction      int
	held           bool
}

// NewController returns a controller holding still at whatever the board reports first.
// advisory may be nil.
func NewController(
	cfg Config,
	port board.Transport,
	advisory Advisory,
	clk clock.Clock,
	logger golog.Logger,
) (*Controller, error) {
	if err := cfg.Geometry.Validate("geometry"); err != nil {
		return nil, err
	}
	if err := cfg.Drive.Validate("drive"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		geom:     cfg.Geometry,
		cfg:      cfg.Drive,
		poseIvl:  time.Duration(cfg.Drive.PoseIntervalMS) * time.Millisecond,
		port:     port,
		advisory: advisory,
		clock:    clk,
		logger:   logger,
		pids:     [2]*control.PID{control.NewPID(cfg.Drive.Gains), control.NewPID(cfg.Drive.Gains)},
		lastPWM:  cfg.Drive.PWMCutoff,
	}, nil
}

// Pose returns the cached pose.
func (c *Controller) Pose() spatialmath.Position {
	return c.pose
}

// Targets returns the per-wheel pulse targets relative to the last reset.
func (c *Controller) Targets() [2]float64 {
	return c.target
}

// DriveDistance starts a straight move of mm millimeters.
func (c *Controller) DriveDistance(ctx context.Context, mm float64) error {
	if err := c.resetReference(ctx); err != nil {
		return err
	}
	p := c.geom.straightPulses(mm)
	c.target = [2]float64{p, p}
	c.logger.Debugw("drive distance", "mm", mm, "pulses", p)
	return nil
}

// TurnAngle starts an in-place turn by angleDeg, counter-clockwise positive.
func (c *Controller) TurnAngle(ctx context.Context, angleDeg float64) error {
	if err := c.resetReference(ctx); err != nil {
		return err
	}
	c.setTurn(angleDeg)
	return nil
}

// TurnTo starts an in-place turn to the absolute heading headingDeg along the shorter way.
func (c *Controller) TurnTo(ctx context.Context, headingDeg float64) error {
	if err := c.resetReference(ctx); err != nil {
		return err
	}
	c.setTurn(utils.NormalizeDeg(headingDeg - c.pose.Theta))
	return nil
}

// DriveTo returns the primitives that take the robot from its cached pose to (x, y).
func (c *Controller) DriveTo(x, y float64, theta *float64) []actions.Action {
	return PlanDriveTo(c.pose, x, y, theta)
}

// Stop zeroes both wheels now and drops the current target.
func (c *Controller) Stop(ctx context.Context) error {
	c.target = c.pos
	c.lastPWM = c.cfg.PWMCutoff
	return c.send(ctx, [2]uint8{}, [2]int{})
}

// Tick runs one control step.
func (c *Controller) Tick(ctx context.Context) (DriveState, error) {
	now := c.clock.Now()
	dt := now.Sub(c.lastTick)
	if c.lastTick.IsZero() || dt < minTickDt {
		dt = minTickDt
	}
	c.lastTick = now

	if !c.haveReading || now.Sub(c.lastPoseUpdate) >= c.poseIvl {
		if err := c.refreshPose(ctx); err != nil {
			return c.holdZero(ctx, err)
		}
		c.lastPoseUpdate = now
	}

	stopped := c.advisory != nil && c.advisory.Stopped(c.pose, c.direction)
	c.held = stopped && c.advisory.Held()

	if c.arrived() {
		c.target = c.pos
		c.direction = 0
		c.lastPWM = c.cfg.PWMCutoff
		if err := c.send(ctx, [2]uint8{}, [2]int{}); err != nil {
			return c.state(false, stopped), err
		}
		return c.state(true, stopped), nil
	}

	if !stopped {
		c.lastPWM = c.clampPWM(c.lastPWM + 1)
	}

	pwmL, dirL := c.pids[board.Left].Evaluate(
		c.pos[board.Left], c.pos[board.Right], c.target[board.Left], c.target[board.Right], dt)
	pwmR, dirR := c.pids[board.Right].Evaluate(
		c.pos[board.Right], c.pos[board.Left], c.target[board.Right], c.target[board.Left], dt)
	pwm := [2]float64{float64(pwmL), float64(pwmR)}
	dir := [2]int{dirL, dirR}

	factor := math.Max(pwm[0], pwm[1]) / float64(c.lastPWM)
	if factor > 1 {
		pwm[0] = math.Round(pwm[0] / factor)
		pwm[1] = math.Round(pwm[1] / factor)
	}
	c.direction = netDirection(dir)

	out := [2]uint8{uint8(pwm[0]), uint8(pwm[1])}
	if stopped {
		if err := c.decelerate(ctx, out, dir); err != nil {
			return c.state(false, true), err
		}
		out = [2]uint8{}
		dir = [2]int{}
	}
	c.logger.Debugw("drive tick", "pwm", out, "dir", dir, "target", c.target, "pos", c.pos, "ramp", c.lastPWM)
	if err := c.send(ctx, out, dir); err != nil {
		return c.state(false, stopped), err
	}
	c.lastPWM = c.clampPWM(int(math.Max(float64(out[0]), float64(out[1]))))
	return c.state(false, stopped), nil
}

// decelerate steps the command down towards zero. It does nothing once the wheels are idle.
func (c *Controller) decelerate(ctx context.Context, pwm [2]uint8, dir [2]int) error {
	if c.lastSent == [2]uint8{} {
		return nil
	}
	for ramp := c.lastPWM; ramp >= c.cfg.PWMCutoff; {
		ramp -= decelStep
		step := [2]uint8{}
		for k := range step {
			step[k] = uint8(math.Max(0, math.Min(float64(pwm[k]), float64(ramp))))
		}
		if err := c.send(ctx, step, dir); err != nil {
			return err
		}
		if !c.wait(ctx, decelInterval) {
			break
		}
	}
	return nil
}

// wait blocks for d on the controller's clock. It returns false if ctx ends first.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Controller) resetReference(ctx context.Context) error {
	if err := c.refreshPose(ctx); err != nil {
		return errors.Wrap(err, "failed to read pose before reset")
	}
	if err := c.port.ResetPose(ctx); err != nil {
		return board.NewTransportError("reset pose", err)
	}
	c.pos = [2]float64{}
	c.lastPos = [2]float64{}
	c.target = [2]float64{}
	for _, pid := range c.pids {
		pid.Reset()
	}
	c.lastPoseUpdate = c.clock.Now()
	return nil
}

func (c *Controller) refreshPose(ctx context.Context) error {
	r, err := c.port.GetPose(ctx)
	if err != nil {
		if board.IsTransportError(err) {
			return err
		}
		return board.NewTransportError("get pose", err)
	}
	c.lastPos = c.pos
	c.pos = [2]float64{float64(r.EncLeft), float64(r.EncRight)}
	if !c.haveReading {
		c.lastPos = c.pos
		c.target = c.pos
		c.haveReading = true
	}
	c.pose = spatialmath.NewPosition(r.X, r.Y, r.Theta)
	return nil
}

func (c *Controller) arrived() bool {
	if math.Abs(c.pos[0]-c.lastPos[0]) >= c.cfg.PulsesCutoff || math.Abs(c.pos[1]-c.lastPos[1]) >= c.cfg.PulsesCutoff {
		return false
	}
	maxErr := math.Max(math.Abs(c.target[0]-c.pos[0]), math.Abs(c.target[1]-c.pos[1]))
	return maxErr < c.cfg.PositionTolerance
}

// holdZero commands zero after a failed read so the wheels never run on a stale pose.
func (c *Controller) holdZero(ctx context.Context, cause error) (DriveState, error) {
	c.logger.Warnw("holding wheels after transport failure", "error", cause)
	if err := c.send(ctx, [2]uint8{}, [2]int{}); err != nil {
		c.logger.Debugw("zero command also failed", "error", err)
	}
	c.direction = 0
	return c.state(false, true), cause
}

func (c *Controller) send(ctx context.Context, pwm [2]uint8, dir [2]int) error {
	if err := c.port.SendPWM(ctx, pwm, dir); err != nil {
		if board.IsTransportError(err) {
			return err
		}
		return board.NewTransportError("send pwm", err)
	}
	c.lastSent = pwm
	return nil
}

func (c *Controller) setTurn(angleDeg float64) {
	p := c.geom.spinPulses(angleDeg)
	c.target = [2]float64{-p, p}
	c.logger.Debugw("turn", "deg", angleDeg, "pulses", p)
}

func (c *Controller) clampPWM(v int) int {
	if v < c.cfg.PWMCutoff {
		return c.cfg.PWMCutoff
	}
	if v > c.cfg.PWMMax {
		return c.cfg.PWMMax
	}
	return v
}

func (c *Controller) state(finished, stopped bool) DriveState {
	return DriveState{Pose: c.pose, Finished: finished, Stopped: stopped, Held: stopped && c.held, Direction: c.direction}
}

func netDirection(dir [2]int) int {
	if dir[0] == dir[1] {
		return dir[0]
	}
	return 0
}
