// Package robot runs missions: one control loop owns the drive board and ticks the task chain.
package robot

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/components/board"
	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/robot/advisory"
	"github.com/eurobot-nav/navcore/robot/task"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// ErrMissionAborted is returned when a mission ends before its last task completed.
var ErrMissionAborted = errors.New("mission aborted")

// Command is an operator request for the control loop.
type Command int

// Operator commands.
const (
	// CommandStop holds the robot in place until CommandResume.
	CommandStop Command = iota
	CommandResume
	// CommandAbort ends the mission.
	CommandAbort
)

func (c Command) String() string {
	switch c {
	case CommandStop:
		return "stop"
	case CommandResume:
		return "resume"
	case CommandAbort:
		return "abort"
	default:
		return "unknown"
	}
}

const commandBuffer = 8

// LoopConfig sets the control loop rate and how many transport failures in a row it tolerates.
type LoopConfig struct {
	Hz                   float64 `json:"hz"`
	MaxTransportFailures int     `json:"max_transport_failures"`
}

// DefaultLoopConfig runs at 20Hz and gives up after half a second of failed I/O.
var DefaultLoopConfig = LoopConfig{Hz: 20, MaxTransportFailures: 10}

// Validate ensures all parts of the config are valid.
func (c *LoopConfig) Validate(path string) error {
	if c.Hz <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "hz")
	}
	if c.MaxTransportFailures <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_transport_failures")
	}
	return nil
}

// Period is the time between ticks.
func (c LoopConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.Hz)
}

// A Runner ticks a task chain at a fixed rate. Only its loop touches the board.
type Runner struct {
	port     board.Transport
	env      *task.Env
	inputs   *advisory.Inputs
	scanner  lidar.Device
	cfg      LoopConfig
	logger   golog.Logger
	commands chan Command
}

// NewRunner returns a runner for env's driver on port. scanner may be nil.
func NewRunner(
	port board.Transport,
	env *task.Env,
	inputs *advisory.Inputs,
	scanner lidar.Device,
	cfg LoopConfig,
) (*Runner, error) {
	if err := cfg.Validate("loop"); err != nil {
		return nil, err
	}
	return &Runner{
		port:     port,
		env:      env,
		inputs:   inputs,
		scanner:  scanner,
		cfg:      cfg,
		logger:   env.Logger,
		commands: make(chan Command, commandBuffer),
	}, nil
}

// Send queues an operator command. It never blocks and reports false if the queue is full.
func (r *Runner) Send(cmd Command) bool {
	select {
	case r.commands <- cmd:
		return true
	default:
		r.logger.Warnw("dropping operator command", "command", cmd)
		return false
	}
}

// Run pushes start to the board if given, then ticks head and its successors until the
// chain is done, ctx ends or the mission is aborted. The wheels are stopped on return.
func (r *Runner) Run(ctx context.Context, start *spatialmath.Position, head *task.Task) (err error) {
	if start != nil {
		if err := r.port.SetPose(ctx, start.X, start.Y, start.Theta); err != nil {
			return errors.Wrap(err, "failed to set start pose")
		}
	}

	if r.scanner != nil {
		monitor := lidar.NewMonitor(r.scanner, r.inputs.PublishScan, r.logger)
		monitor.Start(ctx)
		defer func() {
			err = multierr.Combine(err, monitor.Stop())
		}()
	}
	defer func() {
		// ctx may be done already
		err = multierr.Combine(err, r.env.Driver.Stop(context.Background()))
	}()

	ticker := r.env.Clock.Ticker(r.cfg.Period())
	defer ticker.Stop()

	started := r.env.Clock.Now()
	r.logger.Infow("mission started", "tasks", head.Len(), "period", r.cfg.Period())
	failures := 0
	for cur := head; cur != nil; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.commands:
			r.logger.Infow("operator command", "command", cmd)
			switch cmd {
			case CommandStop:
				r.inputs.SetStop(true)
			case CommandResume:
				r.inputs.SetStop(false)
			case CommandAbort:
				return errors.Wrap(ErrMissionAborted, "operator abort")
			}
			continue
		case <-ticker.C:
		}

		next, state, err := cur.Tick(ctx, started)
		if err != nil {
			if !board.IsTransportError(err) {
				return multierr.Combine(ErrMissionAborted, err)
			}
			failures++
			r.logger.Warnw("transport failure", "error", err, "consecutive", failures)
			if failures >= r.cfg.MaxTransportFailures {
				return multierr.Combine(ErrMissionAborted, err)
			}
			if next != nil {
				cur = next
			}
			continue
		}
		failures = 0
		if next != cur && next != nil {
			r.logger.Infow("task started", "task", next.ID, "current", next.Current())
		}
		r.logger.Debugw("tick", "pose", state.Pose, "finished", state.Finished, "stopped", state.Stopped)
		cur = next
	}
	r.logger.Infow("mission complete", "elapsed", r.env.Clock.Since(started), "pose", r.env.Driver.Pose())
	return nil
}
