// Package task sequences a mission's actions on the drive controller, one Task at a time.
//
// A Task owns a queue of actions and, optionally, the Task that runs after it. Ticking the
// head of the chain drives the controller and moves along the queue and the chain; the
// caller keeps whatever Task the tick returns and ticks that one next.
package task

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eurobot-nav/navcore/components/base/wheeled"
	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// ErrRetriesExhausted is logged when a stalled task has used up its retries and is abandoned.
var ErrRetriesExhausted = errors.New("task retries exhausted")

// Driver executes motion primitives. *wheeled.Controller is one.
type Driver interface {
	Pose() spatialmath.Position
	DriveDistance(ctx context.Context, mm float64) error
	TurnAngle(ctx context.Context, angleDeg float64) error
	TurnTo(ctx context.Context, headingDeg float64) error
	Stop(ctx context.Context) error
	Tick(ctx context.Context) (wheeled.DriveState, error)
}

// Env is what every Task in a chain shares.
type Env struct {
	Driver  Driver
	Planner motionplan.Planner
	Clock   clock.Clock
	Logger  golog.Logger
	Config  Config
}

// A Task is a queue of actions with retry state and a successor.
type Task struct {
	ID uuid.UUID

	env          *Env
	actions      []actions.Action
	initial      []actions.Action
	current      actions.Action
	dispatched   bool
	abortable    bool
	retries      int
	stalledSince time.Time
	next         *Task
}

// New returns a Task running as, followed by next.
func New(env *Env, as []actions.Action, next *Task) *Task {
	return &Task{
		ID:        uuid.New(),
		env:       env,
		actions:   append([]actions.Action(nil), as...),
		initial:   append([]actions.Action(nil), as...),
		abortable: true,
		next:      next,
	}
}

// Actions returns the actions not yet started.
func (t *Task) Actions() []actions.Action {
	return append([]actions.Action(nil), t.actions...)
}

// Current is the action being executed, or nil.
func (t *Task) Current() actions.Action {
	return t.current
}

// Next is the successor.
func (t *Task) Next() *Task {
	return t.next
}

// Abortable reports whether a stall may retry this task.
func (t *Task) Abortable() bool {
	return t.abortable
}

// Retries is how many times this task's actions have been restarted.
func (t *Task) Retries() int {
	return t.retries
}

// Tick drives the controller for one step. It returns the Task to tick next, nil once the
// whole chain is done. started is when the mission began.
func (t *Task) Tick(ctx context.Context, started time.Time) (*Task, wheeled.DriveState, error) {
	env := t.env
	now := env.Clock.Now()
	if cutoff := env.Config.MissionCutoff(); cutoff > 0 && now.Sub(started) >= cutoff {
		env.Logger.Infow("mission time is up", "task", t.ID, "elapsed", now.Sub(started))
		err := env.Driver.Stop(ctx)
		return nil, wheeled.DriveState{Pose: env.Driver.Pose(), Finished: true, Stopped: true}, err
	}

	if !t.dispatched {
		cur, err := t.Advance(ctx)
		if err != nil {
			return cur, wheeled.DriveState{Pose: env.Driver.Pose()}, err
		}
		if cur == nil {
			return nil, wheeled.DriveState{Pose: env.Driver.Pose(), Finished: true}, nil
		}
		if cur != t {
			return cur.Tick(ctx, started)
		}
	}

	state, err := env.Driver.Tick(ctx)
	if err != nil {
		return t, state, err
	}

	// an operator hold is not a stall
	if state.Stopped && !state.Held {
		if t.stalledSince.IsZero() {
			t.stalledSince = now
		} else if now.Sub(t.stalledSince) > env.Config.StallWindow() && t.abortable {
			t.giveUp()
			state.Finished = false
			next, err := t.Advance(ctx)
			return next, state, err
		}
	} else {
		t.stalledSince = time.Time{}
	}

	if !state.Finished {
		return t, state, nil
	}
	next, err := t.Advance(ctx)
	if err != nil {
		return next, state, err
	}
	if next != nil {
		state.Finished = false
	}
	return next, state, nil
}

// giveUp drops everything left in the task and, retries permitting, queues a fresh copy
// of it right behind.
func (t *Task) giveUp() {
	logger := t.env.Logger
	t.actions = nil
	t.current = nil
	t.stalledSince = time.Time{}
	if t.retries >= t.env.Config.MaxRetries {
		logger.Warnw("abandoning stalled task", "task", t.ID, "error", ErrRetriesExhausted.Error(),
			"actions", actions.Strings(t.initial))
		return
	}
	fresh := New(t.env, t.initial, t.next)
	fresh.retries = t.retries + 1
	t.next = fresh
	logger.Warnw("task stalled, retrying", "task", t.ID, "retry", fresh.ID, "attempt", fresh.retries,
		"actions", actions.Strings(t.initial))
}

// Advance starts the next action of this task or, once it is empty, of the first
// successor that has one. It returns the task now running, or nil when the chain is done.
func (t *Task) Advance(ctx context.Context) (*Task, error) {
	cur := t
	for cur != nil {
		if len(cur.actions) == 0 {
			cur.current = nil
			if cur.next != nil {
				cur.env.Logger.Infow("task done", "task", cur.ID, "next", cur.next.ID)
			}
			cur = cur.next
			continue
		}
		a := cur.actions[0]
		cur.actions = cur.actions[1:]
		moving, err := cur.dispatch(ctx, a)
		if err != nil {
			// keep it for the next attempt
			cur.actions = append([]actions.Action{a}, cur.actions...)
			return cur, errors.Wrapf(err, "task %s: %s", cur.ID, a)
		}
		cur.dispatched = true
		if moving {
			cur.current = a
			return cur, nil
		}
	}
	return nil, nil
}

// dispatch starts a, reporting whether it set the controller in motion.
func (t *Task) dispatch(ctx context.Context, a actions.Action) (bool, error) {
	d := t.env.Driver
	t.env.Logger.Debugw("dispatch", "task", t.ID, "action", a.String())
	switch a := a.(type) {
	case actions.DriveDistance:
		return true, d.DriveDistance(ctx, a.MM)
	case actions.TurnRelative:
		return true, d.TurnAngle(ctx, a.Deg)
	case actions.TurnToHeading:
		return true, d.TurnTo(ctx, a.Deg)
	case actions.PathTo:
		spliced, err := t.expand(ctx, a)
		if err != nil {
			return false, err
		}
		t.actions = append(spliced, t.actions...)
		return false, nil
	case actions.GripEngageLock:
		t.abortable = false
		return false, nil
	case actions.GripRelease:
		t.abortable = true
		return false, nil
	default:
		return false, actions.NewUnknownActionError(a.String())
	}
}
