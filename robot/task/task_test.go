package task

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/test"

	"github.com/eurobot-nav/navcore/components/base/wheeled"
	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/spatialmath"
	"github.com/eurobot-nav/navcore/testutils/inject"
)

type fakeDriver struct {
	pose    spatialmath.Position
	calls   []actions.Action
	stops   int
	state   wheeled.DriveState
	tickErr error
}

func (d *fakeDriver) Pose() spatialmath.Position { return d.pose }

func (d *fakeDriver) DriveDistance(ctx context.Context, mm float64) error {
	d.calls = append(d.calls, actions.DriveDistance{MM: mm})
	return nil
}

func (d *fakeDriver) TurnAngle(ctx context.Context, angleDeg float64) error {
	d.calls = append(d.calls, actions.TurnRelative{Deg: angleDeg})
	return nil
}

func (d *fakeDriver) TurnTo(ctx context.Context, headingDeg float64) error {
	d.calls = append(d.calls, actions.TurnToHeading{Deg: headingDeg})
	return nil
}

func (d *fakeDriver) Stop(ctx context.Context) error {
	d.stops++
	return nil
}

func (d *fakeDriver) Tick(ctx context.Context) (wheeled.DriveState, error) {
	s := d.state
	s.Pose = d.pose
	return s, d.tickErr
}

func (d *fakeDriver) tokens() []string {
	return actions.Strings(d.calls)
}

func newEnv(t *testing.T, d *fakeDriver, p motionplan.Planner) (*Env, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	return &Env{Driver: d, Planner: p, Clock: clk, Logger: golog.NewTestLogger(t), Config: DefaultConfig}, clk
}

func parseChain(t *testing.T, env *Env, tokens ...[]string) *Task {
	t.Helper()
	tk, err := ParseChain(env, tokens)
	test.That(t, err, test.ShouldBeNil)
	return tk
}

func TestSingleDrive(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{state: wheeled.DriveState{Finished: true}}
	env, clk := newEnv(t, d, nil)
	tk := parseChain(t, env, []string{"dd500"})

	next, state, err := tk.Tick(ctx, clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldBeNil)
	test.That(t, state.Finished, test.ShouldBeTrue)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500"})
	test.That(t, tk.Actions(), test.ShouldBeEmpty)
	test.That(t, tk.Next(), test.ShouldBeNil)

	next, err = tk.Advance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldBeNil)
}

func TestChainOrder(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd100", "ta90"}, []string{"dd50"})
	test.That(t, tk.Len(), test.ShouldEqual, 2)

	next, state, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)
	test.That(t, state.Finished, test.ShouldBeFalse)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd100"})
	test.That(t, tk.Current(), test.ShouldResemble, actions.Action(actions.DriveDistance{MM: 100}))

	d.state.Finished = true
	next, state, err = tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)
	test.That(t, state.Finished, test.ShouldBeFalse)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd100", "ta90"})

	next, _, err = tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk.Next())
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd100", "ta90", "dd50"})

	last, state, err := next.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, last, test.ShouldBeNil)
	test.That(t, state.Finished, test.ShouldBeTrue)
}

func TestEmptyTasksAreSkipped(t *testing.T) {
	d := &fakeDriver{}
	env, clk := newEnv(t, d, nil)
	tk := parseChain(t, env, []string{}, []string{"gl", "gr"}, []string{"tt45"})

	next, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk.Next().Next())
	test.That(t, d.tokens(), test.ShouldResemble, []string{"tt45"})
}

func TestUnknownAction(t *testing.T) {
	env, _ := newEnv(t, &fakeDriver{}, nil)
	_, err := ParseChain(env, [][]string{{"dd10"}, {"dd500", "zz1"}})
	test.That(t, actions.IsUnknownAction(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "task 1")
}

func waypoints(pts ...r3.Vector) *inject.Planner {
	return &inject.Planner{PlanFunc: func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
		return pts, nil
	}}
}

func TestSplice(t *testing.T) {
	from := spatialmath.Position{X: 100, Y: 100}
	path := []r3.Vector{{X: 100, Y: 500}, {X: 600, Y: 500}, {X: 600, Y: 900}}
	theta := 90.

	out := Splice(from, path, &theta)
	test.That(t, len(out), test.ShouldEqual, 7)
	test.That(t, Splice(from, path, nil), test.ShouldHaveLength, 6)
	test.That(t, Splice(from, nil, nil), test.ShouldBeEmpty)

	expected := []float64{90, 400, -90, 500, 90, 400, 90}
	for i, a := range out {
		switch a := a.(type) {
		case actions.TurnRelative:
			test.That(t, i%2, test.ShouldEqual, 0)
			test.That(t, a.Deg, test.ShouldAlmostEqual, expected[i])
		case actions.DriveDistance:
			test.That(t, i%2, test.ShouldEqual, 1)
			test.That(t, a.MM, test.ShouldAlmostEqual, expected[i])
		case actions.TurnToHeading:
			test.That(t, i, test.ShouldEqual, 6)
			test.That(t, a.Deg, test.ShouldEqual, expected[i])
		default:
			t.Fatalf("unexpected action %v", a)
		}
	}
}

func TestPathToSplicesInPlace(t *testing.T) {
	d := &fakeDriver{pose: spatialmath.Position{X: 100, Y: 100}}
	planner := waypoints(r3.Vector{X: 100, Y: 500}, r3.Vector{X: 600, Y: 500}, r3.Vector{X: 600, Y: 900})
	var gotStart, gotGoal spatialmath.Position
	inner := planner.PlanFunc
	planner.PlanFunc = func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
		gotStart, gotGoal = start, goal
		return inner(ctx, start, goal)
	}
	env, clk := newEnv(t, d, planner)
	tk := parseChain(t, env, []string{"dp600;900;90", "dd10"})

	next, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)
	test.That(t, gotStart, test.ShouldResemble, d.pose)
	test.That(t, gotGoal.X, test.ShouldEqual, 600.0)
	test.That(t, gotGoal.Y, test.ShouldEqual, 900.0)

	test.That(t, len(d.calls), test.ShouldEqual, 1)
	test.That(t, d.calls[0].(actions.TurnRelative).Deg, test.ShouldAlmostEqual, 90.0)

	rest := tk.Actions()
	test.That(t, len(rest), test.ShouldEqual, 7)
	test.That(t, lo.CountBy(rest, func(a actions.Action) bool {
		_, ok := a.(actions.PathTo)
		return ok
	}), test.ShouldEqual, 0)
	test.That(t, rest[5], test.ShouldResemble, actions.Action(actions.TurnToHeading{Deg: 90}))
	test.That(t, rest[6], test.ShouldResemble, actions.Action(actions.DriveDistance{MM: 10}))
}

func noPathPlanner() *inject.Planner {
	return &inject.Planner{PlanFunc: func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
		return nil, motionplan.NewNoPathFoundError(start, goal)
	}}
}

func TestNoPathAbort(t *testing.T) {
	d := &fakeDriver{}
	env, clk := newEnv(t, d, noPathPlanner())
	tk := parseChain(t, env, []string{"dp2500;500", "dd10"})

	_, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, motionplan.IsNoPathFound(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dp2500;500")
	test.That(t, d.calls, test.ShouldBeEmpty)
}

func TestNoPathSkip(t *testing.T) {
	d := &fakeDriver{}
	env, clk := newEnv(t, d, noPathPlanner())
	env.Config.NoPath = NoPathSkip
	tk := parseChain(t, env, []string{"dp2500;500;90", "dd10"})

	next, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd10"})
}

func TestNoPathVia(t *testing.T) {
	d := &fakeDriver{pose: spatialmath.Position{X: 500, Y: 500}}
	calls := 0
	planner := &inject.Planner{PlanFunc: func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
		calls++
		if start.X == 500 && goal.X == 2500 {
			return nil, motionplan.NewNoPathFoundError(start, goal)
		}
		return []r3.Vector{goal.Point()}, nil
	}}
	env, clk := newEnv(t, d, planner)
	env.Config.NoPath = NoPathVia
	env.Config.Via = []ViaPoint{{X: 1500, Y: 1500}}
	tk := parseChain(t, env, []string{"dp2500;500"})

	_, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 3)
	test.That(t, len(d.calls), test.ShouldEqual, 1)
	test.That(t, len(tk.Actions()), test.ShouldEqual, 3)
	test.That(t, tk.Actions()[0].(actions.DriveDistance).MM, test.ShouldAlmostEqual, 1000*1.4142135623730951)
}

func TestPlannerError(t *testing.T) {
	d := &fakeDriver{}
	planner := &inject.Planner{PlanFunc: func(ctx context.Context, start, goal spatialmath.Position) ([]r3.Vector, error) {
		return nil, context.Canceled
	}}
	env, clk := newEnv(t, d, planner)
	env.Config.NoPath = NoPathSkip
	tk := parseChain(t, env, []string{"dp2500;500"})

	_, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestStallRetry(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{state: wheeled.DriveState{Stopped: true}}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd500", "ta90"}, []string{"dd1"})
	last := tk.Next()

	next, _, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)

	clk.Add(5 * time.Second)
	next, _, err = tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)

	clk.Add(time.Millisecond)
	next, state, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldNotEqual, tk)
	test.That(t, state.Stopped, test.ShouldBeTrue)
	test.That(t, state.Finished, test.ShouldBeFalse)

	test.That(t, tk.Next(), test.ShouldEqual, next)
	test.That(t, next.Next(), test.ShouldEqual, last)
	test.That(t, next.Retries(), test.ShouldEqual, 1)
	test.That(t, tk.Actions(), test.ShouldBeEmpty)
	test.That(t, actions.Strings(next.Actions()), test.ShouldResemble, []string{"ta90"})
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500", "dd500"})
}

func TestStallTimerResets(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{state: wheeled.DriveState{Stopped: true}}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd500"})

	for _, step := range []struct {
		wait    time.Duration
		stopped bool
	}{
		{0, true},
		{4 * time.Second, false},
		{2 * time.Second, true},
		{4 * time.Second, true},
	} {
		clk.Add(step.wait)
		d.state.Stopped = step.stopped
		next, _, err := tk.Tick(ctx, started)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, next, test.ShouldEqual, tk)
	}
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500"})
}

func TestOperatorHoldIsNotAStall(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{state: wheeled.DriveState{Stopped: true, Held: true}}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd500"}, []string{"ta90"})

	for i := 0; i < 10; i++ {
		next, _, err := tk.Tick(ctx, started)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, next, test.ShouldEqual, tk)
		clk.Add(3 * time.Second)
	}
	test.That(t, tk.Retries(), test.ShouldEqual, 0)
	test.That(t, tk.Next().Retries(), test.ShouldEqual, 0)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500"})

	// the window starts over once the hold turns into a real stall
	d.state.Held = false
	for _, wait := range []time.Duration{0, 5 * time.Second} {
		clk.Add(wait)
		next, _, err := tk.Tick(ctx, started)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, next, test.ShouldEqual, tk)
	}
	clk.Add(time.Millisecond)
	next, _, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next.Retries(), test.ShouldEqual, 1)
}

func TestStallWhileGripping(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{state: wheeled.DriveState{Stopped: true}}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"gl", "dd500", "gr"})

	for i := 0; i < 3; i++ {
		next, _, err := tk.Tick(ctx, started)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, next, test.ShouldEqual, tk)
		test.That(t, tk.Abortable(), test.ShouldBeFalse)
		clk.Add(6 * time.Second)
	}
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500"})
	test.That(t, tk.Next(), test.ShouldBeNil)
}

func TestStallRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	logger, logs := golog.NewObservedTestLogger(t)
	d := &fakeDriver{state: wheeled.DriveState{Stopped: true}}
	env, clk := newEnv(t, d, nil)
	env.Logger = logger
	env.Config.MaxRetries = 0
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd500", "ta90"}, []string{"dd1"})
	last := tk.Next()

	_, _, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	clk.Add(6 * time.Second)
	next, _, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, last)
	test.That(t, tk.Next(), test.ShouldEqual, last)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500", "dd1"})
	abandoned := logs.FilterMessageSnippet("abandoning").All()
	test.That(t, abandoned, test.ShouldHaveLength, 1)
	test.That(t, abandoned[0].ContextMap()["error"], test.ShouldEqual, ErrRetriesExhausted.Error())
	test.That(t, abandoned[0].ContextMap(), test.ShouldNotContainKey, "errorVerbose")
}

func TestMissionCutoff(t *testing.T) {
	ctx := context.Background()
	d := &fakeDriver{pose: spatialmath.Position{X: 10, Y: 20}}
	env, clk := newEnv(t, d, nil)
	started := clk.Now()
	tk := parseChain(t, env, []string{"dd500"}, []string{"dd1"})

	next, _, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldEqual, tk)

	clk.Add(100 * time.Second)
	next, state, err := tk.Tick(ctx, started)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldBeNil)
	test.That(t, state.Finished, test.ShouldBeTrue)
	test.That(t, state.Stopped, test.ShouldBeTrue)
	test.That(t, state.Pose, test.ShouldResemble, d.pose)
	test.That(t, d.stops, test.ShouldEqual, 1)
	test.That(t, d.tokens(), test.ShouldResemble, []string{"dd500"})
}

func TestDriverError(t *testing.T) {
	d := &fakeDriver{tickErr: errors.New("serial gone")}
	env, clk := newEnv(t, d, nil)
	tk := parseChain(t, env, []string{"dd500"})

	next, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, next, test.ShouldEqual, tk)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig
	test.That(t, cfg.Validate("task"), test.ShouldBeNil)
	test.That(t, cfg.StallWindow(), test.ShouldEqual, 5*time.Second)
	test.That(t, cfg.MissionCutoff(), test.ShouldEqual, 100*time.Second)

	for _, bad := range []Config{
		{MaxRetries: 1, NoPath: NoPathAbort},
		{StallWindowMS: 1, MaxRetries: -1, NoPath: NoPathAbort},
		{StallWindowMS: 1, MissionCutoffS: -1, NoPath: NoPathAbort},
		{StallWindowMS: 1},
		{StallWindowMS: 1, NoPath: "retreat"},
		{StallWindowMS: 1, NoPath: NoPathVia},
		{StallWindowMS: 1, NoPath: NoPathVia, Via: []ViaPoint{{X: 4000}}},
	} {
		test.That(t, bad.Validate("task"), test.ShouldNotBeNil)
	}
}

func TestDispatchErrorKeepsAction(t *testing.T) {
	d := &fakeDriver{}
	env, clk := newEnv(t, d, noPathPlanner())
	tk := parseChain(t, env, []string{"dp2500;500", "dd10"})

	_, _, err := tk.Tick(context.Background(), clk.Now())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, actions.Strings(tk.Actions()), test.ShouldResemble, []string{"dp2500;500", "dd10"})
}
