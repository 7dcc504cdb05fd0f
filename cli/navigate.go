package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/components/base/wheeled"
	"github.com/eurobot-nav/navcore/components/board"
	"github.com/eurobot-nav/navcore/components/board/arduino"
	"github.com/eurobot-nav/navcore/components/board/fake"
	"github.com/eurobot-nav/navcore/config"
	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/lidar/rplidar"
	"github.com/eurobot-nav/navcore/motionplan"
	"github.com/eurobot-nav/navcore/robot"
	"github.com/eurobot-nav/navcore/robot/actions"
	"github.com/eurobot-nav/navcore/robot/advisory"
	"github.com/eurobot-nav/navcore/robot/task"
	"github.com/eurobot-nav/navcore/spatialmath"
)

func loadConfig(c *cli.Context, logger golog.Logger) (*config.Config, error) {
	path := c.Path(flagConfig)
	if path == "" {
		logger.Debug("no config file given, using defaults")
		return config.Default(), nil
	}
	return config.Read(path, logger)
}

func newPlanner(cfg *config.Config, logger golog.Logger) (motionplan.Planner, error) {
	grid, err := motionplan.NewOccupancyGrid(cfg.ArenaOrDefault(), cfg.Planner.CellMM)
	if err != nil {
		return nil, err
	}
	return motionplan.NewPlanner(cfg.Planner, grid, cfg.Geometry.BotWidthMM, logger)
}

// openBoard returns the transport and a function that closes it.
func openBoard(ctx context.Context, cfg *config.Config, simulate bool, logger golog.Logger) (
	board.Transport, func() error, error,
) {
	if simulate {
		fb := fake.NewBoard(cfg.Geometry.PulsesPerMM(), cfg.Geometry.WheelSeparationMM, logger)
		return fb, func() error { return nil }, nil
	}
	if cfg.Serial.Path == "" {
		return nil, nil, goutils.NewConfigValidationFieldRequiredError("serial", "path")
	}
	b, err := arduino.NewBoard(ctx, cfg.Serial, logger)
	if err != nil {
		return nil, nil, err
	}
	return b, func() error { return b.Close(context.Background()) }, nil
}

// RunAction runs a mission until it completes, fails or is interrupted.
func RunAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	mission, err := config.ReadMission(c.Path(flagMission))
	if err != nil {
		return err
	}

	ctx := c.Context
	simulate := c.Bool(flagFake)
	port, closePort, err := openBoard(ctx, cfg, simulate, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closePort())
	}()

	planner, err := newPlanner(cfg, logger)
	if err != nil {
		return err
	}
	inputs := advisory.NewInputs(cfg.Lidar)
	clk := clock.New()
	ctrl, err := wheeled.NewController(cfg.ControllerConfig(), port, inputs, clk, logger)
	if err != nil {
		return err
	}
	env := &task.Env{Driver: ctrl, Planner: planner, Clock: clk, Logger: logger, Config: cfg.Task}
	head, err := mission.Chain(env)
	if err != nil {
		return err
	}

	// the runner closes the scanner when the mission ends
	var scanner lidar.Device
	if cfg.Lidar.Path != "" && !simulate {
		dev, err := rplidar.Open(cfg.Lidar.Path, cfg.Lidar.BaudRate, logger)
		if err != nil {
			return err
		}
		scanner = dev
	}
	runner, err := robot.NewRunner(port, env, inputs, scanner, cfg.Loop)
	if err != nil {
		if scanner != nil {
			err = multierr.Combine(err, scanner.Close())
		}
		return err
	}

	if c.Bool(flagOperator) {
		goutils.PanicCapturingGo(func() {
			readOperatorCommands(c, runner)
		})
	}

	runErr := runner.Run(ctx, mission.StartPosition(), head)
	printf(c.App.Writer, "final pose %v", ctrl.Pose())
	return runErr
}

// readOperatorCommands forwards one command per input line until the input ends.
func readOperatorCommands(c *cli.Context, runner *robot.Runner) {
	in := bufio.NewScanner(c.App.Reader)
	for in.Scan() {
		var cmd robot.Command
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "s", "stop":
			cmd = robot.CommandStop
		case "r", "resume":
			cmd = robot.CommandResume
		case "a", "abort":
			cmd = robot.CommandAbort
		case "":
			continue
		default:
			warningf(c.App.ErrWriter, "unknown command %q; use stop, resume or abort", in.Text())
			continue
		}
		runner.Send(cmd)
	}
}

// PlanAction plans one route and prints its waypoints and the actions that would drive it.
func PlanAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	from, fromTheta, err := parsePose(c.String(flagFrom))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagFrom)
	}
	if fromTheta != nil {
		from = spatialmath.NewPosition(from.X, from.Y, *fromTheta)
	}
	to, theta, err := parsePose(c.String(flagTo))
	if err != nil {
		return errors.Wrapf(err, "--%s", flagTo)
	}

	planner, err := newPlanner(cfg, logger)
	if err != nil {
		return err
	}
	path, err := planner.Plan(c.Context, from, to)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "X", "Y", "Leg mm"})
	prev := from.Point()
	for i, p := range path {
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.0f", p.X),
			fmt.Sprintf("%.0f", p.Y),
			fmt.Sprintf("%.0f", p.Sub(prev).Norm()),
		})
		prev = p
	}
	printf(c.App.Writer, "%s", t.Render())
	printf(c.App.Writer, "length: %.0f mm", motionplan.PathLength(from.Point(), path))
	spliced := task.Splice(from, path, theta)
	printf(c.App.Writer, "actions: %s", strings.Join(actions.Strings(spliced), " "))
	return nil
}

// CheckAction validates a mission file and prints each task's canonical tokens.
func CheckAction(c *cli.Context) error {
	mission, err := config.ReadMission(c.Path(flagMission))
	if err != nil {
		return err
	}
	if start := mission.StartPosition(); start != nil {
		printf(c.App.Writer, "start: %v", *start)
	}
	lists, err := mission.Actions()
	if err != nil {
		return err
	}
	for i, as := range lists {
		printf(c.App.Writer, "task %d: %s", i, strings.Join(actions.Strings(as), " "))
	}
	grips := lo.CountBy(lists, func(as []actions.Action) bool {
		return lo.ContainsBy(as, func(a actions.Action) bool {
			_, ok := a.(actions.GripEngageLock)
			return ok
		})
	})
	printf(c.App.Writer, "%d tasks, %d with a gripper lock", len(lists), grips)
	return nil
}

// ArenaAction prints the configured arena.
func ArenaAction(c *cli.Context) error {
	cfg, err := loadConfig(c, newLogger(c))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", cfg.ArenaOrDefault().String())
	return nil
}

// parsePose parses "x,y" or "x,y,theta". The position is clamped to the arena.
func parsePose(s string) (spatialmath.Position, *float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return spatialmath.Position{}, nil, errors.Errorf("expected x,y[,theta], got %q", s)
	}
	nums := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return spatialmath.Position{}, nil, errors.Wrapf(err, "bad number in %q", s)
		}
		nums[i] = v
	}
	var theta *float64
	if len(nums) == 3 {
		theta = &nums[2]
	}
	return spatialmath.NewPosition(nums[0], nums[1], 0), theta, nil
}
