// Package cli contains the navcore command line.
package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogFile  = "log-file"
	flagMission  = "mission"
	flagFake     = "fake"
	flagOperator = "operator"
	flagFrom     = "from"
	flagTo       = "to"
)

var app = &cli.App{
	Name:            "navcore",
	Usage:           "drive a two-wheeled table robot through its missions",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`; built-in defaults otherwise",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  flagLogFile,
			Usage: "also write JSON logs to `FILE`, rotated at 10MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "run a mission on the robot",
			UsageText: "navcore [--config FILE] run --mission FILE [--fake] [--operator]",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     flagMission,
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "mission `FILE`",
				},
				&cli.BoolFlag{
					Name:  flagFake,
					Usage: "drive a simulated board instead of the serial one",
				},
				&cli.BoolFlag{
					Name:  flagOperator,
					Usage: "read stop, resume and abort commands from stdin",
				},
			},
			Action: RunAction,
		},
		{
			Name:      "plan",
			Usage:     "plan a route across the arena and print the resulting actions",
			UsageText: "navcore [--config FILE] plan --from X,Y[,THETA] --to X,Y[,THETA]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagFrom,
					Required: true,
					Usage:    "start pose in millimeters and degrees",
				},
				&cli.StringFlag{
					Name:     flagTo,
					Required: true,
					Usage:    "goal position, with an optional final heading",
				},
			},
			Action: PlanAction,
		},
		{
			Name:   "arena",
			Usage:  "print the arena obstacles the planners use",
			Action: ArenaAction,
		},
		{
			Name:  "check",
			Usage: "parse a mission and print it in canonical form",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     flagMission,
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "mission `FILE`",
				},
			},
			Action: CheckAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, color.New(color.Bold, color.FgYellow).Sprint("Warning: ")+format+"\n", a...)
}
