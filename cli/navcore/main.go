// Package main is the navcore command itself.
package main

import (
	"context"
	"os"

	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"

	navcli "github.com/eurobot-nav/navcore/cli"
)

var logger = golog.NewDevelopmentLogger("navcore")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, _ golog.Logger) error {
	return navcli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}
