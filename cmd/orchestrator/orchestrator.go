package main

import (
	"os"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/operations"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func main() {
	// the command line interface is managed by the cli package; the
	// subcommands live in the operations package.
	app := buildApp()
	err := app.Run(os.Args)
	grip.EmergencyFatal(err)
}

func buildApp() *cli.App {
	app := cli.NewApp()

	app.Name = "orchestrator"
	app.Usage = "generate and deploy mock services from LibSL and OpenAPI specifications"
	app.Version = "0.1.0"
	if orchestrator.BuildRevision != "" {
		app.Version += "+" + orchestrator.BuildRevision
	}

	app.Commands = []cli.Command{
		operations.Service(),
		operations.Mock(),
		operations.Convert(),
		operations.Client(),
	}

	// These are global options. Use this to configure logging or
	// other options independent from specific sub commands.
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "level",
			Value: "info",
			Usage: "Specify lowest visible loglevel as string: 'emergency|alert|critical|error|warning|notice|info|debug'",
		},
	}

	app.Before = func(c *cli.Context) error {
		return errors.WithStack(loggingSetup(app.Name, c.String("level")))
	}

	return app
}

// logging setup is separate to make it unit testable
func loggingSetup(name, logLevel string) error {
	sender := grip.GetSender()
	sender.SetName(name)

	lvl := sender.Level()
	lvl.Threshold = level.FromString(logLevel)
	return errors.WithStack(sender.SetLevel(lvl))
}
