package operations

import (
	"context"

	"github.com/Nikpro200125/orchestrator/rest"
	"github.com/Nikpro200125/orchestrator/units"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Service returns the ./orchestrator service sub-command object, which is
// responsible for starting the API service.
func Service() cli.Command {
	return cli.Command{
		Name:  "service",
		Usage: "run the orchestrator api service",
		Flags: mergeFlags(baseFlags(), dbFlags(), deployFlags(
			cli.IntFlag{
				Name:   joinFlagNames(servicePortFlag, "p"),
				Usage:  "specify a port to run the service on",
				Value:  8080,
				EnvVar: "ORCHESTRATOR_SERVICE_PORT",
			})),
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			conf, err := serviceConf(c)
			if err != nil {
				return errors.WithStack(err)
			}

			env, err := configure(ctx, conf)
			if err != nil {
				return errors.WithStack(err)
			}
			defer func() {
				grip.Warning(message.WrapError(env.Close(context.Background()), message.Fields{
					"message": "problem closing environment",
				}))
			}()

			if err = units.StartCrons(ctx, env); err != nil {
				return errors.Wrap(err, "problem starting background jobs")
			}

			service := &rest.Service{
				Port:        c.Int(servicePortFlag),
				Environment: env,
			}
			if err = service.Validate(); err != nil {
				return errors.Wrap(err, "problem validating service")
			}

			grip.Noticef("starting orchestrator service on :%d", service.Port)
			if err = service.Start(ctx); err != nil {
				return errors.Wrap(err, "problem running service")
			}
			grip.Info("completed service, terminating.")

			return nil
		},
	}
}
