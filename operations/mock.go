package operations

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nikpro200125/orchestrator/mock"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Mock returns the ./orchestrator mock sub-command, which serves one
// specification directly. Docker deployments run this command inside the
// container.
func Mock() cli.Command {
	return cli.Command{
		Name:  "mock",
		Usage: "run a mock service for a LibSL or OpenAPI specification",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  specFlagName,
				Usage: "path to the specification to serve",
			},
			cli.IntFlag{
				Name:  joinFlagNames(servicePortFlag, "p"),
				Usage: "port to serve on, zero picks a free port",
				Value: 8080,
			},
			cli.Int64Flag{
				Name:  seedFlag,
				Usage: "seed for the generated data",
			},
			cli.BoolFlag{
				Name:  watchFlag,
				Usage: "reload the service when the specification changes",
			},
		},
		Before: mergeBeforeFuncs(
			setFlagOrFirstPositional(specFlagName),
			requireStringFlag(specFlagName),
			requireFileExists(specFlagName),
		),
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			path := c.String(specFlagName)
			seed := uint64(c.Int64(seedFlag))

			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "problem reading '%s'", path)
			}

			svc, err := mock.LoadService(ctx, path, data, seed)
			if err != nil {
				return errors.Wrapf(err, "problem loading '%s'", path)
			}

			srv, err := mock.NewServer(svc)
			if err != nil {
				return errors.WithStack(err)
			}
			if err = srv.Start(ctx, fmt.Sprintf(":%d", c.Int(servicePortFlag))); err != nil {
				return errors.WithStack(err)
			}

			if c.Bool(watchFlag) {
				go func() {
					defer recovery.LogStackTraceAndContinue("specification watcher")
					grip.Error(message.WrapError(srv.Watch(ctx, path, seed), message.Fields{
						"message": "stopped watching specification",
						"path":    path,
					}))
				}()
			}

			grip.Noticef("serving '%s' on %s", path, srv.Addr())
			return errors.WithStack(srv.Wait())
		},
	}
}
