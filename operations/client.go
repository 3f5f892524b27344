package operations

import (
	"context"
	"fmt"
	"os"

	"github.com/Nikpro200125/orchestrator/rest"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Client returns the ./orchestrator client sub-command, which talks to a
// remote orchestrator service.
func Client() cli.Command {
	return cli.Command{
		Name:  "client",
		Usage: "interact with a remote orchestrator service",
		Flags: restServiceFlags(),
		Subcommands: []cli.Command{
			printStatus(),
			generateService(),
			listServices(),
			getService(),
			removeService(),
		},
	}
}

func newClient(c *cli.Context) (*rest.Client, error) {
	client, err := rest.NewClient(rest.ClientOptions{
		Host: c.Parent().String(clientHostFlag),
		Port: c.Parent().Int(clientPortFlag),
	})
	return client, errors.Wrap(err, "problem creating REST client")
}

func printStatus() cli.Command {
	return cli.Command{
		Name:   "status",
		Usage:  "prints json document for the status of the service",
		Before: mergeBeforeFuncs(requireClientHostFlag, requireClientPortFlag),
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}

			status, err := client.GetStatus(context.Background())
			if err != nil {
				return errors.Wrap(err, "problem getting status")
			}

			return printJSON(status)
		},
	}
}

func generateService() cli.Command {
	return cli.Command{
		Name:  "generate",
		Usage: "upload a specification and deploy a mock service for it",
		Flags: generateFlags(),
		Before: mergeBeforeFuncs(
			requireClientHostFlag,
			setFlagOrFirstPositional(pathFlagName),
			requireStringFlag(pathFlagName),
			requireFileExists(pathFlagName),
		),
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			path := c.String(pathFlagName)
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "problem reading '%s'", path)
			}

			client, err := newClient(c)
			if err != nil {
				return err
			}

			req := rest.GenerateRequest{
				Filename: path,
				Data:     data,
				Name:     c.String(nameFlag),
				Seed:     c.Int64(seedFlag),
			}
			if c.Bool(asyncFlag) {
				ack, err := client.GenerateServiceAsync(ctx, req)
				if err != nil {
					return errors.WithStack(err)
				}
				return printJSON(ack)
			}

			url, err := client.GenerateService(ctx, req)
			if err != nil {
				return errors.WithStack(err)
			}
			fmt.Println(url)
			return nil
		},
	}
}

func listServices() cli.Command {
	return cli.Command{
		Name:   "list",
		Usage:  "list the generated services",
		Before: mergeBeforeFuncs(requireClientHostFlag, requireClientPortFlag),
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}

			services, err := client.ListServices(context.Background())
			if err != nil {
				return errors.WithStack(err)
			}

			for _, svc := range services {
				fmt.Printf("%s\t%s\t%s\t%s\n",
					utility.FromStringPtr(svc.ID),
					utility.FromStringPtr(svc.Status),
					utility.FromStringPtr(svc.Name),
					utility.FromStringPtr(svc.URL))
			}
			return nil
		},
	}
}

func getService() cli.Command {
	return cli.Command{
		Name:   "get",
		Usage:  "print one generated service",
		Flags:  addIDFlag(),
		Before: mergeBeforeFuncs(requireClientHostFlag, setFlagOrFirstPositional(idFlag), requireStringFlag(idFlag)),
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}

			svc, err := client.GetService(context.Background(), c.String(idFlag))
			if err != nil {
				return errors.WithStack(err)
			}
			return printJSON(svc)
		},
	}
}

func removeService() cli.Command {
	return cli.Command{
		Name:   "remove",
		Usage:  "stop a generated service",
		Flags:  addIDFlag(),
		Before: mergeBeforeFuncs(requireClientHostFlag, setFlagOrFirstPositional(idFlag), requireStringFlag(idFlag)),
		Action: func(c *cli.Context) error {
			client, err := newClient(c)
			if err != nil {
				return err
			}

			svc, err := client.RemoveService(context.Background(), c.String(idFlag))
			if err != nil {
				return errors.WithStack(err)
			}
			return printJSON(svc)
		},
	}
}
