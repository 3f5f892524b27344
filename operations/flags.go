package operations

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

////////////////////////////////////////////////////////////////////////
//
// Flag Name Constants

const (
	configFlag     = "config"
	pathFlagName   = "path"
	specFlagName   = "spec"
	outputFlagName = "output"
	formatFlagName = "format"

	numWorkersFlag = "workers"
	bucketTypeFlag = "bucketType"
	bucketNameFlag = "bucket"

	storeTypeFlag = "store"
	boltPathFlag  = "boltPath"
	dbURIFlag     = "dbUri"
	dbNameFlag    = "dbName"

	deployModeFlag = "deploy"
	publicHostFlag = "publicHost"
	baseImageFlag  = "baseImage"
	rateLimitFlag  = "rateLimit"
	rateBurstFlag  = "rateBurst"

	clientHostFlag = "host"
	clientPortFlag = "port"

	servicePortFlag = "port"
	seedFlag        = "seed"
	watchFlag       = "watch"
	nameFlag        = "name"
	asyncFlag       = "async"
	idFlag          = "id"
)

////////////////////////////////////////////////////////////////////////
//
// Utility Functions

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func mergeFlags(in ...[]cli.Flag) []cli.Flag {
	out := []cli.Flag{}

	for idx := range in {
		out = append(out, in[idx]...)
	}

	return out
}

////////////////////////////////////////////////////////////////////////
//
// Flag Groups

func addPathFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(pathFlagName, "filename", "file", "f"),
		Usage: "path to a LibSL or OpenAPI specification",
	})
}

func addOutputPath(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(outputFlagName, "o"),
		Usage: "path to the output file, standard output if unset",
	})
}

func addIDFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  idFlag,
		Usage: "identifier of the generated service",
	})
}

func restServiceFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:   clientHostFlag,
			Usage:  "host for the remote orchestrator instance.",
			Value:  "http://localhost",
			EnvVar: "ORCHESTRATOR_HOST",
		},
		cli.IntFlag{
			Name:   clientPortFlag,
			Usage:  "port for the remote orchestrator service.",
			Value:  8080,
			EnvVar: "ORCHESTRATOR_PORT",
		},
	)
}

func generateFlags(flags ...cli.Flag) []cli.Flag {
	return append(addPathFlag(flags...),
		cli.StringFlag{
			Name:  nameFlag,
			Usage: "name of the generated service, defaults to the file name",
		},
		cli.Int64Flag{
			Name:  seedFlag,
			Usage: "seed for the generated data, zero picks one at random",
		},
		cli.BoolFlag{
			Name:  asyncFlag,
			Usage: "return as soon as the service is recorded",
		},
	)
}

func dbFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:   storeTypeFlag,
			Usage:  "service registry backend, 'bolt' or 'mongodb'",
			EnvVar: "ORCHESTRATOR_STORE",
		},
		cli.StringFlag{
			Name:   boltPathFlag,
			Usage:  "path to the bolt database file",
			EnvVar: "ORCHESTRATOR_BOLT_PATH",
		},
		cli.StringFlag{
			Name:   dbURIFlag,
			Usage:  "specify a mongodb connection string",
			Value:  "mongodb://localhost:27017",
			EnvVar: "ORCHESTRATOR_MONGODB_URL",
		},
		cli.StringFlag{
			Name:   dbNameFlag,
			Usage:  "specify a database name to use",
			Value:  "orchestrator",
			EnvVar: "ORCHESTRATOR_DATABASE_NAME",
		})
}

func deployFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:   deployModeFlag,
			Usage:  "how generated services run, 'local' or 'docker'",
			EnvVar: "ORCHESTRATOR_DEPLOY_MODE",
		},
		cli.StringFlag{
			Name:   publicHostFlag,
			Usage:  "host name used in the URLs of generated services",
			EnvVar: "ORCHESTRATOR_PUBLIC_HOST",
		},
		cli.StringFlag{
			Name:   baseImageFlag,
			Usage:  "docker image with the orchestrator binary, for docker deployments",
			EnvVar: "ORCHESTRATOR_BASE_IMAGE",
		},
		cli.Float64Flag{
			Name:  rateLimitFlag,
			Usage: "generate requests accepted per second, zero disables the limit",
		},
		cli.IntFlag{
			Name:  rateBurstFlag,
			Usage: "generate requests accepted in a burst",
		})
}

func setFlagOrFirstPositional(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		val := c.String(name)
		if val == "" {
			if c.NArg() != 1 {
				return errors.Errorf("must specify exactly one positional argument for '%s'", name)
			}

			val = c.Args().Get(0)
		}

		return c.Set(name, val)
	}
}

func baseFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:   configFlag,
			Usage:  "path to a YAML configuration file, flags take precedence",
			EnvVar: "ORCHESTRATOR_CONFIG",
		},
		cli.IntFlag{
			Name:  numWorkersFlag,
			Usage: "specify the number of worker jobs this process will have",
			Value: 2,
		},
		cli.StringFlag{
			Name:   bucketTypeFlag,
			Usage:  "storage for uploaded specifications, 'local' or 'gridfs'",
			EnvVar: "ORCHESTRATOR_BUCKET_TYPE",
		},
		cli.StringFlag{
			Name:   bucketNameFlag,
			Usage:  "directory or gridfs bucket name for uploaded specifications",
			EnvVar: "ORCHESTRATOR_BUCKET_NAME",
		})
}
