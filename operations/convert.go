package operations

import (
	"context"
	"fmt"
	"os"

	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Convert returns the ./orchestrator convert sub-command, which prints or
// writes the OpenAPI document generated from a LibSL specification.
func Convert() cli.Command {
	return cli.Command{
		Name:  "convert",
		Usage: "generate an OpenAPI document from a LibSL specification",
		Flags: addOutputPath(addPathFlag(
			cli.StringFlag{
				Name:  formatFlagName,
				Usage: "output format, 'yaml' or 'json'",
				Value: string(openapi.FormatYAML),
			})...),
		Before: mergeBeforeFuncs(
			setFlagOrFirstPositional(pathFlagName),
			requireStringFlag(pathFlagName),
			requireFileExists(pathFlagName),
		),
		Action: func(c *cli.Context) error {
			path := c.String(pathFlagName)
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "problem reading '%s'", path)
			}

			out, err := convertSpecification(context.Background(), path, data, openapi.Format(c.String(formatFlagName)))
			if err != nil {
				return errors.WithStack(err)
			}

			fn := c.String(outputFlagName)
			if fn == "" {
				fmt.Println(string(out))
				return nil
			}
			if err = writeOutput(fn, out); err != nil {
				return errors.Wrapf(err, "problem writing '%s'", fn)
			}
			grip.Infof("wrote OpenAPI document for '%s' to '%s'", path, fn)
			return nil
		},
	}
}

func convertSpecification(ctx context.Context, filename string, data []byte, format openapi.Format) ([]byte, error) {
	if openapi.DetectSource(filename, data) != openapi.SourceLibSL {
		return nil, errors.Errorf("'%s' is not a LibSL specification", filename)
	}

	src, err := openapi.LoadSource(ctx, filename, data)
	if err != nil {
		return nil, errors.Wrapf(err, "problem converting '%s'", filename)
	}

	return openapi.Encode(src.Document, format)
}
