package deploy

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// CommandRunner runs one external command in dir and returns its combined
// output.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

type execRunner struct{}

// NewCommandRunner returns a runner for local processes.
func NewCommandRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	grip.Debug(message.Fields{
		"message": "running command",
		"command": name,
		"args":    strings.Join(args, " "),
		"dir":     dir,
	})
	err := cmd.Run()
	return out.String(), errors.Wrapf(err, "running %s", name)
}
