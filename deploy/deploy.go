// Package deploy starts and stops generated mock services, either inside
// the orchestrator process or as docker containers.
package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode names a deployment backend.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeDocker Mode = "docker"
)

func (m Mode) Validate() error {
	switch m {
	case ModeLocal, ModeDocker:
		return nil
	default:
		return errors.Errorf("invalid deploy mode '%s'", m)
	}
}

// Artifact is the uploaded specification of one service.
type Artifact struct {
	ID       string
	Filename string
	Data     []byte
	// Seed fixes generated data; zero picks a random seed.
	Seed uint64
}

func (a Artifact) Validate() error {
	if a.ID == "" {
		return errors.New("artifact id is required")
	}
	if len(a.Data) == 0 {
		return errors.New("artifact is empty")
	}
	return nil
}

// Deployment describes a running service.
type Deployment struct {
	ID        string `json:"id"`
	Mode      Mode   `json:"mode"`
	URL       string `json:"url"`
	Port      int    `json:"port"`
	Image     string `json:"image,omitempty"`
	Container string `json:"container,omitempty"`
}

// Deployer starts and stops services.
type Deployer interface {
	Deploy(context.Context, Artifact) (Deployment, error)
	Remove(context.Context, Deployment) error
}

// DockerError is a failed docker command.
type DockerError struct {
	Command string
	Output  string
	Err     error
}

func (e *DockerError) Error() string {
	msg := fmt.Sprintf("docker %s failed", e.Command)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *DockerError) Cause() error { return e.Err }

// IsDockerError reports whether err, or an error it wraps, came from a
// docker command.
func IsDockerError(err error) bool {
	for err != nil {
		if _, ok := err.(*DockerError); ok {
			return true
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}

func serviceURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}
