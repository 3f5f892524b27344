package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	// ImagePrefix starts the name of every built image.
	ImagePrefix = "generated-api-service-"
	// ContainerPort is the port services listen on inside containers.
	ContainerPort = 8080

	defaultSpecFile  = "openapi.yaml"
	lookupAttempts   = 5
	lookupRetryDelay = 200 * time.Millisecond
)

var dockerfile = template.Must(template.New("Dockerfile").Parse(`FROM {{ .BaseImage }}
COPY {{ .SpecFile }} /service/{{ .SpecFile }}
EXPOSE {{ .Port }}
ENTRYPOINT ["orchestrator", "mock", "--spec", "/service/{{ .SpecFile }}", "--port", "{{ .Port }}", "--seed", "{{ .Seed }}"]
`))

// DockerOptions configure the docker deployer. The base image must carry
// the orchestrator binary on its PATH.
type DockerOptions struct {
	Binary    string
	BaseImage string
	Host      string
	WorkDir   string
	Runner    CommandRunner
}

func (o *DockerOptions) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(o.BaseImage == "", "docker base image is required")
	if o.Binary == "" {
		o.Binary = "docker"
	}
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.Runner == nil {
		o.Runner = NewCommandRunner()
	}
	return catcher.Resolve()
}

// DockerDeployer builds an image per service and runs it as a container.
type DockerDeployer struct {
	opts DockerOptions
	now  func() time.Time
}

func NewDockerDeployer(opts DockerOptions) (*DockerDeployer, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid docker options")
	}
	return &DockerDeployer{opts: opts, now: time.Now}, nil
}

func (d *DockerDeployer) run(ctx context.Context, dir, command string, args ...string) (string, error) {
	out, err := d.opts.Runner.Run(ctx, dir, d.opts.Binary, append([]string{command}, args...)...)
	if err != nil {
		return out, &DockerError{Command: command, Output: out, Err: err}
	}
	return out, nil
}

// Deploy writes the artifact and a Dockerfile into a scratch directory,
// builds the image, starts a container publishing ContainerPort on a free
// host port and reports the URL of that port.
func (d *DockerDeployer) Deploy(ctx context.Context, a Artifact) (Deployment, error) {
	if err := a.Validate(); err != nil {
		return Deployment{}, errors.WithStack(err)
	}

	dir, err := os.MkdirTemp(d.opts.WorkDir, "generated-service-")
	if err != nil {
		return Deployment{}, errors.Wrap(err, "creating working directory")
	}
	defer func() {
		grip.Warning(message.WrapError(os.RemoveAll(dir), message.Fields{
			"message": "removing working directory",
			"dir":     dir,
		}))
	}()

	if err = d.writeContext(dir, a); err != nil {
		return Deployment{}, err
	}

	image := fmt.Sprintf("%s%d", ImagePrefix, d.now().UnixMilli())
	if _, err = d.run(ctx, dir, "build", "-t", image, "."); err != nil {
		return Deployment{}, err
	}

	out, err := d.run(ctx, dir, "run", "-p", fmt.Sprintf(":%d", ContainerPort), "-d", image)
	if err != nil {
		d.discard(ctx, a.ID, Deployment{Image: image})
		return Deployment{}, err
	}
	container := lastLine(out)

	name, port, err := d.lookup(ctx, image)
	if err != nil {
		d.discard(ctx, a.ID, Deployment{Container: container, Image: image})
		return Deployment{}, err
	}
	if name != "" {
		container = name
	}

	dep := Deployment{
		ID:        a.ID,
		Mode:      ModeDocker,
		URL:       serviceURL(d.opts.Host, port),
		Port:      port,
		Image:     image,
		Container: container,
	}
	grip.Info(message.Fields{
		"message":   "deployed service container",
		"id":        a.ID,
		"image":     image,
		"container": container,
		"url":       dep.URL,
	})
	return dep, nil
}

// discard removes what a failed deployment left behind.
func (d *DockerDeployer) discard(ctx context.Context, id string, dep Deployment) {
	grip.Warning(message.WrapError(d.Remove(context.WithoutCancel(ctx), dep), message.Fields{
		"message":   "problem cleaning up failed deployment",
		"id":        id,
		"image":     dep.Image,
		"container": dep.Container,
	}))
}

func (d *DockerDeployer) writeContext(dir string, a Artifact) error {
	specFile := filepath.Base(a.Filename)
	if specFile == "." || specFile == string(filepath.Separator) || specFile == "" {
		specFile = defaultSpecFile
	}
	if err := os.WriteFile(filepath.Join(dir, specFile), a.Data, 0644); err != nil {
		return errors.Wrap(err, "writing specification")
	}

	var buf bytes.Buffer
	err := dockerfile.Execute(&buf, struct {
		BaseImage string
		SpecFile  string
		Port      int
		Seed      uint64
	}{
		BaseImage: d.opts.BaseImage,
		SpecFile:  specFile,
		Port:      ContainerPort,
		Seed:      a.Seed,
	})
	if err != nil {
		return errors.Wrap(err, "rendering Dockerfile")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, "Dockerfile"), buf.Bytes(), 0644), "writing Dockerfile")
}

var publishedPort = regexp.MustCompile(fmt.Sprintf(`:(\d+)->%d/tcp`, ContainerPort))

// lookup finds the container started from image and the host port its
// service port is published on. The port can take a moment to appear.
func (d *DockerDeployer) lookup(ctx context.Context, image string) (string, int, error) {
	var name string
	var port int

	err := utility.Retry(ctx, func() (bool, error) {
		out, err := d.run(ctx, "", "ps", "--filter", "ancestor="+image, "--format", "{{.Names}} - {{.Ports}}")
		if err != nil {
			return true, err
		}
		name, port = parsePorts(out)
		if port == 0 {
			return true, &DockerError{Command: "ps", Output: out, Err: errors.Errorf("no published port for image '%s'", image)}
		}
		return false, nil
	}, utility.RetryOptions{
		MaxAttempts: lookupAttempts,
		MinDelay:    lookupRetryDelay,
		MaxDelay:    lookupRetryDelay,
	})

	return name, port, err
}

// parsePorts reads one "<name> - <ports>" line of docker ps.
func parsePorts(out string) (string, int) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "" {
			continue
		}
		name, ports, ok := strings.Cut(line, " - ")
		if !ok {
			continue
		}
		m := publishedPort.FindStringSubmatch(ports)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return strings.TrimSpace(name), port
	}
	return "", 0
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Remove deletes the container and then its image.
func (d *DockerDeployer) Remove(ctx context.Context, dep Deployment) error {
	if dep.Container != "" {
		if _, err := d.run(ctx, "", "rm", "-f", dep.Container); err != nil {
			return err
		}
	}
	if dep.Image != "" {
		if _, err := d.run(ctx, "", "rmi", "-f", dep.Image); err != nil {
			return err
		}
	}
	return nil
}
