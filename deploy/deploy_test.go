package deploy

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	out string
	err error
}

// fakeRunner answers docker commands from canned results, keyed by the
// docker subcommand. The last result of a subcommand repeats.
type fakeRunner struct {
	mu         sync.Mutex
	results    map[string][]result
	calls      [][]string
	dockerfile string
	spec       []string
}

func (r *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, append([]string{name}, args...))
	if args[0] == "build" {
		data, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
		if err == nil {
			r.dockerfile = string(data)
		}
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			r.spec = append(r.spec, e.Name())
		}
	}

	queue := r.results[args[0]]
	if len(queue) == 0 {
		return "", nil
	}
	res := queue[0]
	if len(queue) > 1 {
		r.results[args[0]] = queue[1:]
	}
	return res.out, res.err
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func newDocker(t *testing.T, runner *fakeRunner) *DockerDeployer {
	d, err := NewDockerDeployer(DockerOptions{
		BaseImage: "orchestrator:test",
		Host:      "mocks.example.com",
		WorkDir:   t.TempDir(),
		Runner:    runner,
	})
	require.NoError(t, err)
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return d
}

func testArtifact() Artifact {
	return Artifact{ID: "svc-1", Filename: "uploads/petstore.yaml", Data: []byte("openapi: 3.0.1"), Seed: 9}
}

func TestDockerDeploy(t *testing.T) {
	runner := &fakeRunner{results: map[string][]result{
		"run": {{out: "Unable to find image locally\nf00dfeed\n"}},
		"ps":  {{out: "\"brave_turing - 0.0.0.0:49153->8080/tcp, :::49153->8080/tcp\"\n"}},
	}}
	d := newDocker(t, runner)

	dep, err := d.Deploy(context.Background(), testArtifact())
	require.NoError(t, err)

	image := "generated-api-service-1700000000000"
	assert.Equal(t, Deployment{
		ID:        "svc-1",
		Mode:      ModeDocker,
		URL:       "http://mocks.example.com:49153",
		Port:      49153,
		Image:     image,
		Container: "brave_turing",
	}, dep)

	assert.Equal(t, []string{
		"docker build -t " + image + " .",
		"docker run -p :8080 -d " + image,
		"docker ps --filter ancestor=" + image + " --format {{.Names}} - {{.Ports}}",
	}, runner.commands())

	assert.Contains(t, runner.dockerfile, "FROM orchestrator:test")
	assert.Contains(t, runner.dockerfile, "COPY petstore.yaml /service/petstore.yaml")
	assert.Contains(t, runner.dockerfile, `"--seed", "9"`)
	assert.ElementsMatch(t, []string{"Dockerfile", "petstore.yaml"}, runner.spec)

	require.NoError(t, d.Remove(context.Background(), dep))
	commands := runner.commands()
	assert.Equal(t, []string{
		"docker rm -f brave_turing",
		"docker rmi -f " + image,
	}, commands[len(commands)-2:])
}

func TestDockerDeployWaitsForPort(t *testing.T) {
	runner := &fakeRunner{results: map[string][]result{
		"run": {{out: "f00dfeed\n"}},
		"ps":  {{out: ""}, {out: "svc - 0.0.0.0:40000->8080/tcp\n"}},
	}}
	d := newDocker(t, runner)

	dep, err := d.Deploy(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.Equal(t, 40000, dep.Port)
	assert.Equal(t, "svc", dep.Container)
}

func TestDockerDeployErrors(t *testing.T) {
	t.Run("Build", func(t *testing.T) {
		runner := &fakeRunner{results: map[string][]result{
			"build": {{out: "Step 1/4 : FROM missing\nerror pulling image", err: errors.New("exit status 1")}},
		}}
		d := newDocker(t, runner)

		_, err := d.Deploy(context.Background(), testArtifact())
		require.Error(t, err)
		assert.True(t, IsDockerError(err))
		assert.Contains(t, err.Error(), "docker build failed")
		assert.Contains(t, err.Error(), "error pulling image")
		assert.Len(t, runner.commands(), 1)
	})
	t.Run("NoPort", func(t *testing.T) {
		runner := &fakeRunner{results: map[string][]result{
			"run": {{out: "f00dfeed\n"}},
			"ps":  {{out: ""}},
		}}
		d := newDocker(t, runner)

		_, err := d.Deploy(context.Background(), testArtifact())
		assert.Error(t, err)

		commands := runner.commands()
		assert.Equal(t, []string{
			"docker rm -f f00dfeed",
			"docker rmi -f generated-api-service-1700000000000",
		}, commands[len(commands)-2:])
	})
	t.Run("Run", func(t *testing.T) {
		runner := &fakeRunner{results: map[string][]result{
			"run": {{out: "port is already allocated", err: errors.New("exit status 125")}},
		}}
		d := newDocker(t, runner)

		_, err := d.Deploy(context.Background(), testArtifact())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port is already allocated")
		assert.Equal(t, []string{
			"docker build -t generated-api-service-1700000000000 .",
			"docker run -p :8080 -d generated-api-service-1700000000000",
			"docker rmi -f generated-api-service-1700000000000",
		}, runner.commands())
	})
	t.Run("EmptyArtifact", func(t *testing.T) {
		d := newDocker(t, &fakeRunner{})
		_, err := d.Deploy(context.Background(), Artifact{ID: "x"})
		assert.Error(t, err)
	})
	t.Run("Options", func(t *testing.T) {
		_, err := NewDockerDeployer(DockerOptions{})
		assert.Error(t, err)
	})
	t.Run("Remove", func(t *testing.T) {
		runner := &fakeRunner{results: map[string][]result{
			"rm": {{out: "No such container", err: errors.New("exit status 1")}},
		}}
		d := newDocker(t, runner)
		err := d.Remove(context.Background(), Deployment{Container: "gone", Image: "img"})
		require.Error(t, err)
		assert.True(t, IsDockerError(errors.Wrap(err, "removing")))
		assert.Len(t, runner.commands(), 1)
	})
}

func TestParsePorts(t *testing.T) {
	for name, test := range map[string]struct {
		out  string
		name string
		port int
	}{
		"Empty":     {out: ""},
		"NoPorts":   {out: "busy_bee - \n"},
		"OtherPort": {out: "busy_bee - 0.0.0.0:5000->5432/tcp"},
		"Quoted":    {out: `"busy_bee - 0.0.0.0:5000->8080/tcp"`, name: "busy_bee", port: 5000},
		"IPv6Only":  {out: "busy_bee - :::6000->8080/tcp", name: "busy_bee", port: 6000},
	} {
		t.Run(name, func(t *testing.T) {
			n, p := parsePorts(test.out)
			assert.Equal(t, test.name, n)
			assert.Equal(t, test.port, p)
		})
	}
}

func TestLocalDeployer(t *testing.T) {
	data, err := os.ReadFile("../openapi/testdata/petstore.yaml")
	require.NoError(t, err)

	d := NewLocalDeployer("127.0.0.1")
	defer func() { assert.NoError(t, d.Close()) }()

	a := Artifact{ID: "pets", Filename: "petstore.yaml", Data: data, Seed: 3}
	dep, err := d.Deploy(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, dep.Mode)
	assert.NotZero(t, dep.Port)

	resp, err := http.Get(dep.URL + "/pets/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv, ok := d.Server("pets")
	require.True(t, ok)
	assert.EqualValues(t, 1, srv.Stats().Count(http.MethodGet, "/pets/{petId}"))

	_, err = d.Deploy(context.Background(), a)
	assert.Error(t, err)

	_, err = d.Deploy(context.Background(), Artifact{ID: "bad", Filename: "bad.yaml", Data: []byte("openapi: [")})
	assert.Error(t, err)

	require.NoError(t, d.Remove(context.Background(), dep))
	_, ok = d.Server("pets")
	assert.False(t, ok)
	assert.NoError(t, d.Remove(context.Background(), dep))
}

func TestModeValidate(t *testing.T) {
	assert.NoError(t, ModeLocal.Validate())
	assert.NoError(t, ModeDocker.Validate())
	assert.Error(t, Mode("kubernetes").Validate())
}
