package deploy

import (
	"context"
	"sync"

	"github.com/Nikpro200125/orchestrator/mock"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// LocalDeployer runs services inside the current process, each on a free
// port.
type LocalDeployer struct {
	host string

	mu      sync.Mutex
	servers map[string]*mock.Server
}

// NewLocalDeployer creates a deployer that reports URLs on host and
// listens on all interfaces.
func NewLocalDeployer(host string) *LocalDeployer {
	if host == "" {
		host = "localhost"
	}
	return &LocalDeployer{
		host:    host,
		servers: map[string]*mock.Server{},
	}
}

// Deploy loads the artifact and starts a server for it. The server keeps
// running after ctx is done; only Remove and Close stop it.
func (d *LocalDeployer) Deploy(ctx context.Context, a Artifact) (Deployment, error) {
	if err := a.Validate(); err != nil {
		return Deployment{}, errors.WithStack(err)
	}

	svc, err := mock.LoadService(ctx, a.Filename, a.Data, a.Seed)
	if err != nil {
		return Deployment{}, errors.Wrapf(err, "loading service '%s'", a.ID)
	}
	srv, err := mock.NewServer(svc)
	if err != nil {
		return Deployment{}, errors.WithStack(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.servers[a.ID]; ok {
		return Deployment{}, errors.Errorf("service '%s' is already deployed", a.ID)
	}

	if err = srv.Start(context.Background(), ":0"); err != nil {
		return Deployment{}, errors.Wrapf(err, "starting service '%s'", a.ID)
	}
	d.servers[a.ID] = srv

	dep := Deployment{
		ID:   a.ID,
		Mode: ModeLocal,
		Port: srv.Port(),
		URL:  serviceURL(d.host, srv.Port()),
	}
	grip.Info(message.Fields{
		"message": "deployed service in process",
		"id":      a.ID,
		"url":     dep.URL,
	})
	return dep, nil
}

// Remove stops a deployed service. Unknown services are already gone.
func (d *LocalDeployer) Remove(_ context.Context, dep Deployment) error {
	d.mu.Lock()
	srv, ok := d.servers[dep.ID]
	delete(d.servers, dep.ID)
	d.mu.Unlock()

	if !ok {
		return nil
	}
	return errors.Wrapf(srv.Close(), "stopping service '%s'", dep.ID)
}

// Server returns the server of a deployed service.
func (d *LocalDeployer) Server(id string) (*mock.Server, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	srv, ok := d.servers[id]
	return srv, ok
}

// Close stops every service.
func (d *LocalDeployer) Close() error {
	d.mu.Lock()
	servers := d.servers
	d.servers = map[string]*mock.Server{}
	d.mu.Unlock()

	catcher := grip.NewBasicCatcher()
	for id, srv := range servers {
		catcher.Wrapf(srv.Close(), "stopping service '%s'", id)
	}
	return catcher.Resolve()
}
