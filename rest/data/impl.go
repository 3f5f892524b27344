package data

import (
	"context"

	"github.com/Nikpro200125/orchestrator"
	dbModel "github.com/Nikpro200125/orchestrator/model"
	"github.com/mongodb/amboy"
	"github.com/pkg/errors"
)

// DBConnector is a struct that implements all of the methods which connect to
// the service layer of the orchestrator. These methods abstract the link
// between the service and the API layers, allowing for changes in the service
// architecture without forcing changes to the API.
type DBConnector struct {
	env       orchestrator.Environment
	store     dbModel.Store
	artifacts *dbModel.ArtifactStore
	queue     amboy.Queue
}

// CreateDBConnector opens the service registry and artifact bucket the
// environment is configured for.
func CreateDBConnector(ctx context.Context, env orchestrator.Environment) (Connector, error) {
	store, err := dbModel.NewStore(env)
	if err != nil {
		return nil, errors.Wrap(err, "problem opening service registry")
	}
	artifacts, err := dbModel.NewArtifactStore(ctx, env)
	if err != nil {
		return nil, errors.Wrap(err, "problem opening artifact store")
	}
	q := env.GetQueue()
	if q == nil {
		return nil, errors.New("environment has no queue")
	}

	return &DBConnector{
		env:       env,
		store:     store,
		artifacts: artifacts,
		queue:     q,
	}, nil
}

// MockConnector is a struct that implements the Connector interface without
// deploying anything, for use in tests of the route handlers.
type MockConnector struct {
	CachedServices map[string]dbModel.GeneratedService
	// DeployURL is the URL recorded for synchronously generated
	// services.
	DeployURL string
	// DeployError, when set, fails every synchronous deployment.
	DeployError error
}
