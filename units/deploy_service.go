package units

import (
	"context"
	"fmt"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/deploy"
	"github.com/Nikpro200125/orchestrator/model"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	deployServiceJobName = "deploy-service"
)

type deployServiceJob struct {
	ServiceID string `bson:"service_id" json:"service_id" yaml:"service_id"`
	job.Base  `bson:"metadata" json:"metadata" yaml:"metadata"`

	env       orchestrator.Environment
	store     model.Store
	artifacts *model.ArtifactStore
}

func init() {
	registry.AddJobType(deployServiceJobName, func() amboy.Job { return makeDeployServiceJob() })
}

func makeDeployServiceJob() *deployServiceJob {
	j := &deployServiceJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    deployServiceJobName,
				Version: 1,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewDeployServiceJob deploys the stored specification of a registered
// service and records the outcome in the registry.
func NewDeployServiceJob(env orchestrator.Environment, store model.Store, artifacts *model.ArtifactStore, id string) amboy.Job {
	j := makeDeployServiceJob()
	j.SetID(fmt.Sprintf("%s.%s", deployServiceJobName, id))
	j.ServiceID = id
	j.env = env
	j.store = store
	j.artifacts = artifacts
	return j
}

func (j *deployServiceJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	if err := j.setup(ctx); err != nil {
		j.AddError(err)
		return
	}

	svc, err := j.store.Find(ctx, j.ServiceID)
	if err != nil {
		j.AddError(errors.Wrapf(err, "problem finding service %s", j.ServiceID))
		return
	}

	data, err := j.artifacts.Get(ctx, svc.SpecKey)
	if err != nil {
		j.fail(ctx, errors.Wrap(err, "problem loading specification"))
		return
	}

	deployer := j.env.GetDeployer()
	if deployer == nil {
		j.fail(ctx, errors.New("environment has no deployer"))
		return
	}

	dep, err := deployer.Deploy(ctx, deploy.Artifact{
		ID:       svc.ID,
		Filename: svc.Filename,
		Data:     data,
		Seed:     uint64(svc.Seed),
	})
	if err != nil {
		j.fail(ctx, errors.Wrap(err, "problem deploying service"))
		return
	}

	if err = j.store.UpdateStatus(ctx, svc.ID, model.StatusUpdate{Status: model.StatusRunning, Deployment: &dep}); err != nil {
		j.AddError(errors.Wrap(err, "problem recording deployment"))
		grip.Warning(message.WrapError(deployer.Remove(ctx, dep), message.Fields{
			"message": "problem removing unrecorded deployment",
			"job":     j.ID(),
			"service": svc.ID,
		}))
		return
	}

	grip.Info(message.Fields{
		"message": "deployed generated service",
		"job":     j.ID(),
		"service": svc.ID,
		"kind":    svc.Kind,
		"url":     dep.URL,
	})
}

func (j *deployServiceJob) setup(ctx context.Context) error {
	var err error
	if j.env == nil {
		j.env = orchestrator.GetEnvironment()
	}
	if j.env == nil {
		return errors.New("job has no environment")
	}
	if j.store == nil {
		if j.store, err = model.NewStore(j.env); err != nil {
			return errors.Wrap(err, "problem opening service registry")
		}
	}
	if j.artifacts == nil {
		if j.artifacts, err = model.NewArtifactStore(ctx, j.env); err != nil {
			return errors.Wrap(err, "problem opening artifact store")
		}
	}
	return nil
}

func (j *deployServiceJob) fail(ctx context.Context, err error) {
	j.AddError(err)
	grip.Error(message.WrapError(err, message.Fields{
		"message": "generated service deployment failed",
		"job":     j.ID(),
		"service": j.ServiceID,
	}))
	j.AddError(j.store.UpdateStatus(ctx, j.ServiceID, model.StatusUpdate{
		Status: model.StatusFailed,
		Error:  err.Error(),
	}))
}
