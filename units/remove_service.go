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
	removeServiceJobName = "remove-service"
)

type removeServiceJob struct {
	ServiceID string `bson:"service_id" json:"service_id" yaml:"service_id"`
	job.Base  `bson:"metadata" json:"metadata" yaml:"metadata"`

	env       orchestrator.Environment
	store     model.Store
	artifacts *model.ArtifactStore
}

func init() {
	registry.AddJobType(removeServiceJobName, func() amboy.Job { return makeRemoveServiceJob() })
}

func makeRemoveServiceJob() *removeServiceJob {
	j := &removeServiceJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    removeServiceJobName,
				Version: 1,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewRemoveServiceJob tears down the deployment of a service, drops its
// specification and marks it removed.
func NewRemoveServiceJob(env orchestrator.Environment, store model.Store, artifacts *model.ArtifactStore, id string) amboy.Job {
	j := makeRemoveServiceJob()
	j.SetID(fmt.Sprintf("%s.%s", removeServiceJobName, id))
	j.ServiceID = id
	j.env = env
	j.store = store
	j.artifacts = artifacts
	return j
}

func (j *removeServiceJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	if j.env == nil {
		j.env = orchestrator.GetEnvironment()
	}
	if j.env == nil {
		j.AddError(errors.New("job has no environment"))
		return
	}

	var err error
	if j.store == nil {
		if j.store, err = model.NewStore(j.env); err != nil {
			j.AddError(errors.Wrap(err, "problem opening service registry"))
			return
		}
	}

	svc, err := j.store.Find(ctx, j.ServiceID)
	if err != nil {
		j.AddError(errors.Wrapf(err, "problem finding service %s", j.ServiceID))
		return
	}
	if svc.Status == model.StatusRemoved {
		return
	}

	if svc.URL != "" || svc.Container != "" {
		deployer := j.env.GetDeployer()
		if deployer == nil {
			j.AddError(errors.New("environment has no deployer"))
			return
		}
		if err = deployer.Remove(ctx, svc.Deployment()); err != nil {
			j.AddError(errors.Wrapf(err, "problem removing deployment of %s", svc.ID))
			return
		}
	}

	if j.artifacts == nil {
		j.artifacts, err = model.NewArtifactStore(ctx, j.env)
	}
	if err == nil {
		err = j.artifacts.Remove(ctx, svc.SpecKey)
	}
	grip.Warning(message.WrapError(err, message.Fields{
		"message": "problem removing specification",
		"job":     j.ID(),
		"service": svc.ID,
		"key":     svc.SpecKey,
	}))

	if err = j.store.UpdateStatus(ctx, svc.ID, model.StatusUpdate{Status: model.StatusRemoved, Deployment: &deploy.Deployment{}}); err != nil {
		j.AddError(errors.Wrap(err, "problem recording removal"))
		return
	}

	grip.Info(message.Fields{
		"message": "removed generated service",
		"job":     j.ID(),
		"service": svc.ID,
	})
}
