package units

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/model"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	checkServicesJobName = "check-services"
	healthCheckTimeout   = 5 * time.Second
)

func init() {
	registry.AddJobType(checkServicesJobName, func() amboy.Job { return makeCheckServicesJob() })
}

type checkServicesJob struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`
	env      orchestrator.Environment
	store    model.Store
}

func makeCheckServicesJob() *checkServicesJob {
	j := &checkServicesJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    checkServicesJobName,
				Version: 1,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewCheckServicesJob marks running services whose statistics endpoint no
// longer answers as failed.
func NewCheckServicesJob(env orchestrator.Environment, store model.Store, id string) amboy.Job {
	j := makeCheckServicesJob()
	j.SetID(fmt.Sprintf("%s.%s", checkServicesJobName, id))
	j.env = env
	j.store = store
	return j
}

func (j *checkServicesJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	if j.env == nil {
		j.env = orchestrator.GetEnvironment()
	}
	if j.store == nil {
		store, err := model.NewStore(j.env)
		if err != nil {
			j.AddError(errors.Wrap(err, "problem opening service registry"))
			return
		}
		j.store = store
	}

	services, err := j.store.FindAll(ctx)
	if err != nil {
		j.AddError(errors.Wrap(err, "problem listing services"))
		return
	}

	client := utility.GetHTTPClient()
	defer utility.PutHTTPClient(client)

	checked, failed := 0, 0
	for _, svc := range services {
		if svc.Status != model.StatusRunning || svc.URL == "" {
			continue
		}
		checked++

		if err = ping(ctx, client, svc.URL+"/stats"); err == nil {
			continue
		}
		failed++

		grip.Warning(message.WrapError(err, message.Fields{
			"message": "generated service failed health check",
			"job":     j.ID(),
			"service": svc.ID,
			"url":     svc.URL,
		}))
		j.AddError(j.store.UpdateStatus(ctx, svc.ID, model.StatusUpdate{
			Status: model.StatusFailed,
			Error:  errors.Wrap(err, "health check failed").Error(),
		}))
	}

	grip.Debug(message.Fields{
		"message": "checked generated services",
		"job":     j.ID(),
		"checked": checked,
		"failed":  failed,
	})
}

func ping(ctx context.Context, client *http.Client, url string) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
