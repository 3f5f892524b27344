package units

import (
	"context"
	"fmt"

	"github.com/Nikpro200125/orchestrator"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

const (
	amboyStatsCollectorJobName = "amboy-stats-collector"
)

func init() {
	registry.AddJobType(amboyStatsCollectorJobName,
		func() amboy.Job { return makeAmboyStatsCollector() })
}

type amboyStatsCollector struct {
	job.Base `bson:"job_base" json:"job_base" yaml:"job_base"`
	env      orchestrator.Environment
}

// NewAmboyStatsCollector reports the status of the queue registered in the
// orchestrator Environment.
func NewAmboyStatsCollector(env orchestrator.Environment, id string) amboy.Job {
	j := makeAmboyStatsCollector()
	j.env = env
	j.SetID(fmt.Sprintf("%s-%s", amboyStatsCollectorJobName, id))
	return j
}

func makeAmboyStatsCollector() *amboyStatsCollector {
	j := &amboyStatsCollector{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    amboyStatsCollectorJobName,
				Version: 0,
			},
		},
	}

	j.SetDependency(dependency.NewAlways())
	return j
}

func (j *amboyStatsCollector) Run(ctx context.Context) {
	defer j.MarkComplete()

	if j.env == nil {
		j.env = orchestrator.GetEnvironment()
	}
	if j.env == nil {
		return
	}

	q := j.env.GetQueue()
	if q != nil && q.Info().Started {
		grip.Info(message.Fields{
			"message": "amboy queue stats",
			"stats":   q.Stats(ctx),
		})
	}
}
