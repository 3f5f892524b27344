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
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson"
)

const statsDBCollectionSizeJobName = "stats-db-collection-size"

type statsDBCollectionSizeJob struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`
	env      orchestrator.Environment
}

func init() {
	registry.AddJobType(statsDBCollectionSizeJobName,
		func() amboy.Job { return makeStatsDBCollectionSizeJob() })
}

func makeStatsDBCollectionSizeJob() *statsDBCollectionSizeJob {
	j := &statsDBCollectionSizeJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    statsDBCollectionSizeJobName,
				Version: 0,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewStatsDBCollectionSizeJob creates a new amboy job that logs the size of
// the service registry, for either the mongodb collections or the bolt file.
func NewStatsDBCollectionSizeJob(env orchestrator.Environment, id string) amboy.Job {
	j := makeStatsDBCollectionSizeJob()
	j.SetID(fmt.Sprintf("%s.%s", statsDBCollectionSizeJobName, id))
	j.env = env
	return j
}

func (j *statsDBCollectionSizeJob) Run(ctx context.Context) {
	defer j.MarkComplete()
	if j.env == nil {
		j.env = orchestrator.GetEnvironment()
	}
	if j.env == nil {
		j.AddError(errors.New("job has no environment"))
		return
	}

	if db := j.env.GetDB(); db != nil {
		collectionNames, err := db.ListCollectionNames(ctx, bson.D{})
		if err != nil {
			j.AddError(errors.Wrap(err, "getting collection names"))
			return
		}
		for _, collName := range collectionNames {
			var statsResult bson.M
			statsCmd := bson.D{{Key: "collStats", Value: collName}}
			if err = db.RunCommand(ctx, statsCmd).Decode(&statsResult); err != nil {
				j.AddError(errors.Wrap(err, "getting collection stats"))
				return
			}
			grip.Info(message.Fields{
				"job_id":       j.ID(),
				"message":      statsDBCollectionSizeJobName,
				"collection":   collName,
				"count":        statsResult["count"],
				"storage_size": statsResult["storageSize"],
				"index_size":   statsResult["totalIndexSize"],
			})
		}
		return
	}

	boltDB := j.env.GetBoltDB()
	if boltDB == nil {
		j.AddError(errors.New("environment has no database"))
		return
	}
	err := boltDB.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			stats := b.Stats()
			grip.Info(message.Fields{
				"job_id":     j.ID(),
				"message":    statsDBCollectionSizeJobName,
				"collection": string(name),
				"count":      stats.KeyN,
				"file_size":  tx.Size(),
				"leaf_inuse": stats.LeafInuse,
			})
			return nil
		})
	})
	j.AddError(errors.Wrap(err, "reading bolt statistics"))
}
