package units

import (
	"context"
	"time"

	"github.com/Nikpro200125/orchestrator"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/amboy"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const tsFormat = "2006-01-02.15-04-05"

// StartCrons schedules the periodic queue statistics and service health
// checks on the environment's queue.
func StartCrons(ctx context.Context, env orchestrator.Environment) error {
	q := env.GetQueue()
	if q == nil {
		return errors.New("environment has no queue")
	}

	opts := amboy.QueueOperationConfig{
		ContinueOnError: true,
		LogErrors:       false,
		DebugLogging:    false,
	}

	grip.Info(message.Fields{
		"message": "starting background cron jobs",
		"opts":    opts,
		"started": q.Info().Started,
		"stats":   q.Stats(ctx),
	})

	amboy.IntervalQueueOperation(ctx, q, time.Minute, time.Now(), opts, func(ctx context.Context, queue amboy.Queue) error {
		ts := utility.RoundPartOfMinute(0).Format(tsFormat)
		catcher := grip.NewBasicCatcher()
		catcher.Add(queue.Put(ctx, NewAmboyStatsCollector(env, ts)))
		catcher.Add(queue.Put(ctx, NewCheckServicesJob(env, nil, ts)))
		catcher.Add(queue.Put(ctx, NewStatsDBCollectionSizeJob(env, ts)))
		return catcher.Resolve()
	})

	return nil
}
