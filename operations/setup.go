package operations

import (
	"context"

	"github.com/Nikpro200125/orchestrator"
	"github.com/Nikpro200125/orchestrator/deploy"
	"github.com/Nikpro200125/orchestrator/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// serviceConf reads the configuration file, when one is named, and
// applies the flags the user set on top of it.
func serviceConf(c *cli.Context) (*orchestrator.Configuration, error) {
	conf := &orchestrator.Configuration{}
	if fn := c.String(configFlag); fn != "" {
		var err error
		conf, err = orchestrator.LoadConfiguration(fn)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if c.IsSet(numWorkersFlag) || conf.NumWorkers == 0 {
		conf.NumWorkers = c.Int(numWorkersFlag)
	}
	setString(c, bucketTypeFlag, func(v string) { conf.ArtifactBucketType = orchestrator.BucketType(v) })
	setString(c, bucketNameFlag, func(v string) { conf.ArtifactBucket = v })
	setString(c, storeTypeFlag, func(v string) { conf.StoreType = orchestrator.StoreType(v) })
	setString(c, boltPathFlag, func(v string) { conf.BoltPath = v })
	setString(c, deployModeFlag, func(v string) { conf.DeployMode = deploy.Mode(v) })
	setString(c, publicHostFlag, func(v string) { conf.PublicHost = v })
	setString(c, baseImageFlag, func(v string) { conf.DockerBaseImage = v })

	if conf.StoreType == orchestrator.StoreMongoDB || conf.ArtifactBucketType == orchestrator.BucketGridFS {
		if c.IsSet(dbURIFlag) || conf.MongoDBURI == "" {
			conf.MongoDBURI = c.String(dbURIFlag)
		}
		if c.IsSet(dbNameFlag) || conf.DatabaseName == "" {
			conf.DatabaseName = c.String(dbNameFlag)
		}
	}

	if c.IsSet(rateLimitFlag) {
		conf.GenerateRateLimit = c.Float64(rateLimitFlag)
	}
	if c.IsSet(rateBurstFlag) {
		conf.GenerateBurst = c.Int(rateBurstFlag)
	}

	return conf, nil
}

func setString(c *cli.Context, name string, set func(string)) {
	if val := c.String(name); val != "" {
		set(val)
	}
}

// configure builds the process environment and registers it globally so
// that jobs can find it.
func configure(ctx context.Context, conf *orchestrator.Configuration) (orchestrator.Environment, error) {
	env, err := orchestrator.NewEnvironment(ctx, "orchestrator", conf)
	if err != nil {
		return nil, errors.Wrap(err, "problem setting up environment")
	}
	orchestrator.SetEnvironment(env)

	if db := env.GetDB(); db != nil {
		if err = model.EnsureIndexes(ctx, db); err != nil {
			return nil, errors.Wrap(err, "problem creating indexes")
		}
	}

	resolved := env.GetConf()
	grip.Info(message.Fields{
		"message": "configured environment",
		"store":   resolved.StoreType,
		"bucket":  resolved.ArtifactBucketType,
		"deploy":  resolved.DeployMode,
		"workers": resolved.NumWorkers,
	})

	return env, nil
}
