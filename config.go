package orchestrator

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Nikpro200125/orchestrator/deploy"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// StoreType names the backend of the service registry.
type StoreType string

const (
	StoreBolt    StoreType = "bolt"
	StoreMongoDB StoreType = "mongodb"
)

// BucketType names the backend of the uploaded specification store.
type BucketType string

const (
	BucketLocal  BucketType = "local"
	BucketGridFS BucketType = "gridfs"
)

// Configuration defines the settings of one orchestrator process.
type Configuration struct {
	StoreType          StoreType     `yaml:"store_type"`
	MongoDBURI         string        `yaml:"mongodb_uri"`
	DatabaseName       string        `yaml:"database_name"`
	MongoDBDialTimeout time.Duration `yaml:"mongodb_dial_timeout"`
	SocketTimeout      time.Duration `yaml:"socket_timeout"`
	BoltPath           string        `yaml:"bolt_path"`

	ArtifactBucketType BucketType `yaml:"artifact_bucket_type"`
	ArtifactBucket     string     `yaml:"artifact_bucket"`

	NumWorkers int `yaml:"num_workers"`

	DeployMode      deploy.Mode `yaml:"deploy_mode"`
	PublicHost      string      `yaml:"public_host"`
	DockerBaseImage string      `yaml:"docker_base_image"`
	DockerBinary    string      `yaml:"docker_binary"`
	WorkDir         string      `yaml:"work_dir"`

	// GenerateRateLimit is the sustained number of generate requests per
	// second the API accepts; zero disables limiting.
	GenerateRateLimit float64 `yaml:"generate_rate_limit"`
	GenerateBurst     int     `yaml:"generate_burst"`
}

// LoadConfiguration reads a configuration from a YAML file. Flags
// override the values afterwards, so it is not validated here.
func LoadConfiguration(file string) (*Configuration, error) {
	if !utility.FileExists(file) {
		return nil, errors.Errorf("configuration file '%s' does not exist", file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration file '%s'", file)
	}

	conf := &Configuration{}
	if err = yaml.UnmarshalStrict(data, conf); err != nil {
		return nil, errors.Wrapf(err, "parsing configuration file '%s'", file)
	}
	return conf, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Configuration) Validate() error {
	catcher := grip.NewBasicCatcher()

	if c.StoreType == "" {
		c.StoreType = StoreBolt
	}
	switch c.StoreType {
	case StoreBolt:
		if c.BoltPath == "" {
			c.BoltPath = filepath.Join(os.TempDir(), "orchestrator.db")
		}
	case StoreMongoDB:
		catcher.NewWhen(c.MongoDBURI == "", "must specify a mongodb url")
		catcher.NewWhen(c.DatabaseName == "", "must specify a database name")
	default:
		catcher.Errorf("invalid store type '%s'", c.StoreType)
	}

	if c.ArtifactBucketType == "" {
		c.ArtifactBucketType = BucketLocal
	}
	switch c.ArtifactBucketType {
	case BucketLocal:
		if c.ArtifactBucket == "" {
			c.ArtifactBucket = filepath.Join(os.TempDir(), "orchestrator-artifacts")
		}
	case BucketGridFS:
		catcher.NewWhen(c.StoreType != StoreMongoDB, "gridfs artifacts require the mongodb store")
		if c.ArtifactBucket == "" {
			c.ArtifactBucket = "artifacts"
		}
	default:
		catcher.Errorf("invalid artifact bucket type '%s'", c.ArtifactBucketType)
	}

	if c.NumWorkers < 1 {
		catcher.New("must specify a valid number of amboy workers")
	}
	if c.MongoDBDialTimeout <= 0 {
		c.MongoDBDialTimeout = 2 * time.Second
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = time.Minute
	}

	if c.DeployMode == "" {
		c.DeployMode = deploy.ModeLocal
	}
	catcher.Add(c.DeployMode.Validate())
	catcher.NewWhen(c.DeployMode == deploy.ModeDocker && c.DockerBaseImage == "", "docker deployments require a base image")
	if c.DockerBinary == "" {
		c.DockerBinary = "docker"
	}
	if c.PublicHost == "" {
		c.PublicHost = "localhost"
	}

	catcher.NewWhen(c.GenerateRateLimit < 0, "generate rate limit cannot be negative")
	if c.GenerateRateLimit > 0 && c.GenerateBurst < 1 {
		c.GenerateBurst = 1
	}

	return catcher.Resolve()
}
