package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Nikpro200125/orchestrator/deploy"
	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var globalEnv *envState
var globalEnvLock sync.RWMutex

// GetEnvironment returns the process wide environment, which is nil until
// SetEnvironment is called.
func GetEnvironment() Environment {
	globalEnvLock.RLock()
	defer globalEnvLock.RUnlock()

	if globalEnv == nil {
		return nil
	}
	return globalEnv
}

// SetEnvironment replaces the process wide environment.
func SetEnvironment(env Environment) {
	globalEnvLock.Lock()
	defer globalEnvLock.Unlock()

	if env == nil {
		globalEnv = nil
		return
	}
	globalEnv = env.(*envState)
}

// Environment objects provide access to shared configuration and
// state, in a way that you can isolate and test for in
type Environment interface {
	GetConf() *Configuration

	// Context returns a context derived from the environment's root
	// context, which is canceled when the environment closes.
	Context() (context.Context, context.CancelFunc)

	// GetQueue retrieves the application's shared queue, which is cache
	// for easy access from within units or inside of requests or command
	// line operations
	GetQueue() amboy.Queue
	SetQueue(amboy.Queue) error

	// GetClient and GetDB are only populated when the service registry
	// lives in MongoDB; GetBoltDB only when it lives in a bolt file.
	GetClient() *mongo.Client
	GetDB() *mongo.Database
	GetBoltDB() *bolt.DB

	GetDeployer() deploy.Deployer
	SetDeployer(deploy.Deployer) error

	// RegisterCloser adds a function to run when the environment
	// closes. Closers run in reverse registration order.
	RegisterCloser(string, func(context.Context) error)
	Close(context.Context) error
}

type closerOp struct {
	name   string
	closer func(context.Context) error
}

type envState struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	conf     *Configuration
	queue    amboy.Queue
	client   *mongo.Client
	bolt     *bolt.DB
	deployer deploy.Deployer
	closers  []closerOp
	mutex    sync.RWMutex
}

// NewEnvironment validates the configuration, opens the service registry
// and starts the job queue.
func NewEnvironment(ctx context.Context, name string, conf *Configuration) (Environment, error) {
	if conf == nil {
		return nil, errors.New("cannot create an environment without a configuration")
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	env := &envState{name: name, conf: conf}
	env.ctx, env.cancel = context.WithCancel(ctx)

	if err := env.configureStore(ctx); err != nil {
		env.cancel()
		return nil, errors.WithStack(err)
	}

	if err := env.configureDeployer(); err != nil {
		grip.Warning(message.WrapError(env.Close(ctx), message.Fields{
			"message": "problem closing partially configured environment",
			"env":     name,
		}))
		return nil, errors.WithStack(err)
	}

	q := queue.NewLocalLimitedSize(conf.NumWorkers, 1024)
	if err := q.Start(env.ctx); err != nil {
		grip.Warning(message.WrapError(env.Close(ctx), message.Fields{
			"message": "problem closing partially configured environment",
			"env":     name,
		}))
		return nil, errors.Wrap(err, "starting queue")
	}
	env.queue = q
	grip.Info(message.Fields{
		"message": "configured local queue",
		"env":     name,
		"workers": conf.NumWorkers,
	})

	return env, nil
}

func (c *envState) configureStore(ctx context.Context) error {
	switch c.conf.StoreType {
	case StoreMongoDB:
		opts := options.Client().ApplyURI(c.conf.MongoDBURI).
			SetConnectTimeout(c.conf.MongoDBDialTimeout).
			SetSocketTimeout(c.conf.SocketTimeout)

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return errors.Wrapf(err, "connecting to db %s", c.conf.MongoDBURI)
		}
		c.client = client
		c.RegisterCloser("mongo-client", client.Disconnect)

		grip.Info(message.Fields{
			"message": "connected to mongodb",
			"env":     c.name,
			"db":      c.conf.DatabaseName,
		})
	case StoreBolt:
		if err := os.MkdirAll(filepath.Dir(c.conf.BoltPath), 0755); err != nil {
			return errors.Wrap(err, "creating bolt directory")
		}
		db, err := bolt.Open(c.conf.BoltPath, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return errors.Wrapf(err, "opening bolt database %s", c.conf.BoltPath)
		}
		c.bolt = db
		c.RegisterCloser("bolt-db", func(context.Context) error { return db.Close() })

		grip.Info(message.Fields{
			"message": "opened bolt database",
			"env":     c.name,
			"path":    c.conf.BoltPath,
		})
	default:
		return errors.Errorf("unsupported store type '%s'", c.conf.StoreType)
	}
	return nil
}

func (c *envState) configureDeployer() error {
	switch c.conf.DeployMode {
	case deploy.ModeLocal:
		d := deploy.NewLocalDeployer(c.conf.PublicHost)
		c.deployer = d
		c.RegisterCloser("local-deployer", func(context.Context) error { return d.Close() })
	case deploy.ModeDocker:
		d, err := deploy.NewDockerDeployer(deploy.DockerOptions{
			Binary:    c.conf.DockerBinary,
			BaseImage: c.conf.DockerBaseImage,
			Host:      c.conf.PublicHost,
			WorkDir:   c.conf.WorkDir,
		})
		if err != nil {
			return errors.Wrap(err, "configuring docker deployer")
		}
		c.deployer = d
	default:
		return errors.Errorf("unsupported deploy mode '%s'", c.conf.DeployMode)
	}
	return nil
}

func (c *envState) GetConf() *Configuration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.conf == nil {
		return nil
	}

	// copy the struct
	out := &Configuration{}
	*out = *c.conf

	return out
}

func (c *envState) Context() (context.Context, context.CancelFunc) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.ctx == nil {
		return context.WithCancel(context.Background())
	}
	return context.WithCancel(c.ctx)
}

func (c *envState) SetQueue(q amboy.Queue) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.queue != nil {
		return errors.New("queue exists, cannot overwrite")
	}

	if q == nil {
		return errors.New("cannot set queue to nil")
	}

	c.queue = q
	grip.Noticef("caching a '%T' queue in the '%s' service cache for use in tasks", q, c.name)
	return nil
}

func (c *envState) GetQueue() amboy.Queue {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.queue
}

func (c *envState) GetClient() *mongo.Client {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.client
}

func (c *envState) GetDB() *mongo.Database {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.client == nil || c.conf == nil {
		return nil
	}
	return c.client.Database(c.conf.DatabaseName)
}

func (c *envState) GetBoltDB() *bolt.DB {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.bolt
}

func (c *envState) GetDeployer() deploy.Deployer {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.deployer
}

func (c *envState) SetDeployer(d deploy.Deployer) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if d == nil {
		return errors.New("cannot set deployer to nil")
	}
	c.deployer = d
	return nil
}

func (c *envState) RegisterCloser(name string, closer func(context.Context) error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closers = append(c.closers, closerOp{name: name, closer: closer})
}

func (c *envState) Close(ctx context.Context) error {
	c.mutex.Lock()
	closers := c.closers
	c.closers = nil
	cancel := c.cancel
	c.mutex.Unlock()

	catcher := grip.NewBasicCatcher()
	for i := len(closers) - 1; i >= 0; i-- {
		op := closers[i]
		catcher.Wrapf(op.closer(ctx), "closing '%s'", op.name)
	}
	if cancel != nil {
		cancel()
	}

	grip.Info(message.Fields{
		"message": "closed environment",
		"env":     c.name,
		"errors":  catcher.Len(),
	})

	return catcher.Resolve()
}
