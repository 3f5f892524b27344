package model

import (
	"context"

	"github.com/Nikpro200125/orchestrator"
	"github.com/pkg/errors"
)

// Store persists generated service records.
type Store interface {
	// Save records a new service; saving an existing id is an error.
	Save(context.Context, *GeneratedService) error
	Find(context.Context, string) (*GeneratedService, error)
	// FindAll returns every service, newest first.
	FindAll(context.Context) ([]GeneratedService, error)
	UpdateStatus(context.Context, string, StatusUpdate) error
	Remove(context.Context, string) error
}

// NewStore returns the store the environment is configured for.
func NewStore(env orchestrator.Environment) (Store, error) {
	if env == nil {
		return nil, errors.New("cannot create a store with a nil environment")
	}

	conf := env.GetConf()
	switch conf.StoreType {
	case orchestrator.StoreBolt:
		db := env.GetBoltDB()
		if db == nil {
			return nil, errors.New("environment has no bolt database")
		}
		return NewBoltStore(db)
	case orchestrator.StoreMongoDB:
		if env.GetDB() == nil {
			return nil, errors.New("environment has no mongodb database")
		}
		return NewMongoStore(env), nil
	default:
		return nil, errors.Errorf("unsupported store type '%s'", conf.StoreType)
	}
}

type notFoundError struct {
	id string
}

func (e *notFoundError) Error() string {
	return "generated service '" + e.id + "' not found"
}

func newNotFound(id string) error { return errors.WithStack(&notFoundError{id: id}) }

// IsNotFound reports whether err means that no service has the requested
// id.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFoundError)
	return ok
}
