package data

import (
	"context"

	"github.com/Nikpro200125/orchestrator/rest/model"
)

// Connector abstracts the link between the orchestrator's service and API
// layers, allowing for changes in the service architecture without forcing
// changes to the API.
type Connector interface {
	///////////////////
	// GeneratedService
	///////////////////
	// GenerateService validates an uploaded specification, records a
	// service for it and deploys it. Unless the options ask for an
	// asynchronous deployment it returns once the service is running.
	GenerateService(context.Context, GenerateOptions) (*model.APIGeneratedService, error)
	// FindServices returns every recorded service, newest first.
	FindServices(context.Context) ([]model.APIGeneratedService, error)
	// FindServiceByID returns the service with the given id.
	FindServiceByID(context.Context, string) (*model.APIGeneratedService, error)
	// RemoveServiceByID stops the service with the given id and marks
	// it removed.
	RemoveServiceByID(context.Context, string) (*model.APIGeneratedService, error)

	////////////////
	// Specification
	////////////////
	// ConvertSpecification returns the OpenAPI document, as YAML,
	// generated from a LibSL specification.
	ConvertSpecification(context.Context, string, []byte) ([]byte, error)
}

// GenerateOptions describe one uploaded specification.
type GenerateOptions struct {
	Filename string
	Data     []byte
	Name     string
	Seed     int64
	Async    bool
}
