// Package mock runs generated services: one HTTP route per operation of
// an OpenAPI document, answered with generated data, plus the request
// statistics and control panel routes every generated service carries.
package mock

import (
	"context"

	"github.com/Nikpro200125/orchestrator/contract"
	"github.com/Nikpro200125/orchestrator/datagen"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/pkg/errors"
)

// Responder produces the body of one operation call. A nil result with a
// nil error is an empty response.
type Responder interface {
	Respond(context.Context, openapi.Operation, contract.Request) (any, error)
}

// Service is everything a mock server needs to answer requests.
type Service struct {
	Name       string
	Source     *openapi.Source
	Operations []openapi.Operation
	Responder  Responder
}

// NewService builds the responder for a loaded source. LibSL sources are
// answered from their contracts; plain documents with random data.
func NewService(name string, src *openapi.Source, seed uint64) (*Service, error) {
	if src == nil || src.Document == nil {
		return nil, errors.New("service source has no document")
	}

	svc := &Service{
		Name:       name,
		Source:     src,
		Operations: openapi.Operations(src.Document),
	}

	if src.Library != nil {
		e, err := contract.NewEvaluator(src.Library, src.Document, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "binding contracts of '%s'", name)
		}
		svc.Responder = e
	} else {
		svc.Responder = &randomResponder{gen: datagen.New(seed)}
	}

	return svc, nil
}

// LoadService parses an uploaded file and builds its service.
func LoadService(ctx context.Context, filename string, data []byte, seed uint64) (*Service, error) {
	src, err := openapi.LoadSource(ctx, filename, data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewService(filename, src, seed)
}

type randomResponder struct {
	gen *datagen.Generator
}

func (r *randomResponder) Respond(ctx context.Context, op openapi.Operation, _ contract.Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	_, schema := op.SuccessResponse()
	return r.gen.Generate(schema), nil
}
