package data

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	dbModel "github.com/Nikpro200125/orchestrator/model"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/Nikpro200125/orchestrator/rest/model"
	"github.com/Nikpro200125/orchestrator/units"
	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
)

/////////////////////////////
// DBConnector Implementation
/////////////////////////////

func (dbc *DBConnector) GenerateService(ctx context.Context, opts GenerateOptions) (*model.APIGeneratedService, error) {
	src, err := loadSource(ctx, opts.Filename, opts.Data)
	if err != nil {
		return nil, err
	}

	svc := dbModel.NewGeneratedService(opts.Name, opts.Filename, dbModel.KindOf(src), opts.Seed)
	if err = dbc.artifacts.Put(ctx, svc.SpecKey, opts.Data); err != nil {
		return nil, internalError(err, "problem storing specification '%s'", opts.Filename)
	}
	if err = dbc.store.Save(ctx, svc); err != nil {
		return nil, internalError(err, "problem recording service '%s'", svc.ID)
	}

	j := units.NewDeployServiceJob(dbc.env, dbc.store, dbc.artifacts, svc.ID)
	if opts.Async {
		if err = dbc.queue.Put(ctx, j); err != nil {
			return nil, internalError(err, "problem scheduling deployment of service '%s'", svc.ID)
		}
		return importService(svc)
	}

	j.Run(ctx)

	found, err := dbc.store.Find(ctx, svc.ID)
	if err != nil {
		return nil, internalError(err, "problem finding service '%s'", svc.ID)
	}
	if found.Status != dbModel.StatusRunning {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    fmt.Sprintf("problem deploying service '%s': %s", svc.ID, found.Error),
		}
	}

	return importService(found)
}

func (dbc *DBConnector) FindServices(ctx context.Context) ([]model.APIGeneratedService, error) {
	services, err := dbc.store.FindAll(ctx)
	if err != nil {
		return nil, internalError(err, "problem finding services")
	}
	return importServices(services)
}

func (dbc *DBConnector) FindServiceByID(ctx context.Context, id string) (*model.APIGeneratedService, error) {
	svc, err := dbc.store.Find(ctx, id)
	if dbModel.IsNotFound(err) {
		return nil, notFoundError(id)
	} else if err != nil {
		return nil, internalError(err, "problem finding service '%s'", id)
	}
	return importService(svc)
}

func (dbc *DBConnector) RemoveServiceByID(ctx context.Context, id string) (*model.APIGeneratedService, error) {
	if _, err := dbc.FindServiceByID(ctx, id); err != nil {
		return nil, err
	}

	j := units.NewRemoveServiceJob(dbc.env, dbc.store, dbc.artifacts, id)
	j.Run(ctx)
	if err := j.Error(); err != nil {
		return nil, internalError(err, "problem removing service '%s'", id)
	}

	return dbc.FindServiceByID(ctx, id)
}

func (dbc *DBConnector) ConvertSpecification(ctx context.Context, filename string, data []byte) ([]byte, error) {
	return convertSpecification(ctx, filename, data)
}

///////////////////////////////
// MockConnector Implementation
///////////////////////////////

func (mc *MockConnector) GenerateService(ctx context.Context, opts GenerateOptions) (*model.APIGeneratedService, error) {
	src, err := loadSource(ctx, opts.Filename, opts.Data)
	if err != nil {
		return nil, err
	}

	svc := dbModel.NewGeneratedService(opts.Name, opts.Filename, dbModel.KindOf(src), opts.Seed)
	if mc.CachedServices == nil {
		mc.CachedServices = map[string]dbModel.GeneratedService{}
	}

	if !opts.Async {
		if mc.DeployError != nil {
			svc.Status = dbModel.StatusFailed
			svc.Error = mc.DeployError.Error()
			mc.CachedServices[svc.ID] = *svc
			return nil, gimlet.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    fmt.Sprintf("problem deploying service '%s': %s", svc.ID, svc.Error),
			}
		}
		svc.Status = dbModel.StatusRunning
		svc.URL = mc.DeployURL
	}
	mc.CachedServices[svc.ID] = *svc

	return importService(svc)
}

func (mc *MockConnector) FindServices(_ context.Context) ([]model.APIGeneratedService, error) {
	services := make([]dbModel.GeneratedService, 0, len(mc.CachedServices))
	for _, svc := range mc.CachedServices {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].CreatedAt.Equal(services[j].CreatedAt) {
			return services[i].ID < services[j].ID
		}
		return services[i].CreatedAt.After(services[j].CreatedAt)
	})
	return importServices(services)
}

func (mc *MockConnector) FindServiceByID(_ context.Context, id string) (*model.APIGeneratedService, error) {
	svc, ok := mc.CachedServices[id]
	if !ok {
		return nil, notFoundError(id)
	}
	return importService(&svc)
}

func (mc *MockConnector) RemoveServiceByID(_ context.Context, id string) (*model.APIGeneratedService, error) {
	svc, ok := mc.CachedServices[id]
	if !ok {
		return nil, notFoundError(id)
	}

	svc.Status = dbModel.StatusRemoved
	svc.URL = ""
	svc.UpdatedAt = time.Now().UTC()
	mc.CachedServices[id] = svc

	return importService(&svc)
}

func (mc *MockConnector) ConvertSpecification(ctx context.Context, filename string, data []byte) ([]byte, error) {
	return convertSpecification(ctx, filename, data)
}

///////////////////
// Shared Utilities
///////////////////

func loadSource(ctx context.Context, filename string, data []byte) (*openapi.Source, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("uploaded file '%s' is empty", filename),
		}
	}

	src, err := openapi.LoadSource(ctx, filename, data)
	if openapi.IsInputError(err) {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	} else if err != nil {
		return nil, internalError(err, "problem loading specification '%s'", filename)
	}
	return src, nil
}

func convertSpecification(ctx context.Context, filename string, data []byte) ([]byte, error) {
	if openapi.DetectSource(filename, data) != openapi.SourceLibSL {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("'%s' is not a LibSL specification", filename),
		}
	}

	src, err := loadSource(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	out, err := openapi.Encode(src.Document, openapi.FormatYAML)
	if err != nil {
		return nil, internalError(err, "problem encoding document for '%s'", filename)
	}
	return out, nil
}

func importService(svc *dbModel.GeneratedService) (*model.APIGeneratedService, error) {
	api := &model.APIGeneratedService{}
	if err := api.Import(svc); err != nil {
		return nil, internalError(err, "problem converting service '%s' to output format", svc.ID)
	}
	return api, nil
}

func importServices(services []dbModel.GeneratedService) ([]model.APIGeneratedService, error) {
	out := make([]model.APIGeneratedService, 0, len(services))
	for i := range services {
		api, err := importService(&services[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *api)
	}
	return out, nil
}

func notFoundError(id string) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("generated service '%s' not found", id),
	}
}

func internalError(err error, format string, args ...interface{}) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Message:    errors.Wrapf(err, format, args...).Error(),
	}
}
