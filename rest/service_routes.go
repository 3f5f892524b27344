package rest

import (
	"context"
	"net/http"

	"github.com/Nikpro200125/orchestrator/rest/data"
	"github.com/Nikpro200125/orchestrator/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

///////////////////////////////////////////////////////////////////////////////
//
// POST /api/generate-service

type generateServiceHandler struct {
	opts data.GenerateOptions
	sc   data.Connector
}

func makeGenerateService(sc data.Connector) gimlet.RouteHandler {
	return &generateServiceHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new generateServiceHandler.
func (h *generateServiceHandler) Factory() gimlet.RouteHandler {
	return &generateServiceHandler{
		sc: h.sc,
	}
}

// Parse reads the uploaded specification and the generation options.
func (h *generateServiceHandler) Parse(_ context.Context, r *http.Request) error {
	up, err := parseUpload(r)
	if err != nil {
		return err
	}
	h.opts = data.GenerateOptions{
		Filename: up.filename,
		Data:     up.data,
		Name:     r.FormValue("name"),
	}

	if h.opts.Seed, err = parseSeed(r); err != nil {
		return err
	}
	if h.opts.Async, err = parseBool(r, "async"); err != nil {
		return err
	}
	return nil
}

// Run generates and deploys the service. Synchronous requests receive the
// base URL of the running service as plain text; asynchronous requests
// receive the service id and status with 202.
func (h *generateServiceHandler) Run(ctx context.Context) gimlet.Responder {
	svc, err := h.sc.GenerateService(ctx, h.opts)
	if err != nil {
		err = errors.Wrapf(err, "problem generating service from '%s'", h.opts.Filename)
		logFindError(err, message.Fields{
			"request":  gimlet.GetRequestID(ctx),
			"method":   "POST",
			"route":    "/api/generate-service",
			"filename": h.opts.Filename,
			"async":    h.opts.Async,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}

	if !h.opts.Async {
		return gimlet.NewTextResponse(utility.FromStringPtr(svc.URL))
	}

	resp := gimlet.NewJSONResponse(&model.APIGenerateResponse{
		ID:     svc.ID,
		Status: svc.Status,
	})
	if err = resp.SetStatus(http.StatusAccepted); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrap(err, "problem setting response status"))
	}
	return resp
}

///////////////////////////////////////////////////////////////////////////////
//
// POST /api/convert

type convertHandler struct {
	upload upload
	sc     data.Connector
}

func makeConvert(sc data.Connector) gimlet.RouteHandler {
	return &convertHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new convertHandler.
func (h *convertHandler) Factory() gimlet.RouteHandler {
	return &convertHandler{
		sc: h.sc,
	}
}

// Parse reads the uploaded LibSL specification.
func (h *convertHandler) Parse(_ context.Context, r *http.Request) error {
	var err error
	h.upload, err = parseUpload(r)
	return err
}

// Run returns the generated OpenAPI document as YAML.
func (h *convertHandler) Run(ctx context.Context) gimlet.Responder {
	out, err := h.sc.ConvertSpecification(ctx, h.upload.filename, h.upload.data)
	if err != nil {
		err = errors.Wrapf(err, "problem converting '%s'", h.upload.filename)
		logFindError(err, message.Fields{
			"request":  gimlet.GetRequestID(ctx),
			"method":   "POST",
			"route":    "/api/convert",
			"filename": h.upload.filename,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewTextResponse(string(out))
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /api/services

type servicesGetHandler struct {
	sc data.Connector
}

func makeGetServices(sc data.Connector) gimlet.RouteHandler {
	return &servicesGetHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new servicesGetHandler.
func (h *servicesGetHandler) Factory() gimlet.RouteHandler {
	return &servicesGetHandler{
		sc: h.sc,
	}
}

func (h *servicesGetHandler) Parse(_ context.Context, _ *http.Request) error { return nil }

// Run lists every generated service, newest first.
func (h *servicesGetHandler) Run(ctx context.Context) gimlet.Responder {
	services, err := h.sc.FindServices(ctx)
	if err != nil {
		err = errors.Wrap(err, "problem listing services")
		logFindError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/api/services",
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(services)
}

///////////////////////////////////////////////////////////////////////////////
//
// GET /api/services/{id}

type serviceGetByIDHandler struct {
	id string
	sc data.Connector
}

func makeGetServiceByID(sc data.Connector) gimlet.RouteHandler {
	return &serviceGetByIDHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new serviceGetByIDHandler.
func (h *serviceGetByIDHandler) Factory() gimlet.RouteHandler {
	return &serviceGetByIDHandler{
		sc: h.sc,
	}
}

// Parse fetches the id from the http request.
func (h *serviceGetByIDHandler) Parse(_ context.Context, r *http.Request) error {
	h.id = gimlet.GetVars(r)["id"]
	return nil
}

func (h *serviceGetByIDHandler) Run(ctx context.Context) gimlet.Responder {
	svc, err := h.sc.FindServiceByID(ctx, h.id)
	if err != nil {
		err = errors.Wrapf(err, "problem getting service '%s'", h.id)
		logFindError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "GET",
			"route":   "/api/services/{id}",
			"id":      h.id,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(svc)
}

///////////////////////////////////////////////////////////////////////////////
//
// DELETE /api/services/{id}

type serviceRemoveByIDHandler struct {
	id string
	sc data.Connector
}

func makeRemoveServiceByID(sc data.Connector) gimlet.RouteHandler {
	return &serviceRemoveByIDHandler{
		sc: sc,
	}
}

// Factory returns a pointer to a new serviceRemoveByIDHandler.
func (h *serviceRemoveByIDHandler) Factory() gimlet.RouteHandler {
	return &serviceRemoveByIDHandler{
		sc: h.sc,
	}
}

// Parse fetches the id from the http request.
func (h *serviceRemoveByIDHandler) Parse(_ context.Context, r *http.Request) error {
	h.id = gimlet.GetVars(r)["id"]
	return nil
}

// Run stops the service and returns its final record.
func (h *serviceRemoveByIDHandler) Run(ctx context.Context) gimlet.Responder {
	svc, err := h.sc.RemoveServiceByID(ctx, h.id)
	if err != nil {
		err = errors.Wrapf(err, "problem removing service '%s'", h.id)
		logFindError(err, message.Fields{
			"request": gimlet.GetRequestID(ctx),
			"method":  "DELETE",
			"route":   "/api/services/{id}",
			"id":      h.id,
		})
		return gimlet.MakeJSONErrorResponder(err)
	}
	return gimlet.NewJSONResponse(svc)
}
